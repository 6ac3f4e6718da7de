package runner

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Environment 汇总 runner 注入的环境变量。
type Environment struct {
	EventName  string `env:"GITHUB_EVENT_NAME"`
	Ref        string `env:"GITHUB_REF"`
	ServerURL  string `env:"GITHUB_SERVER_URL" envDefault:"https://github.com"`
	Workspace  string `env:"GITHUB_WORKSPACE"`
	StateFile  string `env:"GITHUB_STATE"`
	OutputFile string `env:"GITHUB_OUTPUT"`
	RunID      string `env:"GITHUB_RUN_ID"`
	RunAttempt string `env:"GITHUB_RUN_ATTEMPT"`
	Job        string `env:"GITHUB_JOB"`
	Action     string `env:"GITHUB_ACTION"`
	TempDir    string `env:"RUNNER_TEMP"`
}

// ParseEnvironment 从当前进程环境变量解析 Environment。
func ParseEnvironment() (Environment, error) {
	var e Environment
	if err := env.Parse(&e); err != nil {
		return Environment{}, fmt.Errorf("parse runner env: %w", err)
	}
	return e, nil
}

// RunIdentity 返回步骤级唯一标识 <run_id>-<attempt>-<job>-<action>；
// 同一 job 中的多个缓存步骤因 GITHUB_ACTION 不同而互不覆盖。未运行在 runner 中时返回空串。
func (e Environment) RunIdentity() string {
	if strings.TrimSpace(e.RunID) == "" {
		return ""
	}
	parts := []string{e.RunID}
	for _, part := range []string{e.RunAttempt, e.Job, e.Action} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "-")
}
