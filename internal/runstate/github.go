package runstate

import (
	"context"
	"os"
	"sync"

	"github.com/island-is/cache/internal/runner"
)

const envStatePrefix = "STATE_"

// GitHub 通过 GITHUB_STATE 命令文件保存状态；runner 在后续步骤中以 STATE_<name> 环境变量回传。
type GitHub struct {
	stateFile string
	lookup    func(string) (string, bool)

	mu    sync.RWMutex
	local map[string]string
}

var _ Store = (*GitHub)(nil)

// NewGitHub 创建基于命令文件的状态存储，lookup 为空时读取进程环境变量。
func NewGitHub(stateFile string, lookup func(string) (string, bool)) *GitHub {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &GitHub{stateFile: stateFile, lookup: lookup, local: make(map[string]string)}
}

func (g *GitHub) Get(_ context.Context, name string) (string, error) {
	g.mu.RLock()
	value, ok := g.local[name]
	g.mu.RUnlock()
	if ok {
		return value, nil
	}
	value, _ = g.lookup(envStatePrefix + name)
	return value, nil
}

func (g *GitHub) Set(_ context.Context, name, value string) error {
	if err := runner.AppendFileCommand(g.stateFile, name, value); err != nil {
		return err
	}
	g.mu.Lock()
	g.local[name] = value
	g.mu.Unlock()
	return nil
}

func (g *GitHub) Close() error {
	return nil
}
