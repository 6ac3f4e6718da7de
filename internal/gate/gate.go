// Package gate holds the precondition checks both cache phases consult before
// touching the backend: the runner must be hosted where the cache service is
// available, and the triggering event must carry a branch or tag ref.
package gate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/island-is/cache/internal/runner"
)

// Code 标识拒绝原因。
type Code string

const (
	CodeAllowed                Code = ""
	CodeUnsupportedEnvironment Code = "unsupported_environment"
	CodeUnsupportedEvent       Code = "unsupported_event"
)

// UnsupportedEnvironmentMessage 是 GHES 等托管环境的固定提示。
const UnsupportedEnvironmentMessage = "Cache action is not supported on GHES. See https://github.com/actions/cache/issues/505 for more details"

const defaultServerURL = "https://github.com"

// Verdict 是一次检查的结论，Allowed 为 false 时 Reason 可直接用于日志。
type Verdict struct {
	Allowed bool
	Code    Code
	Reason  string
}

// Check 按顺序检查运行环境与触发事件，不产生任何副作用。
func Check(e runner.Environment) Verdict {
	if IsGHES(e.ServerURL) {
		return Verdict{Code: CodeUnsupportedEnvironment, Reason: UnsupportedEnvironmentMessage}
	}
	if !IsValidEvent(e) {
		return Verdict{
			Code: CodeUnsupportedEvent,
			Reason: fmt.Sprintf(
				"Event Validation Error: The event type %s is not supported because it's not tied to a branch or tag ref.",
				e.EventName,
			),
		}
	}
	return Verdict{Allowed: true}
}

// IsGHES 判断 server URL 是否指向自托管 GitHub Enterprise Server。
// github.com、*.ghe.com 以及 *.localhost 视为受支持环境；无法解析时按默认地址处理。
func IsGHES(serverURL string) bool {
	if strings.TrimSpace(serverURL) == "" {
		serverURL = defaultServerURL
	}
	parsed, err := url.Parse(serverURL)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	host := strings.ToUpper(strings.TrimSpace(parsed.Hostname()))
	isGitHub := host == "GITHUB.COM"
	isGHEHost := strings.HasSuffix(host, ".GHE.COM")
	isLocal := strings.HasSuffix(host, ".LOCALHOST")
	return !isGitHub && !isGHEHost && !isLocal
}

// IsValidEvent 要求触发事件携带非空 ref。
func IsValidEvent(e runner.Environment) bool {
	return strings.TrimSpace(e.Ref) != ""
}
