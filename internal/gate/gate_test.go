package gate

import (
	"strings"
	"testing"

	"github.com/island-is/cache/internal/runner"
)

func TestCheck(t *testing.T) {
	testCases := []struct {
		name    string
		env     runner.Environment
		allowed bool
		code    Code
	}{
		{"github push", runner.Environment{ServerURL: "https://github.com", EventName: "push", Ref: "refs/heads/main"}, true, CodeAllowed},
		{"default server url", runner.Environment{EventName: "pull_request", Ref: "refs/pull/1/merge"}, true, CodeAllowed},
		{"ghe.com", runner.Environment{ServerURL: "https://acme.ghe.com", Ref: "refs/tags/v1"}, true, CodeAllowed},
		{"localhost", runner.Environment{ServerURL: "http://github.localhost", Ref: "refs/heads/x"}, true, CodeAllowed},
		{"ghes", runner.Environment{ServerURL: "https://git.example.com", Ref: "refs/heads/main"}, false, CodeUnsupportedEnvironment},
		{"ghes without ref", runner.Environment{ServerURL: "https://git.example.com"}, false, CodeUnsupportedEnvironment},
		{"no ref", runner.Environment{ServerURL: "https://github.com", EventName: "schedule"}, false, CodeUnsupportedEvent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := Check(tc.env)
			if v.Allowed != tc.allowed || v.Code != tc.code {
				t.Fatalf("Check() = %+v, want allowed=%v code=%q", v, tc.allowed, tc.code)
			}
			if !v.Allowed && v.Reason == "" {
				t.Fatalf("rejection must carry a reason")
			}
		})
	}
}

func TestEventRejectionNamesEvent(t *testing.T) {
	v := Check(runner.Environment{EventName: "workflow_run"})
	if !strings.Contains(v.Reason, "workflow_run") {
		t.Fatalf("reason should name the event: %q", v.Reason)
	}
}
