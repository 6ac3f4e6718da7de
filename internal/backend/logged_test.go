package backend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/island-is/cache/internal/metrics"
)

type stubBackend struct {
	restoreKey string
	saveErr    error
}

func (s *stubBackend) Restore(context.Context, []string, string, []string) (string, error) {
	return s.restoreKey, nil
}

func (s *stubBackend) Save(context.Context, []string, string, SaveOptions) error {
	return s.saveErr
}

func (s *stubBackend) Close() error { return nil }

func TestLoggedRecordsLatency(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	tracker := metrics.NewLatencyTracker(0.01)
	failure := errors.New("bucket gone")
	logged := WithLogging(&stubBackend{restoreKey: "linux-deps-v0", saveErr: failure}, logger, tracker)

	key, err := logged.Restore(context.Background(), []string{"deps"}, "linux-deps-v1", []string{"linux-deps-"})
	if err != nil || key != "linux-deps-v0" {
		t.Fatalf("Restore = %q, %v", key, err)
	}
	if err := logged.Save(context.Background(), []string{"deps"}, "linux-deps-v1", SaveOptions{}); !errors.Is(err, failure) {
		t.Fatalf("Save should return the backend error, got %v", err)
	}

	stats := tracker.Snapshot()
	if len(stats) != 2 || stats[0].Operation != metrics.OpRestore || stats[1].Operation != metrics.OpSave {
		t.Fatalf("unexpected latency snapshot %+v", stats)
	}
	for _, s := range stats {
		if s.Count != 1 {
			t.Fatalf("%s recorded %d calls, want 1", s.Operation, s.Count)
		}
	}

	if err := logged.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	found := false
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "save (n=1)") {
			found = true
		}
	}
	if !found {
		t.Fatalf("Close should log the latency summary")
	}
}
