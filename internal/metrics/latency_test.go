package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestLatencyTrackerSnapshot(t *testing.T) {
	tracker := NewLatencyTracker(0.01)
	if got := tracker.Snapshot(); len(got) != 0 {
		t.Fatalf("empty tracker should have no stats, got %+v", got)
	}

	for _, op := range []string{OpSave, OpRestore} {
		for _, d := range []time.Duration{time.Millisecond, 10 * time.Millisecond, 100 * time.Millisecond} {
			tracker.record(op, d)
		}
	}

	stats := tracker.Snapshot()
	if len(stats) != 2 || stats[0].Operation != OpRestore || stats[1].Operation != OpSave {
		t.Fatalf("unexpected snapshot order: %+v", stats)
	}
	for _, s := range stats {
		if s.Count != 3 {
			t.Errorf("%s: count = %d, want 3", s.Operation, s.Count)
		}
		if s.Min < 0.98 || s.Min > 1.02 {
			t.Errorf("%s: min = %.2fms, want ~1ms", s.Operation, s.Min)
		}
		if s.Max < 98 || s.Max > 102 {
			t.Errorf("%s: max = %.2fms, want ~100ms", s.Operation, s.Max)
		}
		if s.P50 < 9.8 || s.P50 > 10.2 {
			t.Errorf("%s: p50 = %.2fms, want ~10ms", s.Operation, s.P50)
		}
	}
}

func TestLatencyTrackerObserve(t *testing.T) {
	tracker := NewLatencyTracker(0.01)
	want := errors.New("boom")

	err := tracker.Observe(OpSave, func() error {
		time.Sleep(5 * time.Millisecond)
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Observe should pass the error through, got %v", err)
	}

	stats := tracker.Snapshot()
	if len(stats) != 1 || stats[0].Count != 1 || stats[0].Min < 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestStatsString(t *testing.T) {
	stats := Stats{Operation: "restore", Count: 2, Min: 1.5, P50: 2, P90: 3, P99: 4, Max: 5.25}
	want := "restore (n=2): min=1.50ms p50=2.00ms p90=3.00ms p99=4.00ms max=5.25ms"
	if got := stats.String(); got != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, got)
	}
	if got := (Stats{Operation: "save"}).String(); got != "save: no data" {
		t.Errorf("unexpected empty stats string %q", got)
	}
}
