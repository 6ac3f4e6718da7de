package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// 后端装饰器使用的操作名。
const (
	OpRestore = "restore"
	OpSave    = "save"
)

// LatencyTracker 按操作名累计耗时（毫秒），分位数由 DDSketch 估算。
type LatencyTracker struct {
	mu       sync.Mutex
	accuracy float64
	sketches map[string]*ddsketch.DDSketch
}

// NewLatencyTracker 创建统计器；accuracy 为分位数的相对误差，例如 0.01。
func NewLatencyTracker(accuracy float64) *LatencyTracker {
	return &LatencyTracker{
		accuracy: accuracy,
		sketches: make(map[string]*ddsketch.DDSketch),
	}
}

// Observe 执行 fn 并记录耗时，fn 的错误原样返回。
func (t *LatencyTracker) Observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.record(op, time.Since(start))
	return err
}

func (t *LatencyTracker) record(op string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sketch, ok := t.sketches[op]
	if !ok {
		var err error
		if sketch, err = ddsketch.LogUnboundedDenseDDSketch(t.accuracy); err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(t.accuracy)
		}
		t.sketches[op] = sketch
	}
	sketch.Add(float64(d.Microseconds()) / 1000.0)
}

// Stats 是单个操作的耗时摘要，单位毫秒。
type Stats struct {
	Operation string
	Count     int64
	Min       float64
	P50       float64
	P90       float64
	P99       float64
	Max       float64
}

// Snapshot 返回所有已记录操作的摘要，按操作名排序。
func (t *LatencyTracker) Snapshot() []Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	ops := make([]string, 0, len(t.sketches))
	for op := range t.sketches {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	out := make([]Stats, 0, len(ops))
	for _, op := range ops {
		out = append(out, summarize(op, t.sketches[op]))
	}
	return out
}

func summarize(op string, sketch *ddsketch.DDSketch) Stats {
	s := Stats{Operation: op, Count: int64(sketch.GetCount())}
	if s.Count == 0 {
		return s
	}
	s.Min, _ = sketch.GetMinValue()
	s.Max, _ = sketch.GetMaxValue()
	quantiles, _ := sketch.GetValuesAtQuantiles([]float64{0.50, 0.90, 0.99})
	if len(quantiles) == 3 {
		s.P50, s.P90, s.P99 = quantiles[0], quantiles[1], quantiles[2]
	}
	return s
}

func (s Stats) String() string {
	if s.Count == 0 {
		return s.Operation + ": no data"
	}
	return fmt.Sprintf("%s (n=%d): min=%.2fms p50=%.2fms p90=%.2fms p99=%.2fms max=%.2fms",
		s.Operation, s.Count, s.Min, s.P50, s.P90, s.P99, s.Max)
}
