package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "test counter")
	c.Inc()
	c.Add(5)
	if c.Value() != 6 {
		t.Errorf("value = %d, want 6", c.Value())
	}
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter("test_total", "test counter")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	if c.Value() != 1000 {
		t.Errorf("value = %d, want 1000", c.Value())
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "test gauge")
	g.Set(42)
	if g.Value() != 42 {
		t.Errorf("value = %d, want 42", g.Value())
	}
	g.SetUint64(7)
	if g.Value() != 7 {
		t.Errorf("value = %d, want 7", g.Value())
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_seconds", "test histogram", []float64{0.01, 0.1, 1.0})
	h.Observe(0.005)
	h.Observe(0.05)
	h.ObserveDuration(500 * time.Millisecond)

	_, counts, sum, count := h.snapshot()
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if counts[0] != 1 || counts[1] != 2 || counts[2] != 3 {
		t.Errorf("bucket counts = %v, want [1 2 3]", counts)
	}
	if sum != 0.555 {
		t.Errorf("sum = %f, want 0.555", sum)
	}
}

func TestMetrics_Format(t *testing.T) {
	m := NewMetrics()
	m.GamesCreated.Inc()
	m.FeesCollected.Add(60_000_000)
	m.CurrentSlot.SetUint64(12)

	out := m.Format()
	for _, want := range []string{
		"# TYPE escrowd_games_created_total counter",
		"escrowd_games_created_total 1",
		"escrowd_fees_collected_lamports_total 60000000",
		"escrowd_current_slot 12",
		"# TYPE escrowd_transaction_duration_seconds histogram",
		`escrowd_transaction_duration_seconds_bucket{le="+Inf"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMetrics_Get(t *testing.T) {
	m := NewMetrics()
	if m.Get("escrowd_transactions_total") == nil {
		t.Error("registered metric should be retrievable")
	}
	if m.Get("no_such_metric") != nil {
		t.Error("unknown metric should return nil")
	}
}
