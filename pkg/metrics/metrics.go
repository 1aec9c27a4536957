// Package metrics provides Prometheus-compatible metrics for the escrow node.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType defines the type of a metric.
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Counter is a thread-safe monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Uint64
}

// NewCounter creates a counter metric.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(delta uint64) {
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

func (c *Counter) Name() string     { return c.name }
func (c *Counter) Help() string     { return c.help }
func (c *Counter) Type() MetricType { return TypeCounter }

// Gauge is a thread-safe gauge metric.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// NewGauge creates a gauge metric.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(value int64) {
	g.value.Store(value)
}

// SetUint64 sets the gauge to the given unsigned value.
func (g *Gauge) SetUint64(value uint64) {
	g.value.Store(int64(value))
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

func (g *Gauge) Name() string     { return g.name }
func (g *Gauge) Help() string     { return g.help }
func (g *Gauge) Type() MetricType { return TypeGauge }

// Histogram is a thread-safe histogram metric.
type Histogram struct {
	mu      sync.RWMutex
	name    string
	help    string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// DefaultHistogramBuckets cover sub-millisecond to multi-second latencies.
var DefaultHistogramBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
}

// NewHistogram creates a histogram metric with the given buckets.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	if len(buckets) == 0 {
		buckets = DefaultHistogramBuckets
	}
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)

	return &Histogram{
		name:    name,
		help:    help,
		buckets: sorted,
		counts:  make([]uint64, len(sorted)),
	}
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += value
	h.count++
	for i, bucket := range h.buckets {
		if value <= bucket {
			h.counts[i]++
		}
	}
}

// ObserveDuration records a duration in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

func (h *Histogram) Name() string     { return h.name }
func (h *Histogram) Help() string     { return h.help }
func (h *Histogram) Type() MetricType { return TypeHistogram }

// snapshot copies the histogram state under the read lock.
func (h *Histogram) snapshot() (buckets []float64, counts []uint64, sum float64, count uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	counts = make([]uint64, len(h.counts))
	copy(counts, h.counts)
	return h.buckets, counts, h.sum, h.count
}

// Metric is the interface for all metrics.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
}

// Metrics holds all metrics of the escrow node.
type Metrics struct {
	mu      sync.RWMutex
	metrics map[string]Metric

	TransactionsProcessed *Counter
	TransactionsFailed    *Counter
	GamesCreated          *Counter
	GamesJoined           *Counter
	GamesResolved         *Counter
	GamesCancelled        *Counter
	GamesRefunded         *Counter
	FeesCollected         *Counter

	CurrentSlot   *Gauge
	AccountsCount *Gauge

	TransactionDuration *Histogram
}

// NewMetrics creates a Metrics instance with all metrics initialized.
func NewMetrics() *Metrics {
	m := &Metrics{
		metrics: make(map[string]Metric),

		TransactionsProcessed: NewCounter("escrowd_transactions_total", "Total number of transactions committed"),
		TransactionsFailed:    NewCounter("escrowd_transactions_failed_total", "Total number of transactions aborted"),
		GamesCreated:          NewCounter("escrowd_games_created_total", "Total number of game escrows created"),
		GamesJoined:           NewCounter("escrowd_games_joined_total", "Total number of game escrows joined"),
		GamesResolved:         NewCounter("escrowd_games_resolved_total", "Total number of game escrows resolved"),
		GamesCancelled:        NewCounter("escrowd_games_cancelled_total", "Total number of game escrows cancelled"),
		GamesRefunded:         NewCounter("escrowd_games_refunded_total", "Total number of game escrows refunded"),
		FeesCollected:         NewCounter("escrowd_fees_collected_lamports_total", "Total lamports collected by the treasury"),

		CurrentSlot:   NewGauge("escrowd_current_slot", "Current slot number"),
		AccountsCount: NewGauge("escrowd_accounts_count", "Total number of accounts in the store"),

		TransactionDuration: NewHistogram(
			"escrowd_transaction_duration_seconds",
			"Transaction execution duration in seconds",
			nil,
		),
	}

	m.register(m.TransactionsProcessed)
	m.register(m.TransactionsFailed)
	m.register(m.GamesCreated)
	m.register(m.GamesJoined)
	m.register(m.GamesResolved)
	m.register(m.GamesCancelled)
	m.register(m.GamesRefunded)
	m.register(m.FeesCollected)
	m.register(m.CurrentSlot)
	m.register(m.AccountsCount)
	m.register(m.TransactionDuration)

	return m
}

func (m *Metrics) register(metric Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[metric.Name()] = metric
}

// Get returns a metric by name.
func (m *Metrics) Get(name string) Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics[name]
}

// Format renders all metrics in Prometheus text format.
func (m *Metrics) Format() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.metrics))
	for name := range m.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(formatMetric(m.metrics[name]))
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatMetric(metric Metric) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# HELP %s %s\n", metric.Name(), metric.Help()))
	sb.WriteString(fmt.Sprintf("# TYPE %s %s\n", metric.Name(), metric.Type()))

	switch m := metric.(type) {
	case *Counter:
		sb.WriteString(fmt.Sprintf("%s %d\n", m.Name(), m.Value()))
	case *Gauge:
		sb.WriteString(fmt.Sprintf("%s %d\n", m.Name(), m.Value()))
	case *Histogram:
		buckets, counts, sum, count := m.snapshot()
		cumulative := uint64(0)
		for i, bucket := range buckets {
			cumulative += counts[i]
			sb.WriteString(fmt.Sprintf("%s_bucket{le=\"%g\"} %d\n", m.Name(), bucket, cumulative))
		}
		sb.WriteString(fmt.Sprintf("%s_bucket{le=\"+Inf\"} %d\n", m.Name(), count))
		sb.WriteString(fmt.Sprintf("%s_sum %.6f\n", m.Name(), sum))
		sb.WriteString(fmt.Sprintf("%s_count %d\n", m.Name(), count))
	}
	return sb.String()
}
