package metrics

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Metric names understood by Counter and AttachDeltaHistogram.
const (
	NameResult        = "result"
	NameResultSuccess = "result_success"
	NameTries         = "tries"
)

// ErrUnknownMetric is returned when a metric name is not registered.
var ErrUnknownMetric = errors.New("unknown metric")

const (
	latencyLowestUs  = 1
	latencyHighestUs = 60_000_000
	triesHighest     = 1_000
	sigFigs          = 3
)

// Collector records per-operation metrics in a thread-safe manner.
type Collector struct {
	successes atomic.Int64
	failures  atomic.Int64

	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	tries        *hdrhistogram.Histogram
	deltas       map[string][]*DeltaHistogram
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByKind map[string]int64
	start        time.Time
}

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	Successes      int64         `json:"successes" yaml:"successes"`
	Failures       int64         `json:"failures" yaml:"failures"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`
	TriesP99       float64       `json:"tries_p99" yaml:"tries_p99"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms" yaml:"duration_ms"`
	Errors        map[string]int `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &Collector{
		hist:         hdrhistogram.New(latencyLowestUs, latencyHighestUs, sigFigs),
		tries:        hdrhistogram.New(1, triesHighest, sigFigs),
		deltas:       make(map[string][]*DeltaHistogram),
		errorsByKind: make(map[string]int64),
		start:        time.Now(),
	}
}

// Start marks the moment the workload began issuing operations.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordRequest records a single operation's latency, error state and number
// of attempts. A tries value below one counts as a single attempt.
func (c *Collector) RecordRequest(latency time.Duration, err error, tries int) {
	if err == nil {
		c.successes.Add(1)
	} else {
		c.failures.Add(1)
	}
	if tries < 1 {
		tries = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	us := clamp(latency.Microseconds(), c.hist.LowestTrackableValue(), c.hist.HighestTrackableValue())
	_ = c.hist.RecordValue(us)
	t := clamp(int64(tries), c.tries.LowestTrackableValue(), c.tries.HighestTrackableValue())
	_ = c.tries.RecordValue(t)

	for _, d := range c.deltas[NameResult] {
		d.record(us)
	}
	for _, d := range c.deltas[NameTries] {
		d.record(t)
	}

	c.sumLatency += latency
	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
	if err != nil {
		c.errorsByKind[ClassifyError(err)]++
	}
}

// Counter returns a supplier of the cumulative count for the named metric.
func (c *Collector) Counter(name string) (func() int64, error) {
	switch name {
	case NameResult:
		return func() int64 { return c.successes.Load() + c.failures.Load() }, nil
	case NameResultSuccess:
		return c.successes.Load, nil
	default:
		return nil, fmt.Errorf("counter %q: %w", name, ErrUnknownMetric)
	}
}

// AttachDeltaHistogram attaches a new delta histogram to the named distribution.
// Only values recorded after attachment are observed.
func (c *Collector) AttachDeltaHistogram(name string) (*DeltaHistogram, error) {
	var d *DeltaHistogram
	switch name {
	case NameResult:
		d = newDeltaHistogram(name, latencyLowestUs, latencyHighestUs)
	case NameTries:
		d = newDeltaHistogram(name, 1, triesHighest)
	default:
		return nil, fmt.Errorf("histogram %q: %w", name, ErrUnknownMetric)
	}
	c.mu.Lock()
	c.deltas[name] = append(c.deltas[name], d)
	c.mu.Unlock()
	return d, nil
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	successes := c.successes.Load()
	failures := c.failures.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	total := successes + failures
	stats := Stats{
		Total:      total,
		Successes:  successes,
		Failures:   failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	if c.tries.TotalCount() > 0 {
		stats.TriesP99 = float64(c.tries.ValueAtQuantile(99))
	}

	stats.MinLatencyMs = float64(stats.MinLatency) / float64(time.Millisecond)
	stats.MaxLatencyMs = float64(stats.MaxLatency) / float64(time.Millisecond)
	stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)
	stats.P50LatencyMs = float64(stats.P50Latency) / float64(time.Millisecond)
	stats.P90LatencyMs = float64(stats.P90Latency) / float64(time.Millisecond)
	stats.P99LatencyMs = float64(stats.P99Latency) / float64(time.Millisecond)

	stats.Duration = elapsed
	stats.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByKind) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByKind))
		for k, v := range c.errorsByKind {
			stats.Errors[k] = int(v)
		}
	}

	return stats
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
