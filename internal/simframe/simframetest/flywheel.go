// Package simframetest provides a deterministic flywheel for search tests.
package simframetest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/runner"
)

// Capacity returns per-second successful and failed operation rates for a
// target rate (0 means unlimited) and worker count.
type Capacity func(rate float64, threads int) (ok, failed float64)

// Saturating serves up to limit ops/s and fails everything above it.
func Saturating(limit float64) Capacity {
	return func(rate float64, _ int) (float64, float64) {
		if rate <= 0 || math.IsInf(rate, 1) {
			return limit, 0
		}
		if rate <= limit {
			return rate, 0
		}
		return limit, rate - limit
	}
}

// Flywheel is a virtual-time workload. Time only moves through Sleep, and
// counters grow according to the capacity model while it does.
type Flywheel struct {
	mu        sync.Mutex
	now       time.Time
	capacity  Capacity
	latency   func(rate float64, threads int) time.Duration
	rate      float64
	threads   int
	running   int
	results   float64
	successes float64
	events    []runner.ParamChange
	stopped   bool
	collector *metrics.Collector

	// KillAfter stops all workers once this many events were emitted (0 disables).
	KillAfter int
}

func New(capacity Capacity) *Flywheel {
	return &Flywheel{
		now:       time.Unix(1_700_000_000, 0),
		capacity:  capacity,
		threads:   1,
		running:   1,
		collector: metrics.NewCollector(),
	}
}

// WithLatency records one latency sample per simulated millisecond of work.
func (f *Flywheel) WithLatency(fn func(rate float64, threads int) time.Duration) *Flywheel {
	f.latency = fn
	return f
}

func (f *Flywheel) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances virtual time by d.
func (f *Flywheel) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	if f.running == 0 {
		return nil
	}
	ok, failed := f.capacity(f.rate, f.threads)
	f.successes += ok * d.Seconds()
	f.results += (ok + failed) * d.Seconds()
	if f.latency != nil {
		lat := f.latency(f.rate, f.threads)
		for i := int64(0); i < d.Milliseconds(); i++ {
			f.collector.RecordRequest(lat, nil, 1)
		}
	}
	return nil
}

func (f *Flywheel) RunStateCount(state runner.RunState) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch state {
	case runner.StateRunning:
		return f.running
	case runner.StateStopped:
		if f.stopped {
			return f.threads
		}
	}
	return 0
}

func (f *Flywheel) Emit(change runner.ParamChange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, change)
	switch c := change.(type) {
	case runner.SetRate:
		f.rate = c.RPS
	case runner.SetThreads:
		f.threads = max(1, c.Count)
		if f.running > 0 {
			f.running = f.threads
		}
	}
	if f.KillAfter > 0 && len(f.events) >= f.KillAfter {
		f.running = 0
	}
}

// Events returns every change emitted so far.
func (f *Flywheel) Events() []runner.ParamChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.ParamChange(nil), f.events...)
}

func (f *Flywheel) Counter(name string) (func() int64, error) {
	switch name {
	case metrics.NameResult:
		return func() int64 {
			f.mu.Lock()
			defer f.mu.Unlock()
			return int64(f.results)
		}, nil
	case metrics.NameResultSuccess:
		return func() int64 {
			f.mu.Lock()
			defer f.mu.Unlock()
			return int64(f.successes)
		}, nil
	}
	return nil, fmt.Errorf("counter %q: %w", name, metrics.ErrUnknownMetric)
}

func (f *Flywheel) Gauge(name string) (func() float64, error) {
	switch name {
	case runner.GaugeCycleRate:
		return func() float64 {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.rate
		}, nil
	case runner.GaugeThreads:
		return func() float64 {
			f.mu.Lock()
			defer f.mu.Unlock()
			return float64(f.threads)
		}, nil
	}
	return nil, fmt.Errorf("gauge %q: %w", name, metrics.ErrUnknownMetric)
}

func (f *Flywheel) DeltaHistogram(name string) (*metrics.DeltaHistogram, error) {
	return f.collector.AttachDeltaHistogram(name)
}

func (f *Flywheel) AwaitReady(ctx context.Context) error {
	return ctx.Err()
}

func (f *Flywheel) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = 0
	f.stopped = true
}

// Stopped reports whether Stop was called.
func (f *Flywheel) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}
