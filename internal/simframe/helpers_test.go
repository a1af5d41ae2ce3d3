package simframe

import (
	"context"
	"fmt"
	"time"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/runner"
)

// staticFlywheel exposes plain fields as metrics.
type staticFlywheel struct {
	rate      float64
	results   int64
	successes int64
	running   int
	events    []runner.ParamChange
	stopped   bool
}

func newStaticFlywheel() *staticFlywheel { return &staticFlywheel{running: 1} }

func (f *staticFlywheel) RunStateCount(state runner.RunState) int {
	if state == runner.StateRunning {
		return f.running
	}
	return 0
}

func (f *staticFlywheel) Emit(change runner.ParamChange) { f.events = append(f.events, change) }

func (f *staticFlywheel) Counter(name string) (func() int64, error) {
	switch name {
	case metrics.NameResult:
		return func() int64 { return f.results }, nil
	case metrics.NameResultSuccess:
		return func() int64 { return f.successes }, nil
	}
	return nil, fmt.Errorf("counter %q: %w", name, metrics.ErrUnknownMetric)
}

func (f *staticFlywheel) Gauge(name string) (func() float64, error) {
	if name == runner.GaugeCycleRate {
		return func() float64 { return f.rate }, nil
	}
	return nil, fmt.Errorf("gauge %q: %w", name, metrics.ErrUnknownMetric)
}

func (f *staticFlywheel) DeltaHistogram(name string) (*metrics.DeltaHistogram, error) {
	return metrics.NewCollector().AttachDeltaHistogram(name)
}

func (f *staticFlywheel) AwaitReady(context.Context) error { return nil }

func (f *staticFlywheel) Stop() { f.stopped = true; f.running = 0 }

// stepParams is a one-dimensional frame used by the tests in this package.
type stepParams struct {
	x      float64
	label  string
	settle time.Duration
}

func (p stepParams) SampleTime() time.Duration   { return time.Second }
func (p stepParams) SettlingTime() time.Duration { return p.settle }
func (p stepParams) Label() string               { return p.label }
func (p stepParams) Values() []NamedValue        { return []NamedValue{{Name: "x", Value: p.x}} }

func resultOf(v float64) Result {
	return NewResult(v, Signal{Name: "v", Value: v, Factor: true})
}
