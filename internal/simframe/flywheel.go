package simframe

import (
	"context"
	"errors"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/runner"
)

// ErrFlywheelStopped aborts a search whose workload has no running workers left.
var ErrFlywheelStopped = errors.New("flywheel stopped during search")

// Flywheel is the running workload a search drives.
type Flywheel interface {
	RunStateCount(state runner.RunState) int
	// Emit must not block.
	Emit(change runner.ParamChange)
	Counter(name string) (func() int64, error)
	Gauge(name string) (func() float64, error)
	DeltaHistogram(name string) (*metrics.DeltaHistogram, error)
	AwaitReady(ctx context.Context) error
	Stop()
}

// CheckLive returns ErrFlywheelStopped when no worker is running.
func CheckLive(fw Flywheel) error {
	if fw.RunStateCount(runner.StateRunning) == 0 {
		return ErrFlywheelStopped
	}
	return nil
}

// Planner decides the parameters of each frame.
type Planner[P Params] interface {
	InitialStep() P
	// NextStep returns ok=false once the search has converged.
	NextStep(j *Journal[P]) (next P, ok bool, err error)
}
