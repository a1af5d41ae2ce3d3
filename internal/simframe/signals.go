package simframe

import (
	"fmt"
	"math"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/runner"
)

// Signal names shared by the search strategies.
const (
	SignalTargetRate       = "target_rate"
	SignalAchievedOpRate   = "achieved_oprate"
	SignalAchievedOkOpRate = "achieved_ok_oprate"
	SignalSuccessRatio     = "achieved_success_ratio"
	SignalTargetRatio      = "achieved_target_ratio"
)

// AddThroughputSignals registers the throughput profile: target and achieved
// rates, with the successful rate as the base factor and squared shortfall
// penalties for failed operations and for missing the target rate.
func AddThroughputSignals(c *Capture, fw Flywheel) error {
	target, err := fw.Gauge(runner.GaugeCycleRate)
	if err != nil {
		return fmt.Errorf("target rate: %w", err)
	}
	all, err := fw.Counter(metrics.NameResult)
	if err != nil {
		return fmt.Errorf("achieved rate: %w", err)
	}
	ok, err := fw.Counter(metrics.NameResultSuccess)
	if err != nil {
		return fmt.Errorf("achieved ok rate: %w", err)
	}

	c.AddDirect(SignalTargetRate, target, math.NaN())
	c.AddDeltaTime(SignalAchievedOpRate, all, math.NaN())
	c.AddDeltaTime(SignalAchievedOkOpRate, ok, 1.0, AsFactor())
	c.AddRemix(SignalSuccessRatio, func(v Values) float64 {
		return SquaredShortfall(v.Get(SignalAchievedOkOpRate) / v.Get(SignalAchievedOpRate))
	})
	c.AddRemix(SignalTargetRatio, func(v Values) float64 {
		return SquaredShortfall(v.Get(SignalAchievedOkOpRate) / v.Get(SignalTargetRate))
	})
	return nil
}

// SquaredShortfall caps a ratio at 1 and squares it.
func SquaredShortfall(ratio float64) float64 {
	r := math.Min(1, ratio)
	return r * r
}
