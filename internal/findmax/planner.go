package findmax

import (
	"fmt"
	"math"
	"time"

	"github.com/torosent/flywheel/internal/simframe"
)

type Planner struct {
	settings Settings
}

func NewPlanner(s Settings) *Planner {
	return &Planner{settings: s}
}

func (p *Planner) InitialStep() Params {
	return Params{
		RateShelf: p.settings.RateBase,
		RateDelta: p.settings.RateStep,
		Sample:    p.settings.SampleTime,
		Settling:  p.settings.MinSettling,
		Reason:    ReasonInitial,
	}
}

func (p *Planner) NextStep(j *simframe.Journal[Params]) (Params, bool, error) {
	last, err := j.Last()
	if err != nil {
		return Params{}, false, err
	}
	best, err := j.BestRun()
	if err != nil {
		return Params{}, false, err
	}
	step := p.settings.RateStep
	bestRate := best.Params.ComputedRate()

	switch {
	case best.Index == last.Index:
		next := last.Params
		next.RateDelta *= p.settings.RateIncr
		next.Reason = ReasonContinue
		return next, true, nil

	case best.Index == last.Index-1:
		if last.Params.ComputedRate()-bestRate <= step {
			return Params{}, false, nil
		}
		return Params{
			RateShelf: bestRate,
			RateDelta: step,
			Sample:    p.grow(last.Params.Sample, p.settings.SampleIncr),
			Settling:  p.grow(last.Params.Settling, 4),
			Reason:    ReasonRebase,
		}, true, nil

	default:
		ref, ok := nextWorse(j, best)
		if !ok {
			return Params{}, false, &simframe.InconsistentJournalError{
				Reason: fmt.Sprintf("no frame above best rate %.2f scoring at most %.6g", bestRate, best.Value),
				Dump:   j.String(),
			}
		}
		if ref.Params.ComputedRate()-bestRate <= step {
			return Params{}, false, nil
		}
		return Params{
			RateShelf: bestRate,
			RateDelta: step,
			Sample:    last.Params.Sample,
			Settling:  p.grow(last.Params.Settling, 2),
			Reason:    ReasonRebase,
		}, true, nil
	}
}

// nextWorse finds the lowest-rate frame faster than best that did not beat it.
// Ties count, or a plateau above best would be rebased onto forever.
func nextWorse(j *simframe.Journal[Params], best simframe.SimFrame[Params]) (simframe.SimFrame[Params], bool) {
	var found simframe.SimFrame[Params]
	lowest := math.Inf(1)
	bestRate := best.Params.ComputedRate()
	for _, f := range j.Frames() {
		rate := f.Params.ComputedRate()
		if f.Index != best.Index && rate > bestRate && f.Value <= best.Value && rate < lowest {
			found, lowest = f, rate
		}
	}
	return found, !math.IsInf(lowest, 1)
}

// grow multiplies d, capped at the maximum sample window.
func (p *Planner) grow(d time.Duration, factor float64) time.Duration {
	grown := time.Duration(float64(d) * factor)
	if grown > p.settings.SampleMax {
		return max(d, p.settings.SampleMax)
	}
	return grown
}
