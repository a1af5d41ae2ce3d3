package findmax

import (
	"time"

	"github.com/torosent/flywheel/internal/simframe"
)

// Planner reasons.
const (
	ReasonInitial  = "INITIAL"
	ReasonContinue = "CONTINUE"
	ReasonRebase   = "REBASE"
)

// Params is one ratchet frame. The target rate is RateShelf + RateDelta.
type Params struct {
	RateShelf float64
	RateDelta float64
	Sample    time.Duration
	Settling  time.Duration
	Reason    string
}

func (p Params) ComputedRate() float64 { return p.RateShelf + p.RateDelta }

func (p Params) SampleTime() time.Duration   { return p.Sample }
func (p Params) SettlingTime() time.Duration { return p.Settling }
func (p Params) Label() string               { return p.Reason }

func (p Params) Values() []simframe.NamedValue {
	return []simframe.NamedValue{
		{Name: "rate_shelf", Value: p.RateShelf},
		{Name: "rate_delta", Value: p.RateDelta},
		{Name: "computed_rate", Value: p.ComputedRate()},
		{Name: "sample_time_ms", Value: float64(p.Sample.Milliseconds())},
		{Name: "settling_time_ms", Value: float64(p.Settling.Milliseconds())},
	}
}
