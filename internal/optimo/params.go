package optimo

import (
	"time"

	"github.com/torosent/flywheel/internal/simframe"
)

const reasonEval = "EVAL"

// Params is one optimizer candidate.
type Params struct {
	point    []float64
	model    *ParamModel
	sample   time.Duration
	settling time.Duration
}

// Point returns a copy of the coordinates.
func (p Params) Point() []float64 {
	return append([]float64(nil), p.point...)
}

func (p Params) SampleTime() time.Duration   { return p.sample }
func (p Params) SettlingTime() time.Duration { return p.settling }
func (p Params) Label() string               { return reasonEval }

func (p Params) Values() []simframe.NamedValue {
	if p.model == nil {
		return nil
	}
	out := make([]simframe.NamedValue, len(p.point))
	for i, d := range p.model.defs {
		out[i] = simframe.NamedValue{Name: d.Name, Value: p.point[i]}
	}
	return out
}

func (p Params) withTiming(sample, settling time.Duration) Params {
	p.sample, p.settling = sample, settling
	return p
}
