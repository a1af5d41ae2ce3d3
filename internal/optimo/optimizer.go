package optimo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// ErrTrustRegionExhausted is returned when the optimizer cannot make further
// progress. The search recovers from it with the best journaled frame.
var ErrTrustRegionExhausted = errors.New("optimizer could not shrink its search region further")

// Objective evaluates a point. Errors abort the optimization.
type Objective func(x []float64) (float64, error)

// Problem is one bounded maximization.
type Problem struct {
	Objective Objective
	Initial   []float64
	Lower     []float64
	Upper     []float64

	// InterpolationPoints is how many consecutive iterations may pass without
	// the best value improving by StoppingRadius before NelderMead converges.
	InterpolationPoints int
	// InitialRadius is the NelderMead simplex size around Initial.
	InitialRadius float64
	// StoppingRadius is the smallest objective improvement that counts.
	StoppingRadius float64
	// MaxEvals bounds objective calls; spending it is not an error.
	MaxEvals int
}

// Point is a coordinate vector and its objective value.
type Point struct {
	X     []float64
	Value float64
}

// Optimizer maximizes a Problem.
type Optimizer interface {
	Maximize(ctx context.Context, p Problem) (Point, error)
}

// NelderMead is the default Optimizer, backed by gonum's simplex method.
// Candidates are projected into the bounds before evaluation.
type NelderMead struct{}

func NewNelderMead() *NelderMead { return &NelderMead{} }

func (NelderMead) Maximize(ctx context.Context, p Problem) (Point, error) {
	if len(p.Initial) == 0 || len(p.Lower) != len(p.Initial) || len(p.Upper) != len(p.Initial) {
		return Point{}, &DimensionError{Want: len(p.Initial), Got: len(p.Lower)}
	}

	var objErr error
	best := Point{Value: math.Inf(-1)}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if objErr != nil {
				return math.Inf(1)
			}
			if err := ctx.Err(); err != nil {
				objErr = err
				return math.Inf(1)
			}
			clamped := project(x, p.Lower, p.Upper)
			v, err := p.Objective(clamped)
			if err != nil {
				objErr = err
				return math.Inf(1)
			}
			if v > best.Value {
				best = Point{X: clamped, Value: v}
			}
			return -v
		},
		Status: func() (optimize.Status, error) {
			if objErr != nil {
				return optimize.Failure, objErr
			}
			return optimize.NotTerminated, nil
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: p.MaxEvals,
		Concurrent:      1,
		Converger: &optimize.FunctionConverge{
			Absolute:   p.StoppingRadius,
			Iterations: p.InterpolationPoints,
		},
	}
	method := &optimize.NelderMead{SimplexSize: p.InitialRadius}

	result, err := optimize.Minimize(problem, p.Initial, settings, method)
	if objErr != nil {
		return Point{}, objErr
	}
	if err != nil && !budgetSpent(result) {
		return Point{}, fmt.Errorf("%w: %v", ErrTrustRegionExhausted, err)
	}
	if result == nil || math.IsInf(best.Value, -1) {
		return Point{}, ErrTrustRegionExhausted
	}
	x := project(result.X, p.Lower, p.Upper)
	if v := -result.F; v >= best.Value {
		return Point{X: x, Value: v}, nil
	}
	return best, nil
}

func project(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Max(lower[i], math.Min(upper[i], x[i]))
	}
	return out
}

func budgetSpent(r *optimize.Result) bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case optimize.FunctionEvaluationLimit, optimize.IterationLimit, optimize.RuntimeLimit:
		return true
	}
	return false
}
