package optimo

import (
	"fmt"
	"math"
	"strings"
)

// BoundsError rejects a parameter whose initial guess lies outside its bounds.
type BoundsError struct {
	Name                  string
	Lower, Initial, Upper float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("parameter %q: bounds must satisfy lower <= initial <= upper, got %g <= %g <= %g",
		e.Name, e.Lower, e.Initial, e.Upper)
}

// DimensionError reports a point whose length does not match the model.
type DimensionError struct {
	Want, Got int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("point has %d coordinates, model has %d parameters", e.Got, e.Want)
}

// ParamDef is one bounded control parameter.
type ParamDef struct {
	Name     string
	Lower    float64
	Initial  float64
	Upper    float64
	Effector func(float64)
}

// ParamModel maps coordinate vectors to named, effected parameters. Order is
// fixed by registration.
type ParamModel struct {
	defs []ParamDef
}

func NewParamModel() *ParamModel {
	return &ParamModel{}
}

func (m *ParamModel) Add(name string, lower, initial, upper float64, effector func(float64)) error {
	if !(lower <= initial && initial <= upper) {
		return &BoundsError{Name: name, Lower: lower, Initial: initial, Upper: upper}
	}
	for _, d := range m.defs {
		if strings.EqualFold(d.Name, name) {
			return fmt.Errorf("parameter %q registered twice", name)
		}
	}
	m.defs = append(m.defs, ParamDef{Name: name, Lower: lower, Initial: initial, Upper: upper, Effector: effector})
	return nil
}

func (m *ParamModel) Len() int { return len(m.defs) }

// Defs returns the parameter definitions in coordinate order.
func (m *ParamModel) Defs() []ParamDef {
	return append([]ParamDef(nil), m.defs...)
}

func (m *ParamModel) InitialGuess() []float64 {
	return m.column(func(d ParamDef) float64 { return d.Initial })
}

func (m *ParamModel) Lower() []float64 {
	return m.column(func(d ParamDef) float64 { return d.Lower })
}

func (m *ParamModel) Upper() []float64 {
	return m.column(func(d ParamDef) float64 { return d.Upper })
}

func (m *ParamModel) column(fn func(ParamDef) float64) []float64 {
	out := make([]float64, len(m.defs))
	for i, d := range m.defs {
		out[i] = fn(d)
	}
	return out
}

// Clamp projects point into the bounds.
func (m *ParamModel) Clamp(point []float64) ([]float64, error) {
	if err := m.check(point); err != nil {
		return nil, err
	}
	out := make([]float64, len(point))
	for i, d := range m.defs {
		out[i] = math.Max(d.Lower, math.Min(d.Upper, point[i]))
	}
	return out, nil
}

// Params wraps point without effecting it; the objective builds frames with it
// and leaves effecting to Apply once the frame starts.
func (m *ParamModel) Params(point []float64) (Params, error) {
	if err := m.check(point); err != nil {
		return Params{}, err
	}
	return Params{point: append([]float64(nil), point...), model: m}, nil
}

// Apply invokes every effector once, in declared order, and returns point as
// Params. The search applies each frame's point through it.
func (m *ParamModel) Apply(point []float64) (Params, error) {
	p, err := m.Params(point)
	if err != nil {
		return Params{}, err
	}
	m.effect(p.point)
	return p, nil
}

func (m *ParamModel) effect(point []float64) {
	for i, d := range m.defs {
		if d.Effector != nil {
			d.Effector(point[i])
		}
	}
}

func (m *ParamModel) check(point []float64) error {
	if len(point) != len(m.defs) {
		return &DimensionError{Want: len(m.defs), Got: len(point)}
	}
	return nil
}
