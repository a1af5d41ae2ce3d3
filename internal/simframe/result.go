package simframe

import (
	"encoding/json"
	"math"
)

// Signal is one named value captured in a window.
type Signal struct {
	Name   string  `json:"name" yaml:"name"`
	Value  float64 `json:"value" yaml:"value"`
	Factor bool    `json:"factor,omitempty" yaml:"factor,omitempty"`
}

// MarshalJSON encodes undefined values as null.
func (s Signal) MarshalJSON() ([]byte, error) {
	type plain struct {
		Name   string   `json:"name"`
		Value  *float64 `json:"value"`
		Factor bool     `json:"factor,omitempty"`
	}
	out := plain{Name: s.Name, Factor: s.Factor}
	if !undefined(s.Value) {
		out.Value = &s.Value
	}
	return json.Marshal(out)
}

// Result is the immutable outcome of one capture window.
type Result struct {
	signals []Signal
	value   float64
}

// NewResult builds a Result from already computed signals.
func NewResult(value float64, signals ...Signal) Result {
	return Result{signals: append([]Signal(nil), signals...), value: value}
}

// Value is the scalar the search maximizes.
func (r Result) Value() float64 { return r.value }

// Signals returns the signals in capture order.
func (r Result) Signals() []Signal {
	return append([]Signal(nil), r.signals...)
}

// Get returns the named signal, or NaN and false when absent.
func (r Result) Get(name string) (float64, bool) {
	for _, s := range r.signals {
		if s.Name == name {
			return s.Value, true
		}
	}
	return math.NaN(), false
}

// Values is the view of a window handed to remix functions.
type Values map[string]float64

// Get returns the named value or NaN when it was not captured (yet).
func (v Values) Get(name string) float64 {
	if x, ok := v[name]; ok {
		return x
	}
	return math.NaN()
}

func undefined(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}

// SigmoidE4LowPass is a smooth cutoff: 0.5 at cutoff, close to 1 below it and
// close to 0 above it.
func SigmoidE4LowPass(x, cutoff float64) float64 {
	return 1.0 / (1.0 + math.Exp(4*(x-cutoff)))
}
