package simframe

import (
	"strconv"
	"strings"
	"time"
)

// NamedValue is one named control parameter or signal.
type NamedValue struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// Params is the immutable control vector of one frame.
type Params interface {
	SampleTime() time.Duration
	SettlingTime() time.Duration
	// Label is a short diagnostic tag such as the planner's reason.
	Label() string
	Values() []NamedValue
}

// FormatValues renders values as "name=value" pairs.
func FormatValues(values []NamedValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.Name+"="+strconv.FormatFloat(v.Value, 'g', 6, 64))
	}
	return strings.Join(parts, " ")
}
