// Package threshold asserts pass/fail conditions over a finished search.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/simframe"
)

// Scopes a threshold can read from.
const (
	ScopeFrame    = "frame"
	ScopeFlywheel = "flywheel"
)

// FrameValue names the best frame's scalar value.
const FrameValue = "value"

var pattern = regexp.MustCompile(`^(?:([a-z]+):)?([a-z0-9_]+)\s*(<=|>=|==|<|>)\s*(-?[0-9.]+(?:e[-+]?[0-9]+)?)$`)

// Threshold is one assertion. Frame thresholds name a signal, a parameter or
// "value" of the best frame; flywheel thresholds name an aggregate of the
// whole run.
type Threshold struct {
	Scope    string
	Name     string
	Operator string
	Value    float64
	Raw      string
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
	Message   string  `json:"message" yaml:"message"`
}

// Evaluator evaluates thresholds against a search outcome.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate checks every threshold against the best frame and the flywheel totals.
func (e *Evaluator) Evaluate(best simframe.FrameRecord, stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, best, stats))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, best simframe.FrameRecord, stats metrics.Stats) Result {
	var actual float64
	var err error
	if t.Scope == ScopeFlywheel {
		actual, err = flywheelValue(t.Name, stats)
	} else {
		actual, err = frameValue(t.Name, best)
	}
	if err != nil {
		return Result{Threshold: t.Raw, Pass: false, Message: fmt.Sprintf("error: %v", err)}
	}

	if math.IsNaN(actual) || math.IsInf(actual, 0) {
		return Result{Threshold: t.Raw, Pass: false, Message: fmt.Sprintf("✗ %s: undefined", t.Raw)}
	}
	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Threshold: t.Raw,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.4g %s %.4g", status, t.Raw, actual, t.Operator, t.Value),
	}
}

// Parse parses "[scope:]name operator value". Examples:
//   - "value >= 900"
//   - "achieved_success_ratio > 0.99"
//   - "computed_rate >= 1000"
//   - "flywheel:p99 < 50"  (latency in ms over the whole run)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}
	matches := pattern.FindStringSubmatch(strings.ToLower(s))
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected [scope:]name operator value, e.g. 'value >= 900')", s)
	}

	scope := matches[1]
	switch scope {
	case "", ScopeFrame:
		scope = ScopeFrame
	case ScopeFlywheel:
		if !isValidAggregate(matches[2]) {
			return Threshold{}, fmt.Errorf("unsupported flywheel aggregate: %q (supported: %s)", matches[2], strings.Join(flywheelAggregates, ", "))
		}
	default:
		return Threshold{}, fmt.Errorf("unsupported scope %q (supported: frame, flywheel)", scope)
	}

	value, err := strconv.ParseFloat(matches[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", matches[4], err)
	}
	return Threshold{
		Scope:    scope,
		Name:     matches[2],
		Operator: matches[3],
		Value:    value,
		Raw:      s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}
	result := make([]Threshold, 0, len(thresholds))
	var errs []string
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}
	return result, nil
}

var flywheelAggregates = []string{"p50", "p90", "p99", "avg", "min", "max", "rate", "count", "failed_rate", "failed_count", "tries_p99"}

func isValidAggregate(aggregate string) bool {
	for _, v := range flywheelAggregates {
		if aggregate == v {
			return true
		}
	}
	return false
}

func frameValue(name string, best simframe.FrameRecord) (float64, error) {
	if name == FrameValue {
		return best.Value, nil
	}
	for _, s := range best.Signals {
		if s.Name == name {
			return s.Value, nil
		}
	}
	for _, p := range best.Params {
		if p.Name == name {
			return p.Value, nil
		}
	}
	return 0, fmt.Errorf("best frame has no signal or parameter %q", name)
}

func flywheelValue(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "p50":
		return stats.P50LatencyMs, nil
	case "p90":
		return stats.P90LatencyMs, nil
	case "p99":
		return stats.P99LatencyMs, nil
	case "avg":
		return stats.MeanLatencyMs, nil
	case "min":
		return stats.MinLatencyMs, nil
	case "max":
		return stats.MaxLatencyMs, nil
	case "rate":
		return stats.RequestsPerSec, nil
	case "count":
		return float64(stats.Total), nil
	case "failed_count":
		return float64(stats.Failures), nil
	case "failed_rate":
		if stats.Total == 0 {
			return 0, nil
		}
		return float64(stats.Failures) / float64(stats.Total), nil
	case "tries_p99":
		return stats.TriesP99, nil
	default:
		return 0, fmt.Errorf("unsupported flywheel aggregate %q", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
