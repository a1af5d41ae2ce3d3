package threshold

import (
	"math"
	"strings"
	"testing"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/simframe"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "frame value",
			input: "value >= 900",
			want:  Threshold{Scope: ScopeFrame, Name: "value", Operator: ">=", Value: 900, Raw: "value >= 900"},
		},
		{
			name:  "signal with explicit scope",
			input: "frame:achieved_success_ratio > 0.99",
			want:  Threshold{Scope: ScopeFrame, Name: "achieved_success_ratio", Operator: ">", Value: 0.99, Raw: "frame:achieved_success_ratio > 0.99"},
		},
		{
			name:  "flywheel latency",
			input: "flywheel:p99<50",
			want:  Threshold{Scope: ScopeFlywheel, Name: "p99", Operator: "<", Value: 50, Raw: "flywheel:p99<50"},
		},
		{
			name:  "exponent",
			input: "retries_p99 == 1e0",
			want:  Threshold{Scope: ScopeFrame, Name: "retries_p99", Operator: "==", Value: 1, Raw: "retries_p99 == 1e0"},
		},
		{name: "empty", input: "  ", wantError: true},
		{name: "missing operator", input: "value 900", wantError: true},
		{name: "bad operator", input: "value => 900", wantError: true},
		{name: "unknown scope", input: "cluster:p99 < 5", wantError: true},
		{name: "unknown aggregate", input: "flywheel:p95 < 5", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantError {
				if err == nil {
					t.Fatalf("Parse(%q) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	got, err := ParseMultiple([]string{"value > 1", "flywheel:rate >= 10"})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	_, err = ParseMultiple([]string{"value > 1", "nonsense", "flywheel:p42 < 1"})
	if err == nil {
		t.Fatal("ParseMultiple() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "threshold[1]") || !strings.Contains(err.Error(), "threshold[2]") {
		t.Errorf("error %q should name both bad entries", err)
	}

	none, err := ParseMultiple(nil)
	if err != nil || none != nil {
		t.Errorf("ParseMultiple(nil) = %v, %v; want nil, nil", none, err)
	}
}

func TestEvaluator(t *testing.T) {
	best := simframe.FrameRecord{
		Index: 6,
		Label: "CONTINUE",
		Params: []simframe.NamedValue{
			{Name: "computed_rate", Value: 1000},
		},
		Signals: []simframe.Signal{
			{Name: simframe.SignalSuccessRatio, Value: 0.98},
			{Name: simframe.SignalTargetRate, Value: math.NaN()},
		},
		Value: 950,
	}
	stats := metrics.Stats{Total: 200, Failures: 4, P99LatencyMs: 42, RequestsPerSec: 180, TriesP99: 2}

	tests := []struct {
		expr string
		pass bool
	}{
		{"value >= 900", true},
		{"value > 950", false},
		{"computed_rate == 1000", true},
		{"achieved_success_ratio > 0.99", false},
		{"target_rate > 0", false},
		{"missing_signal > 0", false},
		{"flywheel:p99 < 50", true},
		{"flywheel:failed_rate <= 0.02", true},
		{"flywheel:rate > 200", false},
		{"flywheel:tries_p99 <= 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			th, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			results := NewEvaluator([]Threshold{th}).Evaluate(best, stats)
			if len(results) != 1 {
				t.Fatalf("len(results) = %d, want 1", len(results))
			}
			if results[0].Pass != tt.pass {
				t.Errorf("Pass = %v, want %v (%s)", results[0].Pass, tt.pass, results[0].Message)
			}
			if Passed(results) != tt.pass {
				t.Errorf("Passed() = %v, want %v", Passed(results), tt.pass)
			}
		})
	}
}

func TestEvaluatorWithoutThresholds(t *testing.T) {
	if got := NewEvaluator(nil).Evaluate(simframe.FrameRecord{}, metrics.Stats{}); got != nil {
		t.Errorf("Evaluate() = %v, want nil", got)
	}
	if !Passed(nil) {
		t.Error("Passed(nil) = false, want true")
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		actual   float64
		operator string
		expected float64
		want     bool
	}{
		{100, "<", 200, true},
		{200, "<", 100, false},
		{100, "<=", 100, true},
		{100.0000000001, "<=", 100, true},
		{200, ">", 100, true},
		{100, ">=", 100, true},
		{100, "==", 100, true},
		{100, "==", 101, false},
		{100, "!=", 101, false},
	}
	for _, tt := range tests {
		if got := compareValues(tt.actual, tt.operator, tt.expected); got != tt.want {
			t.Errorf("compareValues(%v, %q, %v) = %v, want %v", tt.actual, tt.operator, tt.expected, got, tt.want)
		}
	}
}
