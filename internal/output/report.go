package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/simframe"
	"github.com/torosent/flywheel/internal/threshold"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Search statuses.
const (
	StatusConverged = "converged"
	StatusFallback  = "fallback"
	StatusAborted   = "aborted"
)

// Report is everything a finished search produced.
type Report struct {
	RunID      string                `json:"run_id" yaml:"run_id"`
	Strategy   string                `json:"strategy" yaml:"strategy"`
	Started    time.Time             `json:"started" yaml:"started"`
	Elapsed    time.Duration         `json:"-" yaml:"-"`
	ElapsedMs  float64               `json:"elapsed_ms" yaml:"elapsed_ms"`
	Status     string                `json:"status" yaml:"status"`
	Error      string                `json:"error,omitempty" yaml:"error,omitempty"`
	Result     []simframe.NamedValue `json:"result,omitempty" yaml:"result,omitempty"`
	Value      float64               `json:"value" yaml:"value"`
	Best       *simframe.FrameRecord `json:"best,omitempty" yaml:"best,omitempty"`
	Passes     []Pass                `json:"passes" yaml:"passes"`
	Flywheel   metrics.Stats         `json:"flywheel" yaml:"flywheel"`
	Thresholds []threshold.Result    `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Pass is one journal. findmax produces one per average_of repetition.
type Pass struct {
	Best   *simframe.FrameRecord  `json:"best,omitempty" yaml:"best,omitempty"`
	Frames []simframe.FrameRecord `json:"frames" yaml:"frames"`
}

// WriteReport renders r in the given format.
func WriteReport(w io.Writer, format Format, r Report) error {
	r.ElapsedMs = float64(r.Elapsed) / float64(time.Millisecond)
	switch format {
	case "", FormatText:
		PrintReport(w, r)
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "\n--- Search Results (%s) ---\n", r.Strategy)
	fmt.Fprintf(w, "Run:               %s\n", r.RunID)
	fmt.Fprintf(w, "Status:            %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:             %s\n", r.Error)
	}
	fmt.Fprintf(w, "Elapsed:           %s\n", r.Elapsed.Round(time.Millisecond))
	if len(r.Result) > 0 {
		fmt.Fprintf(w, "Result:            %s\n", simframe.FormatValues(r.Result))
	}
	fmt.Fprintf(w, "Value:             %.6g\n", r.Value)

	if r.Best != nil {
		fmt.Fprintf(w, "\nBest Frame (#%d %s):\n", r.Best.Index, r.Best.Label)
		writeSignals(w, r.Best.Signals, "  ")
	}

	for i, p := range r.Passes {
		if len(r.Passes) > 1 {
			fmt.Fprintf(w, "\nJournal (pass %d):\n", i+1)
		} else {
			fmt.Fprintln(w, "\nJournal:")
		}
		for _, f := range p.Frames {
			marker := " "
			if p.Best != nil && p.Best.Index == f.Index {
				marker = "*"
			}
			fmt.Fprintf(w, "%s%3d %-8s %s value=%.6g\n", marker, f.Index, f.Label, simframe.FormatValues(f.Params), f.Value)
		}
	}

	s := r.Flywheel
	fmt.Fprintln(w, "\nFlywheel:")
	fmt.Fprintf(w, "  Operations:      %d (ok %d, failed %d)\n", s.Total, s.Successes, s.Failures)
	fmt.Fprintf(w, "  Ops/sec:         %.2f\n", s.RequestsPerSec)
	fmt.Fprintf(w, "  Latency P50/P90/P99: %s / %s / %s\n", s.P50Latency, s.P90Latency, s.P99Latency)
	if s.TriesP99 > 1 {
		fmt.Fprintf(w, "  Tries P99:       %.0f\n", s.TriesP99)
	}
	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "  Errors:")
		kinds := make([]string, 0, len(s.Errors))
		for kind := range s.Errors {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool {
			return s.Errors[kinds[i]] > s.Errors[kinds[j]]
		})
		for _, kind := range kinds {
			fmt.Fprintf(w, "    %s: %d\n", kind, s.Errors[kind])
		}
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, t := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", t.Message)
		}
	}
}

func writeSignals(w io.Writer, signals []simframe.Signal, indent string) {
	for _, s := range signals {
		factor := ""
		if s.Factor {
			factor = " (factor)"
		}
		fmt.Fprintf(w, "%s%-24s %.6g%s\n", indent, s.Name, s.Value, factor)
	}
}
