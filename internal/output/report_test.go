package output

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/simframe"
	"github.com/torosent/flywheel/internal/threshold"
)

func sampleReport() Report {
	best := simframe.FrameRecord{
		Index:  1,
		Label:  "climb",
		Params: []simframe.NamedValue{{Name: "rate_shelf", Value: 200}},
		Signals: []simframe.Signal{
			{Name: "throughput", Value: 198},
			{Name: "retries_p99", Value: math.NaN(), Factor: true},
		},
		Value: 198,
	}
	return Report{
		RunID:    "01J0000000000000000000TEST",
		Strategy: "findmax",
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Elapsed:  1500 * time.Millisecond,
		Status:   StatusConverged,
		Result:   best.Params,
		Value:    best.Value,
		Best:     &best,
		Passes: []Pass{{
			Best: &best,
			Frames: []simframe.FrameRecord{
				{Index: 0, Label: "initial", Params: []simframe.NamedValue{{Name: "rate_shelf", Value: 100}}, Value: 100},
				best,
			},
		}},
		Flywheel: metrics.Stats{
			Total:          300,
			Successes:      297,
			Failures:       3,
			RequestsPerSec: 150,
			P99Latency:     12 * time.Millisecond,
			Errors:         map[string]int{"timeout": 2, "http_503": 1},
		},
		Thresholds: []threshold.Result{{Threshold: "value>100", Actual: 198, Pass: true, Message: "✓ value>100: 198.00"}},
	}
}

func TestPrintReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, FormatText, sampleReport()); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Search Results (findmax)",
		"Status:            converged",
		"rate_shelf=200",
		"Best Frame (#1 climb)",
		"*  1 climb",
		"timeout: 2",
		"✓ value>100",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Index(out, "timeout") > strings.Index(out, "http_503") {
		t.Errorf("expected errors sorted by count")
	}
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, FormatJSON, sampleReport()); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded["elapsed_ms"].(float64) != 1500 {
		t.Errorf("elapsed_ms = %v, want 1500", decoded["elapsed_ms"])
	}
	best := decoded["best"].(map[string]interface{})
	signals := best["signals"].([]interface{})
	retries := signals[1].(map[string]interface{})
	if retries["value"] != nil {
		t.Errorf("undefined signal encoded as %v, want null", retries["value"])
	}
	if retries["factor"] != true {
		t.Errorf("factor flag lost")
	}
}

func TestWriteReportYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, FormatYAML, sampleReport()); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	var decoded struct {
		Strategy string `yaml:"strategy"`
		Status   string `yaml:"status"`
		Passes   []struct {
			Frames []struct {
				Index int `yaml:"index"`
			} `yaml:"frames"`
		} `yaml:"passes"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded.Strategy != "findmax" || decoded.Status != StatusConverged {
		t.Errorf("unexpected header %+v", decoded)
	}
	if len(decoded.Passes) != 1 || len(decoded.Passes[0].Frames) != 2 {
		t.Errorf("unexpected passes %+v", decoded.Passes)
	}
}

func TestWriteReportUnknownFormat(t *testing.T) {
	if err := WriteReport(&bytes.Buffer{}, Format("xml"), Report{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWriteFileReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := WriteFile(path, func(f *os.File) error {
		return WriteReport(f, FormatJSON, sampleReport())
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Errorf("expected JSON contents, got %q", data)
	}
}

func TestWriteFileKeepsOriginalOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := WriteFile(path, func(f *os.File) error {
		f.WriteString("partial")
		return os.ErrClosed
	})
	if err == nil {
		t.Fatal("expected error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Errorf("contents = %q, want original", data)
	}
}
