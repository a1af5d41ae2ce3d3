package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/flywheel/internal/config"
)

func TestLoadWithoutArgumentsRequestsHelp(t *testing.T) {
	_, err := config.NewLoader().Load([]string{})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load() error = %v, want ErrHelpRequested", err)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"--target", "http://localhost:8080"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Method != "GET" {
		t.Errorf("Method = %q, want GET", cfg.Method)
	}
	if cfg.Driver != config.DriverHTTP {
		t.Errorf("Driver = %q, want http", cfg.Driver)
	}
	if cfg.Strategy != config.StrategyFindmax {
		t.Errorf("Strategy = %q, want findmax", cfg.Strategy)
	}
	if cfg.Output != config.OutputText {
		t.Errorf("Output = %q, want text", cfg.Output)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Concurrency)
	}
	if cfg.Rate != 0 {
		t.Errorf("Rate = %g, want 0", cfg.Rate)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.Tracing.Enabled() {
		t.Error("Tracing.Enabled() = true, want false without endpoint")
	}
	if cfg.Tracing.SampleRate != 1 {
		t.Errorf("Tracing.SampleRate = %g, want 1", cfg.Tracing.SampleRate)
	}
	if len(cfg.Headers) != 0 || len(cfg.Search) != 0 {
		t.Errorf("Headers = %v, Search = %v, want both empty", cfg.Headers, cfg.Search)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"target": "https://api.example.com",
		"method": "PUT",
		"headers": {"Content-Type": "application/json"},
		"body": "{\"foo\":\"bar\"}",
		"concurrency": 10,
		"rate": 100,
		"duration": "2m",
		"timeout": "45s",
		"retries": 3,
		"strategy": "optimo",
		"output": "json",
		"search": {"start_rate": 250, "cutoff_ms": 40.5},
		"expect_json": ["status=ok"],
		"thresholds": ["value >= 100"]
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--method", "PATCH", "--header", "Authorization=Bearer token"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://api.example.com" {
		t.Errorf("TargetURL = %q, want https://api.example.com", cfg.TargetURL)
	}
	if cfg.Method != "PATCH" {
		t.Errorf("Method = %q, want PATCH", cfg.Method)
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers[Content-Type] = %q, want application/json", cfg.Headers["Content-Type"])
	}
	if cfg.Headers["Authorization"] != "Bearer token" {
		t.Errorf("Headers[Authorization] = %q, want Bearer token", cfg.Headers["Authorization"])
	}
	if cfg.Body != `{"foo":"bar"}` {
		t.Errorf("Body = %q, want {\"foo\":\"bar\"}", cfg.Body)
	}
	if cfg.Concurrency != 10 || cfg.Rate != 100 || cfg.Retries != 3 {
		t.Errorf("Concurrency/Rate/Retries = %d/%g/%d, want 10/100/3", cfg.Concurrency, cfg.Rate, cfg.Retries)
	}
	if cfg.Duration != 2*time.Minute || cfg.Timeout != 45*time.Second {
		t.Errorf("Duration/Timeout = %s/%s, want 2m/45s", cfg.Duration, cfg.Timeout)
	}
	if cfg.Strategy != config.StrategyOptimo || cfg.Output != config.OutputJSON {
		t.Errorf("Strategy/Output = %q/%q, want optimo/json", cfg.Strategy, cfg.Output)
	}
	if cfg.Search["start_rate"] != "250" || cfg.Search["cutoff_ms"] != "40.5" {
		t.Errorf("Search = %v", cfg.Search)
	}
	if len(cfg.ExpectJSON) != 1 || cfg.ExpectJSON[0] != "status=ok" {
		t.Errorf("ExpectJSON = %v, want [status=ok]", cfg.ExpectJSON)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v, want one entry", cfg.Thresholds)
	}
}

func TestLoadDashboard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("driver: diag\ndashboard: true\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Dashboard {
		t.Error("Dashboard = false, want true from config file")
	}

	cfg, err = config.NewLoader().Load([]string{"--config", path, "--dashboard=false"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dashboard {
		t.Error("Dashboard = true, want flag to override config file")
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"driver: diag",
		"diag:",
		"  latency: 2ms",
		"  capacity: 800",
		"concurrency: 4",
		"warmup:",
		"  - type: ramp",
		"    from_rps: 10",
		"    to_rps: 50",
		"    duration: 10s",
		"search:",
		"  rate_step: 50",
		"tracing:",
		"  endpoint: localhost:4318",
		"  protocol: http",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--search", "rate_incr=1.5"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Driver != config.DriverDiag {
		t.Errorf("Driver = %q, want diag", cfg.Driver)
	}
	if cfg.Diag.Latency != 2*time.Millisecond || cfg.Diag.Capacity != 800 {
		t.Errorf("Diag = %+v", cfg.Diag)
	}
	if len(cfg.Warmup) != 1 || cfg.Warmup[0].ToRPS != 50 {
		t.Errorf("Warmup = %+v", cfg.Warmup)
	}
	if cfg.Search["rate_step"] != "50" || cfg.Search["rate_incr"] != "1.5" {
		t.Errorf("Search = %v, want rate_step=50 rate_incr=1.5", cfg.Search)
	}
	if !cfg.Tracing.Enabled() || cfg.Tracing.Protocol != "http" || !cfg.Tracing.ShouldPropagate() {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestFlagBodyOverridesConfigBodyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"bodyFile":"payload.json"}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--body", "inline"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Body != "inline" {
		t.Errorf("Body = %q, want inline", cfg.Body)
	}
	if cfg.BodyFile != "" {
		t.Errorf("BodyFile = %q, want empty", cfg.BodyFile)
	}
}

func TestConfigValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		have config.Config
		want []string
	}{
		{
			name: "missing target",
			have: config.Config{Concurrency: 1},
			want: []string{"target"},
		},
		{
			name: "negative values",
			have: config.Config{
				TargetURL:   "https://example.com",
				Concurrency: -1,
				Rate:        -5,
				Total:       -10,
				Timeout:     -1,
				Retries:     -1,
			},
			want: []string{"concurrency", "rate", "total", "timeout", "retries"},
		},
		{
			name: "body conflict",
			have: config.Config{
				TargetURL:   "https://example.com",
				Concurrency: 1,
				Body:        "inline",
				BodyFile:    "payload.json",
			},
			want: []string{"body"},
		},
		{
			name: "unknown enums",
			have: config.Config{
				Driver:      "grpc",
				Strategy:    "bisect",
				Output:      "html",
				Concurrency: 1,
			},
			want: []string{"driver", "strategy", "output"},
		},
		{
			name: "dashboard with json report",
			have: config.Config{
				Driver:      config.DriverDiag,
				Concurrency: 1,
				Output:      config.OutputJSON,
				Dashboard:   true,
			},
			want: []string{"dashboard requires text output"},
		},
		{
			name: "diag bounds",
			have: config.Config{
				Driver:      config.DriverDiag,
				Concurrency: 1,
				Diag:        config.DiagConfig{FailureRatio: 2},
			},
			want: []string{"failure_ratio"},
		},
		{
			name: "bad warmup",
			have: config.Config{
				Driver:      config.DriverDiag,
				Concurrency: 1,
				Warmup:      []config.LoadPattern{{Type: config.LoadPatternTypeSpike}},
			},
			want: []string{"warmup[0]: rps"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.have.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error %q missing %q", err.Error(), want)
				}
			}
		})
	}
}
