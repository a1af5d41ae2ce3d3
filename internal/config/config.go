package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Driver selects what each flywheel operation does.
type Driver string

const (
	DriverHTTP Driver = "http"
	// DriverDiag runs a synthetic operation with a configurable latency and
	// capacity, for exercising a search without a target.
	DriverDiag Driver = "diag"
)

// Strategy selects the search algorithm.
type Strategy string

const (
	StrategyFindmax Strategy = "findmax"
	StrategyOptimo  Strategy = "optimo"
)

// OutputFormat selects the report encoding.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type Config struct {
	TargetURL   string            `mapstructure:"target"`
	Method      string            `mapstructure:"method"`
	Headers     map[string]string `mapstructure:"headers"`
	Body        string            `mapstructure:"body"`
	BodyFile    string            `mapstructure:"body_file"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Retries     int               `mapstructure:"retries"`
	ExpectJSON  []string          `mapstructure:"expect_json"`
	Driver      Driver            `mapstructure:"driver"`
	Diag        DiagConfig        `mapstructure:"diag"`
	Concurrency int               `mapstructure:"concurrency"`
	Rate        float64           `mapstructure:"rate"`
	Duration    time.Duration     `mapstructure:"duration"`
	Total       int               `mapstructure:"total"`
	Arrival     ArrivalConfig     `mapstructure:"arrival"`
	Warmup      []LoadPattern     `mapstructure:"warmup"`
	Strategy    Strategy          `mapstructure:"strategy"`
	Search      map[string]string `mapstructure:"search"`
	Thresholds  []string          `mapstructure:"thresholds"`
	Output      OutputFormat      `mapstructure:"output"`
	JournalOut  string            `mapstructure:"journal_out"`
	MetricsAddr string            `mapstructure:"metrics_addr"`
	LogLevel    string            `mapstructure:"log_level"`
	LogFormat   string            `mapstructure:"log_format"`
	LogErrors   bool              `mapstructure:"log_errors"`
	Dashboard   bool              `mapstructure:"dashboard"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	ConfigFile  string            `mapstructure:"-"`
}

type LoadPatternType string

const (
	LoadPatternTypeRamp  LoadPatternType = "ramp"
	LoadPatternTypeStep  LoadPatternType = "step"
	LoadPatternTypeSpike LoadPatternType = "spike"
)

type LoadPattern struct {
	Name     string          `mapstructure:"name"`
	Type     LoadPatternType `mapstructure:"type"`
	FromRPS  float64         `mapstructure:"from_rps"`
	ToRPS    float64         `mapstructure:"to_rps"`
	Duration time.Duration   `mapstructure:"duration"`
	Steps    []LoadStep      `mapstructure:"steps"`
	RPS      float64         `mapstructure:"rps"`
}

type LoadStep struct {
	RPS      float64       `mapstructure:"rps"`
	Duration time.Duration `mapstructure:"duration"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

// DiagConfig shapes the synthetic driver. Operations beyond Capacity per
// second fail; FailureRatio fails a fixed share of the rest.
type DiagConfig struct {
	Latency      time.Duration `mapstructure:"latency"`
	Capacity     float64       `mapstructure:"capacity"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// TracingConfig configures OpenTelemetry export. Tracing is enabled when an
// endpoint is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   *bool   `mapstructure:"propagate"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate defaults to Enabled unless set explicitly.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	switch c.Driver {
	case "", DriverHTTP:
		if strings.TrimSpace(c.TargetURL) == "" {
			issues = append(issues, "target is required for the http driver (use --help for usage information)")
		}
		if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
			issues = append(issues, "body and body-file are mutually exclusive")
		}
	case DriverDiag:
		issues = append(issues, validateDiagConfig(c.Diag)...)
	default:
		issues = append(issues, fmt.Sprintf("driver must be 'http' or 'diag', got %q", c.Driver))
	}

	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High starting rate configured (%.0f RPS). Ensure you have authorization to test the target system.", c.Rate))
	}
	if c.Concurrency > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.", c.Concurrency))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}

	switch c.Strategy {
	case "", StrategyFindmax, StrategyOptimo:
	default:
		issues = append(issues, fmt.Sprintf("strategy must be 'findmax' or 'optimo', got %q", c.Strategy))
	}
	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be 'text', 'json' or 'yaml', got %q", c.Output))
	}
	if c.Dashboard && c.Output != "" && c.Output != OutputText {
		issues = append(issues, "dashboard requires text output")
	}
	for idx, expr := range c.ExpectJSON {
		if strings.TrimSpace(strings.SplitN(expr, "=", 2)[0]) == "" {
			issues = append(issues, fmt.Sprintf("expect-json[%d]: path is required", idx))
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}

	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateLoadPatterns(c.Warmup)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateDiagConfig(d DiagConfig) []string {
	var issues []string
	if d.Latency < 0 {
		issues = append(issues, "diag: latency must be >= 0")
	}
	if d.Capacity < 0 {
		issues = append(issues, "diag: capacity must be >= 0")
	}
	if d.FailureRatio < 0 || d.FailureRatio > 1 {
		issues = append(issues, "diag: failure_ratio must be between 0 and 1")
	}
	return issues
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateLoadPatterns(patterns []LoadPattern) []string {
	var issues []string
	for idx, pattern := range patterns {
		typeLabel := strings.TrimSpace(string(pattern.Type))
		if typeLabel == "" {
			issues = append(issues, fmt.Sprintf("warmup[%d]: type is required", idx))
			continue
		}
		switch LoadPatternType(strings.ToLower(typeLabel)) {
		case LoadPatternTypeRamp:
			if pattern.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("warmup[%d]: duration must be > 0 for ramp", idx))
			}
			if pattern.FromRPS < 0 || pattern.ToRPS < 0 {
				issues = append(issues, fmt.Sprintf("warmup[%d]: from_rps and to_rps must be >= 0", idx))
			}
		case LoadPatternTypeStep:
			if len(pattern.Steps) == 0 {
				issues = append(issues, fmt.Sprintf("warmup[%d]: steps are required for step pattern", idx))
			}
			for stepIdx, step := range pattern.Steps {
				if step.RPS < 0 {
					issues = append(issues, fmt.Sprintf("warmup[%d].steps[%d]: rps must be >= 0", idx, stepIdx))
				}
				if step.Duration <= 0 {
					issues = append(issues, fmt.Sprintf("warmup[%d].steps[%d]: duration must be > 0", idx, stepIdx))
				}
			}
		case LoadPatternTypeSpike:
			if pattern.RPS <= 0 {
				issues = append(issues, fmt.Sprintf("warmup[%d]: rps must be > 0 for spike", idx))
			}
			if pattern.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("warmup[%d]: duration must be > 0 for spike", idx))
			}
		default:
			issues = append(issues, fmt.Sprintf("warmup[%d]: unsupported type %q", idx, pattern.Type))
		}
	}
	return issues
}
