package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "flywheel",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Operation
	flags.String("driver", string(DriverHTTP), "Operation driver: 'http' or 'diag'")
	flags.String("target", "", "Target URL for the http driver")
	flags.String("method", "GET", "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-file", "", "Path to file containing the request body")
	flags.Duration("timeout", 30*time.Second, "Per-operation timeout")
	flags.Int("retries", 0, "Number of retries per operation")
	flags.StringSlice("expect-json", nil, "Response check as gjson path or path=value (repeatable)")
	flags.Duration("diag-latency", time.Millisecond, "Latency of each diag operation")
	flags.Float64("diag-capacity", 0, "Diag operations per second served before failing (0 means unlimited)")
	flags.Float64("diag-failure-ratio", 0, "Share of diag operations that fail")

	// Flywheel
	flags.IntP("concurrency", "c", 1, "Initial number of workers")
	flags.Float64P("rate", "r", 0, "Operations per second after warmup (0 means unlimited)")
	flags.DurationP("duration", "d", 0, "Lifetime cap of the flywheel (e.g. 10m)")
	flags.IntP("total", "t", 0, "Operations to issue before the flywheel stops (0 means unlimited)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing operations (uniform or poisson)")

	// Search
	flags.StringP("strategy", "s", string(StrategyFindmax), "Search strategy: 'findmax' or 'optimo'")
	flags.StringToString("search", nil, "Strategy setting as key=value (repeatable, e.g. rate_step=50)")
	flags.StringSlice("threshold", nil, "Assertion over the best frame (repeatable, e.g. 'achieved_ok_oprate >= 500')")

	// Output
	flags.StringP("output", "o", string(OutputText), "Report format: 'text', 'json' or 'yaml'")
	flags.String("journal-out", "", "Also write the report to this file")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "Log format: 'text' or 'json'")
	flags.Bool("log-errors", false, "Log each failed operation")
	flags.Bool("dashboard", false, "Show a live terminal view of the search instead of the progress line")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing
	flags.String("otel-endpoint", "", "OTLP collector endpoint; enables tracing")
	flags.String("otel-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("otel-insecure", false, "Disable TLS for the OTLP exporter")
	flags.String("otel-service-name", "", "Service name reported with spans")
	flags.Float64("otel-sample-rate", 1.0, "Trace sampling ratio between 0 and 1")
	flags.Bool("otel-propagate", true, "Inject W3C trace headers into outgoing requests")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies changed flags on top of file values.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := []struct {
		flag string
		set  func(string)
	}{
		{"driver", func(v string) { cfg.Driver = Driver(strings.ToLower(strings.TrimSpace(v))) }},
		{"target", func(v string) { cfg.TargetURL = strings.TrimSpace(v) }},
		{"method", func(v string) { cfg.Method = v }},
		{"body", func(v string) { cfg.Body, cfg.BodyFile = v, "" }},
		{"body-file", func(v string) { cfg.BodyFile, cfg.Body = v, "" }},
		{"arrival-model", func(v string) { cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(v))) }},
		{"strategy", func(v string) { cfg.Strategy = Strategy(strings.ToLower(strings.TrimSpace(v))) }},
		{"output", func(v string) { cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(v))) }},
		{"journal-out", func(v string) { cfg.JournalOut = strings.TrimSpace(v) }},
		{"metrics-addr", func(v string) { cfg.MetricsAddr = strings.TrimSpace(v) }},
		{"log-level", func(v string) { cfg.LogLevel = v }},
		{"log-format", func(v string) { cfg.LogFormat = v }},
		{"otel-endpoint", func(v string) { cfg.Tracing.Endpoint = strings.TrimSpace(v) }},
		{"otel-protocol", func(v string) { cfg.Tracing.Protocol = v }},
		{"otel-service-name", func(v string) { cfg.Tracing.ServiceName = v }},
	}
	for _, s := range strs {
		if !fs.Changed(s.flag) {
			continue
		}
		val, err := fs.GetString(s.flag)
		if err != nil {
			return err
		}
		s.set(val)
	}

	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("total") {
		val, err := fs.GetInt("total")
		if err != nil {
			return err
		}
		cfg.Total = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetFloat64("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("diag-capacity") {
		val, err := fs.GetFloat64("diag-capacity")
		if err != nil {
			return err
		}
		cfg.Diag.Capacity = val
	}
	if fs.Changed("diag-failure-ratio") {
		val, err := fs.GetFloat64("diag-failure-ratio")
		if err != nil {
			return err
		}
		cfg.Diag.FailureRatio = val
	}
	if fs.Changed("otel-sample-rate") {
		val, err := fs.GetFloat64("otel-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("diag-latency") {
		val, err := fs.GetDuration("diag-latency")
		if err != nil {
			return err
		}
		cfg.Diag.Latency = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("otel-insecure") {
		val, err := fs.GetBool("otel-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("otel-propagate") {
		val, err := fs.GetBool("otel-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if fs.Changed("search") {
		val, err := fs.GetStringToString("search")
		if err != nil {
			return err
		}
		if cfg.Search == nil {
			cfg.Search = map[string]string{}
		}
		for k, v := range val {
			cfg.Search[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	if fs.Changed("expect-json") {
		val, err := fs.GetStringSlice("expect-json")
		if err != nil {
			return err
		}
		cfg.ExpectJSON = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	return nil
}
