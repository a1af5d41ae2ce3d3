package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/torosent/flywheel/internal/config"
	"github.com/torosent/flywheel/internal/dashboard"
	"github.com/torosent/flywheel/internal/logging"
	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/output"
	"github.com/torosent/flywheel/internal/runner"
	"github.com/torosent/flywheel/internal/telemetry"
	"github.com/torosent/flywheel/internal/threshold"
	"github.com/torosent/flywheel/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}
	runID := ulid.Make().String()
	log := logrus.NewEntry(logger).WithField("run", runID)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.WithError(err).Warn("tracing shutdown")
		}
	}()

	requester, err := newRequester(cfg, tp.Tracer(), log)
	if err != nil {
		return err
	}

	var tel *telemetry.Metrics
	if cfg.MetricsAddr != "" {
		tel = telemetry.New()
		srv := telemetry.NewServer(cfg.MetricsAddr, tel, log)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			_ = srv.Stop(sctx)
		}()
	}

	collector := metrics.NewCollector()
	fw := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		TotalRequests: cfg.Total,
		Duration:      cfg.Duration,
		RatePerSecond: cfg.Rate,
		Requester:     requester,
		Collector:     collector,
		ArrivalModel:  toRunnerArrivalModel(cfg.Arrival.Model),
		Warmup:        toRunnerLoadPatterns(cfg.Warmup),
	})

	var progress *output.ProgressReporter
	var dash *dashboard.Dashboard
	switch {
	case cfg.Dashboard:
		dash, err = dashboard.New(collector, dashboardInfo(cfg, runID), cancel)
		if err != nil {
			return err
		}
		defer dash.Stop()
		// The terminal belongs to the dashboard until it stops.
		logger.SetOutput(io.Discard)
		defer logger.SetOutput(stderr)
	case cfg.Output == config.OutputText:
		progress = output.NewProgressReporter(collector, progressInterval, stderr)
	}

	log.WithField("strategy", cfg.Strategy).Info("starting search")
	started := time.Now()
	if err := fw.Start(ctx); err != nil {
		return err
	}
	if progress != nil {
		progress.Start()
	}
	if dash != nil {
		dash.Start()
	}

	report, searchErr := runSearch(ctx, cfg, searchEnv{
		flywheel: fw,
		runID:    runID,
		log:      log,
		tracer:   tp.Tracer(),
		metrics:  tel,
		progress: progress,
		dash:     dash,
	})
	if progress != nil {
		progress.Stop()
	}
	if dash != nil {
		dash.Stop()
		logger.SetOutput(stderr)
	}
	fw.Stop()

	report.RunID = runID
	report.Started = started
	report.Elapsed = time.Since(started)
	report.Flywheel = collector.Stats(collector.Elapsed())
	if report.Best != nil && len(thresholds) > 0 {
		report.Thresholds = threshold.NewEvaluator(thresholds).Evaluate(*report.Best, report.Flywheel)
	}

	if err := output.WriteReport(stdout, output.Format(cfg.Output), report); err != nil {
		return err
	}
	if cfg.JournalOut != "" {
		err := output.WriteFile(cfg.JournalOut, func(f *os.File) error {
			return output.WriteReport(f, output.FormatJSON, report)
		})
		if err != nil {
			return fmt.Errorf("journal out: %w", err)
		}
	}

	if searchErr != nil {
		return searchErr
	}
	if failed := countFailed(report.Thresholds); failed > 0 {
		return fmt.Errorf("%d threshold(s) failed", failed)
	}
	return nil
}

func dashboardInfo(cfg *config.Config, runID string) dashboard.Info {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverHTTP
	}
	info := dashboard.Info{
		Driver:      string(driver),
		Strategy:    string(cfg.Strategy),
		RunID:       runID,
		Concurrency: cfg.Concurrency,
		Rate:        cfg.Rate,
		Duration:    cfg.Duration,
		ConfigFile:  cfg.ConfigFile,
	}
	if driver == config.DriverHTTP {
		info.Target = cfg.TargetURL
	}
	return info
}

func countFailed(results []threshold.Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	if model == config.ArrivalModelPoisson {
		return runner.ArrivalModelPoisson
	}
	return runner.ArrivalModelUniform
}

func toRunnerLoadPatterns(patterns []config.LoadPattern) []runner.LoadPattern {
	if len(patterns) == 0 {
		return nil
	}
	result := make([]runner.LoadPattern, len(patterns))
	for i, p := range patterns {
		steps := make([]runner.LoadStep, len(p.Steps))
		for j, s := range p.Steps {
			steps[j] = runner.LoadStep{RPS: s.RPS, Duration: s.Duration}
		}
		result[i] = runner.LoadPattern{
			Name:     p.Name,
			Type:     runner.LoadPatternType(p.Type),
			FromRPS:  p.FromRPS,
			ToRPS:    p.ToRPS,
			Duration: p.Duration,
			Steps:    steps,
			RPS:      p.RPS,
		}
	}
	return result
}
