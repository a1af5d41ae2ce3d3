package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/flywheel/internal/config"
	"github.com/torosent/flywheel/internal/dashboard"
	"github.com/torosent/flywheel/internal/findmax"
	"github.com/torosent/flywheel/internal/optimo"
	"github.com/torosent/flywheel/internal/output"
	"github.com/torosent/flywheel/internal/simframe"
	"github.com/torosent/flywheel/internal/telemetry"
)

type searchEnv struct {
	flywheel simframe.Flywheel
	runID    string
	log      *logrus.Entry
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
	progress *output.ProgressReporter
	dash     *dashboard.Dashboard
}

func runSearch(ctx context.Context, cfg *config.Config, env searchEnv) (output.Report, error) {
	if cfg.Strategy == config.StrategyOptimo {
		return runOptimo(ctx, cfg, env)
	}
	return runFindmax(ctx, cfg, env)
}

func observers[P simframe.Params](env searchEnv, strategy string) []simframe.Observer[P] {
	var obs []simframe.Observer[P]
	if env.metrics != nil {
		obs = append(obs, telemetry.Observer[P](env.metrics, strategy))
	}
	if env.progress != nil {
		obs = append(obs, output.FrameObserver[P](env.progress))
	}
	if env.dash != nil {
		obs = append(obs, dashboard.FrameObserver[P](env.dash))
	}
	return obs
}

func runFindmax(ctx context.Context, cfg *config.Config, env searchEnv) (output.Report, error) {
	settings, err := findmax.ParseSettings(cfg.Search)
	if err != nil {
		return output.Report{Strategy: findmax.Strategy, Status: output.StatusAborted, Error: err.Error()}, err
	}
	s := &findmax.Search{
		Flywheel:  env.flywheel,
		Settings:  settings,
		RunID:     env.runID,
		Logger:    env.log,
		Tracer:    env.tracer,
		Observers: observers[findmax.Params](env, findmax.Strategy),
	}
	out, err := s.Run(ctx)
	return findmaxReport(out, err), err
}

func findmaxReport(out findmax.Outcome, err error) output.Report {
	r := output.Report{Strategy: findmax.Strategy, Status: output.StatusConverged}
	if err != nil {
		r.Status = output.StatusAborted
		r.Error = err.Error()
	}

	for i, run := range out.Runs {
		var pass output.Pass
		if run.Journal != nil {
			pass.Frames = run.Journal.Records()
		}
		// Only the final pass can be incomplete.
		complete := err == nil || i < len(out.Runs)-1
		if complete && run.Journal != nil && run.Journal.Len() > 0 {
			best := run.Best.Record()
			pass.Best = &best
			if r.Best == nil || best.Value > r.Best.Value {
				r.Best = pass.Best
			}
		}
		r.Passes = append(r.Passes, pass)
	}

	if err == nil {
		r.Value = out.MeanValue
		r.Result = []simframe.NamedValue{{Name: "computed_rate", Value: out.MeanRate}}
	}
	return r
}

func runOptimo(ctx context.Context, cfg *config.Config, env searchEnv) (output.Report, error) {
	settings, err := optimo.ParseSettings(cfg.Search)
	if err != nil {
		return output.Report{Strategy: optimo.Strategy, Status: output.StatusAborted, Error: err.Error()}, err
	}
	s := &optimo.Search{
		Flywheel:  env.flywheel,
		Settings:  settings,
		RunID:     env.runID,
		Logger:    env.log,
		Tracer:    env.tracer,
		Observers: observers[optimo.Params](env, optimo.Strategy),
	}
	out, err := s.Run(ctx)
	return optimoReport(out, err), err
}

func optimoReport(out optimo.Outcome, err error) output.Report {
	r := output.Report{Strategy: optimo.Strategy, Status: output.StatusConverged}
	switch {
	case err != nil:
		r.Status = output.StatusAborted
		r.Error = err.Error()
	case out.Fallback:
		r.Status = output.StatusFallback
	}

	if out.Journal == nil {
		return r
	}
	pass := output.Pass{Frames: out.Journal.Records()}
	if err == nil && out.Journal.Len() > 0 {
		best := out.BestFrame.Record()
		pass.Best = &best
		r.Best = &best
		r.Result = out.Named
		r.Value = out.Result.Value
	} else if best, berr := out.Journal.BestRun(); berr == nil {
		// Partial journals still show where the search got to.
		rec := best.Record()
		pass.Best = &rec
	}
	r.Passes = []output.Pass{pass}
	return r
}
