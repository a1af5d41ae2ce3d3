package findmax

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/flywheel/internal/logging"
	"github.com/torosent/flywheel/internal/runner"
	"github.com/torosent/flywheel/internal/simframe"
	"github.com/torosent/flywheel/internal/tracing"
)

// Strategy is the name this search reports under.
const Strategy = "findmax"

// Search runs the ratchet AverageOf times against one flywheel.
type Search struct {
	Flywheel  simframe.Flywheel
	Settings  Settings
	RunID     string
	Logger    *logrus.Entry
	Tracer    trace.Tracer
	Observers []simframe.Observer[Params]
	// Sleep and Clock are replaced in tests to run on virtual time.
	Sleep simframe.SleepFunc
	Clock func() time.Time
}

// Run is the journal and best frame of one ratchet pass.
type Run struct {
	Journal *simframe.Journal[Params]
	Best    simframe.SimFrame[Params]
}

// Outcome summarizes all passes.
type Outcome struct {
	Runs      []Run
	MeanRate  float64
	MeanValue float64
}

// Run drives the flywheel until every pass converged, then stops it.
func (s *Search) Run(ctx context.Context) (out Outcome, err error) {
	if err := s.Settings.Validate(); err != nil {
		return out, err
	}
	log := s.Logger
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithField("strategy", Strategy)
	defer s.Flywheel.Stop()

	ctx, span := tracing.StartSearchSpan(ctx, s.Tracer, Strategy, s.RunID)
	defer func() { tracing.EndSpan(span, err) }()

	if err := s.Flywheel.AwaitReady(ctx); err != nil {
		return out, fmt.Errorf("awaiting flywheel: %w", err)
	}

	for pass := 0; pass < s.Settings.AverageOf; pass++ {
		run, err := s.runOnce(ctx, log.WithField("pass", pass+1))
		out.Runs = append(out.Runs, run)
		if err != nil {
			return out, fmt.Errorf("findmax pass %d: %w", pass+1, err)
		}
		log.WithField("pass", pass+1).Infof("best rate %.2f value %.6g after %d frames",
			run.Best.Params.ComputedRate(), run.Best.Value, run.Journal.Len())
	}

	for _, r := range out.Runs {
		out.MeanRate += r.Best.Params.ComputedRate()
		out.MeanValue += r.Best.Value
	}
	out.MeanRate /= float64(len(out.Runs))
	out.MeanValue /= float64(len(out.Runs))
	return out, nil
}

func (s *Search) runOnce(ctx context.Context, log *logrus.Entry) (Run, error) {
	var opts []simframe.CaptureOption
	if s.Clock != nil {
		opts = append(opts, simframe.WithClock(s.Clock))
	}
	capture := simframe.NewCapture(opts...)
	if err := simframe.AddThroughputSignals(capture, s.Flywheel); err != nil {
		return Run{}, err
	}

	journal := simframe.NewJournal[Params]()
	orchestrator := &simframe.Orchestrator[Params]{
		Planner: NewPlanner(s.Settings),
		Evaluator: &simframe.Evaluator[Params]{
			Flywheel:  s.Flywheel,
			Capture:   capture,
			Journal:   journal,
			Apply:     s.apply,
			Observers: s.Observers,
			Tracer:    s.Tracer,
			Logger:    log,
			Sleep:     s.Sleep,
		},
	}
	best, err := orchestrator.Run(ctx)
	if err != nil {
		return Run{Journal: journal}, err
	}
	return Run{Journal: journal, Best: best}, nil
}

func (s *Search) apply(p Params) {
	s.Flywheel.Emit(runner.SetRate{RPS: p.ComputedRate()})
}
