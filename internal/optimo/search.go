package optimo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/flywheel/internal/logging"
	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/runner"
	"github.com/torosent/flywheel/internal/simframe"
	"github.com/torosent/flywheel/internal/stability"
	"github.com/torosent/flywheel/internal/tracing"
)

// Strategy is the name this search reports under.
const Strategy = "optimo"

// Parameters with built-in effectors.
const (
	ParamRate    = "rate"
	ParamThreads = "threads"
)

// Search maximizes the frame value over the parameter model.
type Search struct {
	Flywheel  simframe.Flywheel
	Settings  Settings
	RunID     string
	Optimizer Optimizer
	Logger    *logrus.Entry
	Tracer    trace.Tracer
	Observers []simframe.Observer[Params]
	// Sleep and Clock are replaced in tests to run on virtual time.
	Sleep simframe.SleepFunc
	Clock func() time.Time
}

// Outcome is the optimizer's answer and the journal that produced it.
type Outcome struct {
	Journal *simframe.Journal[Params]
	// Result is the optimizer's point, or the best frame's after a fallback.
	Result    Point
	Named     []simframe.NamedValue
	BestFrame simframe.SimFrame[Params]
	Fallback  bool
}

// Run drives the flywheel through the optimization, then stops it.
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

	model, err := BuildModel(s.Settings.ParamSpecs(), s.Flywheel)
	if err != nil {
		return out, err
	}
	if err := s.Flywheel.AwaitReady(ctx); err != nil {
		return out, fmt.Errorf("awaiting flywheel: %w", err)
	}

	eval, err := s.evaluator(model, log)
	if err != nil {
		return out, err
	}
	out.Journal = eval.Journal

	objective := func(x []float64) (float64, error) {
		params, err := model.Params(x)
		if err != nil {
			return math.NaN(), err
		}
		frame, err := eval.Evaluate(ctx, params.withTiming(s.Settings.SampleTime, s.Settings.MinSettling))
		if err != nil {
			return math.NaN(), err
		}
		return frame.Value, nil
	}

	optimizer := s.Optimizer
	if optimizer == nil {
		optimizer = NewNelderMead()
	}
	result, err := optimizer.Maximize(ctx, Problem{
		Objective:           objective,
		Initial:             model.InitialGuess(),
		Lower:               model.Lower(),
		Upper:               model.Upper(),
		InterpolationPoints: s.Settings.Interpolation(model.Len()),
		InitialRadius:       s.Settings.InitialRadius,
		StoppingRadius:      s.Settings.StoppingRadius,
		MaxEvals:            s.Settings.MaxEvals,
	})
	switch {
	case errors.Is(err, ErrTrustRegionExhausted):
		best, berr := eval.Journal.BestRun()
		if berr != nil {
			return out, fmt.Errorf("%w: %w", err, berr)
		}
		log.WithError(err).Warnf("falling back to best of %d journaled frames", eval.Journal.Len())
		result = Point{X: best.Params.Point(), Value: best.Value}
		out.Fallback = true
	case err != nil:
		return out, fmt.Errorf("optimo: %w", err)
	}

	out.Result = result
	if p, perr := model.Params(result.X); perr == nil {
		out.Named = p.Values()
	}
	if best, berr := eval.Journal.BestRun(); berr == nil {
		out.BestFrame = best
	}
	log.Infof("result %s value %.6g after %d frames", simframe.FormatValues(out.Named), result.Value, eval.Journal.Len())
	return out, nil
}

func (s *Search) evaluator(model *ParamModel, log *logrus.Entry) (*simframe.Evaluator[Params], error) {
	var opts []simframe.CaptureOption
	if s.Clock != nil {
		opts = append(opts, simframe.WithClock(s.Clock))
	}
	capture := simframe.NewCapture(opts...)
	if err := addSignals(capture, s.Flywheel, s.Settings); err != nil {
		return nil, err
	}

	apply := func(p Params) {
		if _, err := model.Apply(p.Point()); err != nil {
			log.WithError(err).Error("applying parameters")
		}
	}
	eval := &simframe.Evaluator[Params]{
		Flywheel:  s.Flywheel,
		Capture:   capture,
		Journal:   simframe.NewJournal[Params](),
		Apply:     apply,
		Observers: s.Observers,
		Tracer:    s.Tracer,
		Logger:    log,
		Sleep:     s.Sleep,
	}
	if !s.Settings.StabilityEnabled() {
		return eval, nil
	}

	ok, err := s.Flywheel.Counter(metrics.NameResultSuccess)
	if err != nil {
		return nil, fmt.Errorf("stability source: %w", err)
	}
	eval.Settle = func(ctx context.Context, _ Params) error {
		detector := stability.Detector{
			Source:    stability.RateSource(ok, s.Clock),
			Slice:     s.Settings.StabilitySlice,
			Threshold: s.Settings.StabilityThreshold,
			Windows:   s.Settings.StabilityWindows,
			MaxWait:   s.Settings.StabilityMax,
			Logger:    log,
			Sleep:     s.Sleep,
		}
		_, err := detector.Await(ctx)
		if errors.Is(err, stability.ErrNotConverged) {
			log.WithError(err).Warn("sampling an unsettled frame")
			return nil
		}
		return err
	}
	return eval, nil
}

// BuildModel binds specs to the flywheel's effectors.
func BuildModel(specs []ParamSpec, fw simframe.Flywheel) (*ParamModel, error) {
	model := NewParamModel()
	for _, spec := range specs {
		var effector func(float64)
		switch spec.Name {
		case ParamRate:
			effector = func(v float64) { fw.Emit(runner.SetRate{RPS: v}) }
		case ParamThreads:
			effector = func(v float64) { fw.Emit(runner.SetThreads{Count: int(math.Round(v))}) }
		default:
			return nil, fmt.Errorf("optimo: no effector for parameter %q", spec.Name)
		}
		if err := model.Add(spec.Name, spec.Lower, spec.Initial, spec.Upper, effector); err != nil {
			return nil, err
		}
	}
	return model, nil
}
