package simframe

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/flywheel/internal/logging"
	"github.com/torosent/flywheel/internal/tracing"
)

const defaultProgressTick = time.Second

// Observer is notified as frames progress.
type Observer[P Params] interface {
	Settling(params P, waited, total time.Duration)
	Recorded(frame SimFrame[P], best SimFrame[P])
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Evaluator runs a single frame: apply, settle, sample, record.
type Evaluator[P Params] struct {
	Flywheel Flywheel
	Capture  *Capture
	Journal  *Journal[P]
	// Apply effects the parameters onto the flywheel.
	Apply func(P)
	// Settle replaces the fixed settling sleep when set.
	Settle    func(ctx context.Context, params P) error
	Observers []Observer[P]
	Tracer    trace.Tracer
	Logger    *logrus.Entry
	Sleep     SleepFunc
	// ProgressTick splits the settling sleep so observers see progress.
	ProgressTick time.Duration
}

func (e *Evaluator[P]) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

func (e *Evaluator[P]) logger() *logrus.Entry {
	if e.Logger == nil {
		return logging.Discard()
	}
	return e.Logger
}

// Evaluate runs one frame and returns it as recorded in the journal.
func (e *Evaluator[P]) Evaluate(ctx context.Context, params P) (frame SimFrame[P], err error) {
	if err := CheckLive(e.Flywheel); err != nil {
		return frame, err
	}

	index := e.Journal.Len()
	ctx, span := tracing.StartFrameSpan(ctx, e.Tracer, index, params.Label())
	defer func() {
		tracing.EndSpan(span, err, attribute.Float64("flywheel.frame.value", frame.Value))
	}()

	log := e.logger().WithFields(logrus.Fields{"frame": index, "reason": params.Label()})
	log.Debugf("applying %s", FormatValues(params.Values()))
	if e.Apply != nil {
		e.Apply(params)
	}

	if e.Settle != nil {
		err = e.Settle(ctx, params)
	} else {
		err = e.settle(ctx, params)
	}
	if err != nil {
		return frame, fmt.Errorf("frame %d settling: %w", index, err)
	}

	result, err := e.sample(ctx, params.SampleTime())
	if err != nil {
		return frame, fmt.Errorf("frame %d capture: %w", index, err)
	}

	frame = e.Journal.Record(params, result)
	best, err := e.Journal.BestRun()
	if err != nil {
		return frame, err
	}
	for _, o := range e.Observers {
		o.Recorded(frame, best)
	}
	log.WithField("value", frame.Value).Infof("frame %d %s", frame.Index, FormatValues(params.Values()))

	if err := CheckLive(e.Flywheel); err != nil {
		return frame, err
	}
	return frame, nil
}

func (e *Evaluator[P]) settle(ctx context.Context, params P) error {
	total := params.SettlingTime()
	tick := e.ProgressTick
	if tick <= 0 {
		tick = defaultProgressTick
	}
	var waited time.Duration
	for waited < total {
		step := min(tick, total-waited)
		if err := e.sleep(ctx, step); err != nil {
			return err
		}
		waited += step
		for _, o := range e.Observers {
			o.Settling(params, waited, total)
		}
	}
	return nil
}

func (e *Evaluator[P]) sample(ctx context.Context, d time.Duration) (Result, error) {
	if err := e.Capture.StartWindow(); err != nil {
		return Result{}, err
	}
	if err := e.sleep(ctx, d); err != nil {
		_, _ = e.Capture.StopWindow()
		return Result{}, err
	}
	return e.Capture.StopWindow()
}
