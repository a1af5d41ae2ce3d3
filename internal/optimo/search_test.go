package optimo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/flywheel/internal/runner"
	"github.com/torosent/flywheel/internal/simframe"
	"github.com/torosent/flywheel/internal/simframe/simframetest"
)

// scriptedOptimizer evaluates a fixed list of points and then returns err.
type scriptedOptimizer struct {
	points [][]float64
	result Point
	err    error
}

func (o *scriptedOptimizer) Maximize(_ context.Context, p Problem) (Point, error) {
	for _, x := range o.points {
		if _, err := p.Objective(x); err != nil {
			return Point{}, err
		}
	}
	return o.result, o.err
}

func fixedSettling() Settings {
	s := DefaultSettings()
	s.StabilityMax = 0
	return s
}

func newSearch(fw *simframetest.Flywheel, s Settings, opt Optimizer) *Search {
	logger, _ := test.NewNullLogger()
	return &Search{
		Flywheel:  fw,
		Settings:  s,
		RunID:     "test",
		Optimizer: opt,
		Logger:    logrus.NewEntry(logger),
		Sleep:     fw.Sleep,
		Clock:     fw.Now,
	}
}

func ratePoints(rates ...float64) [][]float64 {
	out := make([][]float64, len(rates))
	for i, r := range rates {
		out[i] = []float64{r, 50}
	}
	return out
}

func TestSearchFallsBackToBestFrame(t *testing.T) {
	fw := simframetest.New(simframetest.Saturating(260))
	opt := &scriptedOptimizer{
		points: ratePoints(100, 300, 250, 200, 50),
		err:    ErrTrustRegionExhausted,
	}
	out, err := newSearch(fw, fixedSettling(), opt).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, out.Fallback)
	assert.Equal(t, 5, out.Journal.Len())
	assert.Equal(t, []float64{250, 50}, out.Result.X)
	assert.InDelta(t, 250, out.Result.Value, 1)
	assert.Equal(t, 2, out.BestFrame.Index)
	assert.Equal(t, []simframe.NamedValue{{Name: ParamRate, Value: 250}, {Name: ParamThreads, Value: 50}}, out.Named)
	assert.True(t, fw.Stopped())

	events := fw.Events()
	require.Len(t, events, 10)
	assert.Equal(t, runner.SetRate{RPS: 300}, events[2])
	assert.Equal(t, runner.SetThreads{Count: 50}, events[3])
}

func TestSearchReturnsOptimizerResult(t *testing.T) {
	fw := simframetest.New(simframetest.Saturating(260))
	opt := &scriptedOptimizer{
		points: ratePoints(100, 200),
		result: Point{X: []float64{200, 50}, Value: 200},
	}
	out, err := newSearch(fw, fixedSettling(), opt).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Equal(t, []float64{200, 50}, out.Result.X)
	assert.Equal(t, 1, out.BestFrame.Index)
}

func TestSearchPropagatesOptimizerFailure(t *testing.T) {
	fw := simframetest.New(simframetest.Saturating(260))
	broken := errors.New("broken")
	_, err := newSearch(fw, fixedSettling(), &scriptedOptimizer{err: broken}).Run(context.Background())
	assert.ErrorIs(t, err, broken)
	assert.True(t, fw.Stopped())
}

func TestSearchPenalizesTailLatency(t *testing.T) {
	fw := simframetest.New(simframetest.Saturating(1000)).WithLatency(func(rate float64, _ int) time.Duration {
		if rate > 200 {
			return 200 * time.Millisecond
		}
		return 10 * time.Millisecond
	})
	opt := &scriptedOptimizer{points: ratePoints(150, 250), err: ErrTrustRegionExhausted}
	out, err := newSearch(fw, fixedSettling(), opt).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{150, 50}, out.Result.X)
	frames := out.Journal.Frames()
	cutoff, ok := frames[1].Result.Get(SignalLatencyCutoff)
	require.True(t, ok)
	assert.Less(t, cutoff, 1e-6)
	retries, ok := frames[0].Result.Get(SignalRetriesP99)
	require.True(t, ok)
	assert.Equal(t, 1.0, retries)
}

func TestSearchSettlesOnStability(t *testing.T) {
	fw := simframetest.New(simframetest.Saturating(260))
	s := DefaultSettings()
	s.StabilityWindows = []int{4, 2}
	s.StabilityMax = 10 * time.Second
	start := fw.Now()

	opt := &scriptedOptimizer{points: ratePoints(100), err: ErrTrustRegionExhausted}
	out, err := newSearch(fw, s, opt).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Journal.Len())
	// four stability slices, then the sample window
	assert.Equal(t, 4*s.StabilitySlice+s.SampleTime, fw.Now().Sub(start))
}

func TestSearchAbortsWhenFlywheelDies(t *testing.T) {
	fw := simframetest.New(simframetest.Saturating(260))
	fw.KillAfter = 3
	opt := &scriptedOptimizer{points: ratePoints(100, 200, 250), err: ErrTrustRegionExhausted}
	out, err := newSearch(fw, fixedSettling(), opt).Run(context.Background())
	assert.ErrorIs(t, err, simframe.ErrFlywheelStopped)
	assert.Equal(t, 2, out.Journal.Len())
}

func TestSearchWithNelderMead(t *testing.T) {
	fw := simframetest.New(simframetest.Saturating(260)).WithLatency(func(float64, int) time.Duration {
		return 5 * time.Millisecond
	})
	s := fixedSettling()
	s.MaxEvals = 30
	out, err := newSearch(fw, s, nil).Run(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, out.Journal.Len(), 30)
	assert.Greater(t, out.Result.X[0], 100.0)
	assert.GreaterOrEqual(t, out.Result.X[0], 10.0)
	assert.LessOrEqual(t, out.Result.X[0], 400.0)
	assert.Greater(t, out.Result.Value, 140.0)
}

func TestBuildModelRejectsUnknownParameter(t *testing.T) {
	fw := simframetest.New(simframetest.Saturating(260))
	_, err := BuildModel([]ParamSpec{{Name: "depth", Lower: 1, Initial: 2, Upper: 3}}, fw)
	assert.Error(t, err)
}
