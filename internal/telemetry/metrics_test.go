package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/flywheel/internal/simframe"
)

type shelfParams struct{ shelf float64 }

func (p shelfParams) SampleTime() time.Duration   { return time.Second }
func (p shelfParams) SettlingTime() time.Duration { return time.Second }
func (p shelfParams) Label() string               { return "TEST" }
func (p shelfParams) Values() []simframe.NamedValue {
	return []simframe.NamedValue{{Name: "rate_shelf", Value: p.shelf}}
}

func TestObserverUpdatesGauges(t *testing.T) {
	m := New()
	obs := Observer[shelfParams](m, "findmax")

	obs.Settling(shelfParams{}, 500*time.Millisecond, 2*time.Second)
	assert.Equal(t, 0.25, testutil.ToFloat64(m.settling))

	j := simframe.NewJournal[shelfParams]()
	first := j.Record(shelfParams{shelf: 100}, simframe.NewResult(90,
		simframe.Signal{Name: simframe.SignalTargetRate, Value: 100}))
	obs.Recorded(first, first)
	second := j.Record(shelfParams{shelf: 200}, simframe.NewResult(50,
		simframe.Signal{Name: simframe.SignalTargetRate, Value: 200}))
	best, err := j.BestRun()
	require.NoError(t, err)
	obs.Recorded(second, best)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames.WithLabelValues("findmax")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.frameValue))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.bestValue))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.rateShelf))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.targetRate))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.params.WithLabelValues("rate_shelf")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.signals.WithLabelValues(simframe.SignalTargetRate)))
	assert.Zero(t, testutil.ToFloat64(m.settling))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.bestValue.Set(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flywheel_search_best_value 42")
}

func TestServerServesMetrics(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := New()
	m.frames.WithLabelValues("optimo").Inc()
	srv := NewServer("127.0.0.1:0", m, logrus.NewEntry(logger))
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `flywheel_search_frames_total{strategy="optimo"} 1`)
}
