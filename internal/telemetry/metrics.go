// Package telemetry exports search progress as Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/flywheel/internal/simframe"
)

const namespace = "flywheel_search"

// Metrics holds the search gauges on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	rateShelf  prometheus.Gauge
	targetRate prometheus.Gauge
	frameValue prometheus.Gauge
	bestValue  prometheus.Gauge
	settling   prometheus.Gauge
	params     *prometheus.GaugeVec
	signals    *prometheus.GaugeVec
	frames     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rateShelf: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_shelf",
			Help:      "Rate shelf of the most recent findmax frame.",
		}),
		targetRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_rate",
			Help:      "Target operation rate measured in the most recent frame.",
		}),
		frameValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frame_value",
			Help:      "Value of the most recent frame.",
		}),
		bestValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_value",
			Help:      "Highest frame value recorded so far.",
		}),
		settling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "settling_ratio",
			Help:      "Fraction of the current frame's settling time elapsed.",
		}),
		params: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "param",
			Help:      "Control parameters of the most recent frame.",
		}, []string{"name"}),
		signals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal",
			Help:      "Signals captured in the most recent frame.",
		}, []string{"name"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames recorded, by strategy.",
		}, []string{"strategy"}),
	}
	m.registry.MustRegister(
		m.rateShelf, m.targetRate, m.frameValue, m.bestValue, m.settling,
		m.params, m.signals, m.frames,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Observer returns a frame observer that updates m under the strategy label.
func Observer[P simframe.Params](m *Metrics, strategy string) simframe.Observer[P] {
	return &observer[P]{m: m, strategy: strategy}
}

type observer[P simframe.Params] struct {
	m        *Metrics
	strategy string
}

func (o *observer[P]) Settling(_ P, waited, total time.Duration) {
	if total <= 0 {
		return
	}
	o.m.settling.Set(min(1, waited.Seconds()/total.Seconds()))
}

func (o *observer[P]) Recorded(frame, best simframe.SimFrame[P]) {
	o.m.frames.WithLabelValues(o.strategy).Inc()
	o.m.frameValue.Set(frame.Value)
	o.m.bestValue.Set(best.Value)
	o.m.settling.Set(0)
	for _, v := range frame.Params.Values() {
		o.m.params.WithLabelValues(v.Name).Set(v.Value)
		if v.Name == "rate_shelf" {
			o.m.rateShelf.Set(v.Value)
		}
	}
	for _, s := range frame.Result.Signals() {
		o.m.signals.WithLabelValues(s.Name).Set(s.Value)
	}
	if target, ok := frame.Result.Get(simframe.SignalTargetRate); ok {
		o.m.targetRate.Set(target)
	}
}
