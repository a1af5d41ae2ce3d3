package optimo

import (
	"fmt"
	"math"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/simframe"
)

// Signal names added on top of the throughput profile.
const (
	SignalRetriesP99    = "retries_p99"
	SignalLatencyCutoff = "latency_cutoff"
)

// addSignals registers the throughput profile plus penalties for retried
// operations and for tail latency above the cutoff.
func addSignals(c *simframe.Capture, fw simframe.Flywheel, s Settings) error {
	if err := simframe.AddThroughputSignals(c, fw); err != nil {
		return err
	}
	tries, err := fw.DeltaHistogram(metrics.NameTries)
	if err != nil {
		return fmt.Errorf("tries histogram: %w", err)
	}
	latency, err := fw.DeltaHistogram(metrics.NameResult)
	if err != nil {
		return fmt.Errorf("latency histogram: %w", err)
	}

	c.AddDeltaHistogram(SignalRetriesP99, tries, inverseP99, 1.0, simframe.AsFactor())
	c.AddDeltaHistogram(SignalLatencyCutoff, latency, func(h *hdrhistogram.Histogram) float64 {
		ms := float64(h.ValueAtQuantile(s.CutoffQuantile*100)) / 1000
		return simframe.SigmoidE4LowPass(ms, s.CutoffMs)
	}, 1.0, simframe.AsFactor())
	return nil
}

func inverseP99(h *hdrhistogram.Histogram) float64 {
	p99 := float64(h.ValueAtQuantile(99))
	if p99 == 0 {
		return math.NaN()
	}
	return 1 / p99
}
