// Package metrics collects per-operation measurements from the flywheel workers.
//
// The [Collector] keeps lock-free cumulative counters and hdrhistogram-backed
// latency and tries distributions. Counters are exposed by name so that a
// search can sample them at window boundaries without coordinating with the
// workers:
//
//	collector := metrics.NewCollector()
//	ops, _ := collector.Counter(metrics.NameResult)
//	before := ops()
//	// ... window elapses ...
//	perSecond := float64(ops()-before) / window.Seconds()
//
// # Delta Histograms
//
// [Collector.AttachDeltaHistogram] returns a [DeltaHistogram] that receives
// every value recorded after it was attached. Each call to
// [DeltaHistogram.Snapshot] returns the values recorded since the previous
// snapshot, which is what a capture window needs for per-frame percentiles.
//
// Latency histograms hold microseconds; the tries histogram holds attempt counts.
//
// # Thread Safety
//
// RecordRequest may be called from any number of goroutines. Counter suppliers
// read atomics and never block the workers.
package metrics
