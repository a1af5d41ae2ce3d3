// Package runner provides the flywheel: a long-running, continuously adjustable
// workload that a parameter search can tune while it executes.
//
// The runner keeps a pool of worker goroutines fed by a single scheduler that
// paces operations with an arrival model. Unlike a fixed load test, its rate
// and concurrency are changed at runtime through fire-and-forget events:
//
//	r := runner.New(runner.Options{Concurrency: 8, RatePerSecond: 100, Requester: req})
//	if err := r.Start(ctx); err != nil {
//		return err
//	}
//	r.Emit(runner.SetRate{RPS: 400})
//	r.Emit(runner.SetThreads{Count: 32})
//	...
//	r.Stop()
//
// Events are queued without blocking the caller and applied in order by the
// runner's control goroutine.
//
// # Requester Interface
//
// The [Requester] interface defines what a worker executes:
//
//	type Requester interface {
//		Do(ctx context.Context) error
//	}
//
// # Arrival Models
//
//   - [ArrivalModelUniform]: operations at fixed intervals (token bucket)
//   - [ArrivalModelPoisson]: exponentially distributed inter-arrival times
//
// # Warmup
//
// Optional [LoadPattern] segments (ramp, step, spike) run before the runner
// reports itself ready through [Runner.AwaitReady]. After warmup the rate
// reverts to Options.RatePerSecond.
//
// # Metrics
//
// Every operation is recorded in a [metrics.Collector]. The runner exposes
// named counters, gauges and delta histograms so that a search can sample
// the live workload without reaching into its internals.
//
// # Middleware
//
//   - [WithLogging]: log operation failures
//   - [WithRetry]: retry with backoff, counting attempts for the tries histogram
package runner
