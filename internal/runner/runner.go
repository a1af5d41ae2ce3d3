package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/flywheel/internal/metrics"
)

// Gauge names exposed by Runner.Gauge.
const (
	GaugeCycleRate = "config_cyclerate"
	GaugeThreads   = "config_threads"
)

var (
	// ErrAlreadyStarted is returned by Start when called twice.
	ErrAlreadyStarted = errors.New("runner already started")
	// ErrStopped is returned by AwaitReady when the flywheel ends before warmup completes.
	ErrStopped = errors.New("runner stopped")
)

const warmupTick = 100 * time.Millisecond

// Requester abstracts executing a single operation.
// Implementations should return an error for failed operations.
type Requester interface {
	Do(ctx context.Context) error
}

// Result captures execution summary.
type Result struct {
	Total    int64
	Errors   int64
	Duration time.Duration
}

// Runner is a continuously running, adjustable workload.
type Runner struct {
	opt       Options
	collector *metrics.Collector
	plan      *warmupPlan
	pacer     pacer
	events    *eventQueue

	targetRate atomic.Uint64 // float64 bits
	threads    atomic.Int64
	states     [stateCount]atomic.Int64
	issued     atomic.Int64
	errs       atomic.Int64

	mu       sync.Mutex
	started  bool
	stopping bool
	workers  []*worker
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	permits  chan struct{}
	ready    chan struct{}
	done     chan struct{}
	startAt  time.Time
	finished time.Time
}

type worker struct {
	stop     chan struct{}
	retiring atomic.Bool
}

func New(opt Options) *Runner {
	opt.normalize()
	plan := compileWarmup(opt.Warmup)
	initial := opt.RatePerSecond
	if rps, ok := plan.rateAt(0); ok {
		initial = rps
	}
	r := &Runner{
		opt:       opt,
		collector: opt.Collector,
		plan:      plan,
		pacer:     newPacer(opt, initial),
		events:    newEventQueue(),
		permits:   make(chan struct{}),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.storeRate(opt.RatePerSecond)
	return r
}

// Collector returns the collector every operation is recorded in.
func (r *Runner) Collector() *metrics.Collector {
	return r.collector
}

// Start launches the scheduler, the workers and the control loop. The flywheel
// runs until Stop is called, ctx is cancelled, or a duration/total limit is hit.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true

	runCtx, cancel := context.WithCancel(ctx)
	cancelDeadline := context.CancelFunc(func() {})
	if r.opt.Duration > 0 {
		runCtx, cancelDeadline = context.WithTimeout(runCtx, r.opt.Duration)
	}
	r.runCtx = runCtx
	r.cancel = func() {
		cancelDeadline()
		cancel()
	}

	r.startAt = time.Now()
	r.collector.Start()
	for i := 0; i < r.opt.Concurrency; i++ {
		r.spawnLocked()
	}
	r.threads.Store(int64(r.opt.Concurrency))

	go r.control(runCtx)
	go r.supervise(runCtx)
	return nil
}

// Run starts the flywheel and blocks until it ends.
func (r *Runner) Run(ctx context.Context) Result {
	if err := r.Start(ctx); err != nil {
		return Result{}
	}
	return r.Wait()
}

// AwaitReady blocks until warmup has finished.
func (r *Runner) AwaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit queues a parameter change without waiting for it to be applied.
func (r *Runner) Emit(change ParamChange) {
	if change == nil {
		return
	}
	r.events.push(change)
}

// RunStateCount reports how many workers are currently in state.
func (r *Runner) RunStateCount(state RunState) int {
	if state < 0 || state >= stateCount {
		return 0
	}
	return int(r.states[state].Load())
}

// Counter returns a supplier for a cumulative operation counter.
func (r *Runner) Counter(name string) (func() int64, error) {
	return r.collector.Counter(name)
}

// Gauge returns a supplier for an instantaneous configuration gauge.
func (r *Runner) Gauge(name string) (func() float64, error) {
	switch name {
	case GaugeCycleRate:
		return func() float64 { return math.Float64frombits(r.targetRate.Load()) }, nil
	case GaugeThreads:
		return func() float64 { return float64(r.threads.Load()) }, nil
	default:
		return nil, fmt.Errorf("gauge %q: %w", name, metrics.ErrUnknownMetric)
	}
}

// DeltaHistogram attaches a delta histogram to a named distribution.
func (r *Runner) DeltaHistogram(name string) (*metrics.DeltaHistogram, error) {
	return r.collector.AttachDeltaHistogram(name)
}

// Stop ends the flywheel and waits for in-flight operations to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	started := r.started
	cancel := r.cancel
	r.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-r.done
}

// Done is closed once every worker has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the flywheel ends and returns its summary.
func (r *Runner) Wait() Result {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return Result{}
	}
	<-r.done
	return Result{
		Total:    r.issued.Load(),
		Errors:   r.errs.Load(),
		Duration: r.finished.Sub(r.startAt),
	}
}

// supervise runs the scheduler and tears the runner down once it returns.
func (r *Runner) supervise(ctx context.Context) {
	r.schedule(ctx)

	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
	r.finished = time.Now()
	close(r.done)
}

// schedule serializes pacing so bursts are not multiplied across workers.
func (r *Runner) schedule(ctx context.Context) {
	defer close(r.permits)
	for {
		if ctx.Err() != nil {
			return
		}
		if r.opt.TotalRequests > 0 && r.issued.Load() >= int64(r.opt.TotalRequests) {
			return
		}
		if err := r.pacer.Wait(ctx); err != nil {
			return
		}
		select {
		case r.permits <- struct{}{}:
			r.issued.Add(1)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) control(ctx context.Context) {
	if r.plan != nil {
		r.warmup(ctx)
		if ctx.Err() != nil {
			return
		}
		r.setRate(r.opt.RatePerSecond)
	}
	close(r.ready)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.events.wake:
			for _, change := range r.events.drain() {
				change.apply(r)
			}
		}
	}
}

func (r *Runner) warmup(ctx context.Context) {
	ticker := time.NewTicker(warmupTick)
	defer ticker.Stop()

	start := time.Now()
	for {
		rps, ok := r.plan.rateAt(time.Since(start))
		if !ok {
			return
		}
		r.setRate(rps)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) setRate(rps float64) {
	if rps < 0 {
		rps = 0
	}
	r.pacer.SetRate(rps)
	r.storeRate(rps)
}

func (r *Runner) storeRate(rps float64) {
	r.targetRate.Store(math.Float64bits(rps))
}

func (r *Runner) setThreads(n int) {
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping {
		return
	}
	for len(r.workers) < n {
		r.spawnLocked()
	}
	for len(r.workers) > n {
		last := r.workers[len(r.workers)-1]
		r.workers = r.workers[:len(r.workers)-1]
		if last.retiring.CompareAndSwap(false, true) {
			r.states[StateRunning].Add(-1)
			r.states[StateStopping].Add(1)
			close(last.stop)
		}
	}
	r.threads.Store(int64(n))
}

func (r *Runner) spawnLocked() {
	w := &worker{stop: make(chan struct{})}
	r.workers = append(r.workers, w)
	r.states[StateRunning].Add(1)
	r.wg.Add(1)
	go r.work(r.runCtx, w)
}

func (r *Runner) work(ctx context.Context, w *worker) {
	defer func() {
		if w.retiring.CompareAndSwap(false, true) {
			r.states[StateRunning].Add(-1)
		} else {
			r.states[StateStopping].Add(-1)
		}
		r.states[StateStopped].Add(1)
		r.wg.Done()
	}()

	for {
		select {
		case <-w.stop:
			return
		case _, ok := <-r.permits:
			if !ok {
				return
			}
			r.execute(ctx)
		}
	}
}

func (r *Runner) execute(ctx context.Context) {
	if r.opt.Requester == nil {
		return
	}
	opCtx, tries := withTries(ctx)
	start := time.Now()
	err := r.opt.Requester.Do(opCtx)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			// Interrupted by shutdown; not a workload failure.
			return
		}
		r.errs.Add(1)
	}
	r.collector.RecordRequest(latency, err, tries.count())
}
