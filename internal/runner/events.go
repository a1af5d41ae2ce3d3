package runner

import (
	"fmt"
	"sync"
)

// ParamChange is an asynchronous adjustment to a running flywheel.
type ParamChange interface {
	apply(r *Runner)
	fmt.Stringer
}

// SetRate changes the target operation rate. Zero or negative means unlimited.
type SetRate struct {
	RPS float64
}

func (c SetRate) apply(r *Runner) { r.setRate(c.RPS) }

func (c SetRate) String() string { return fmt.Sprintf("rate=%.2f", c.RPS) }

// SetThreads resizes the worker pool. Counts below one are raised to one.
type SetThreads struct {
	Count int
}

func (c SetThreads) apply(r *Runner) { r.setThreads(c.Count) }

func (c SetThreads) String() string { return fmt.Sprintf("threads=%d", c.Count) }

// eventQueue collects changes from any goroutine and wakes the control loop.
type eventQueue struct {
	mu      sync.Mutex
	pending []ParamChange
	wake    chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

func (q *eventQueue) push(change ParamChange) {
	q.mu.Lock()
	q.pending = append(q.pending, change)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []ParamChange {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}
