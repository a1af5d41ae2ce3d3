package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/simframe"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time

	mu     sync.Mutex
	status string
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line(time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line(elapsed time.Duration) string {
	stats := p.collector.Stats(elapsed)
	line := fmt.Sprintf("\rOps: %d | Failures: %d | OPS: %.1f", stats.Total, stats.Failures, stats.RequestsPerSec)
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()
	if status != "" {
		line += " | " + status
	}
	return line
}

func (p *ProgressReporter) setStatus(s string) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// FrameObserver feeds planner progress into the reporter's status line.
func FrameObserver[P simframe.Params](p *ProgressReporter) simframe.Observer[P] {
	return &frameObserver[P]{p: p}
}

type frameObserver[P simframe.Params] struct {
	p *ProgressReporter
}

func (o *frameObserver[P]) Settling(params P, waited, total time.Duration) {
	o.p.setStatus(fmt.Sprintf("settling %s %s/%s",
		simframe.FormatValues(params.Values()), waited.Round(time.Second), total.Round(time.Second)))
}

func (o *frameObserver[P]) Recorded(frame, best simframe.SimFrame[P]) {
	o.p.setStatus(fmt.Sprintf("frame %d %s value=%.4g best=%.4g",
		frame.Index, frame.Params.Label(), frame.Value, best.Value))
}
