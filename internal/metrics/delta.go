package metrics

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// DeltaHistogram accumulates values between snapshots.
type DeltaHistogram struct {
	name    string
	lowest  int64
	highest int64

	mu      sync.Mutex
	current *hdrhistogram.Histogram
}

func newDeltaHistogram(name string, lowest, highest int64) *DeltaHistogram {
	return &DeltaHistogram{
		name:    name,
		lowest:  lowest,
		highest: highest,
		current: hdrhistogram.New(lowest, highest, sigFigs),
	}
}

// Name returns the distribution this histogram is attached to.
func (d *DeltaHistogram) Name() string {
	return d.name
}

func (d *DeltaHistogram) record(v int64) {
	d.mu.Lock()
	_ = d.current.RecordValue(v)
	d.mu.Unlock()
}

// Snapshot returns the values recorded since the previous snapshot and starts
// a new interval. The returned histogram is owned by the caller.
func (d *DeltaHistogram) Snapshot() *hdrhistogram.Histogram {
	fresh := hdrhistogram.New(d.lowest, d.highest, sigFigs)
	d.mu.Lock()
	snap := d.current
	d.current = fresh
	d.mu.Unlock()
	return snap
}
