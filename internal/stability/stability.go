// Package stability waits for a noisy signal to settle before sampling.
package stability

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/torosent/flywheel/internal/logging"
)

// ErrNotConverged is returned when MaxWait elapses before the signal settles.
var ErrNotConverged = errors.New("signal did not stabilize")

// Detector samples Source every Slice into one ring per window size. Once
// every ring is full, stability is the product over windows of 1/(1+cv),
// cv being the window's coefficient of variation; Await returns when it
// exceeds Threshold.
type Detector struct {
	Source    func() float64
	Slice     time.Duration
	Threshold float64
	// Windows are ring sizes in descending order.
	Windows []int
	// MaxWait bounds Await; zero waits indefinitely.
	MaxWait time.Duration
	Logger  *logrus.Entry
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Validate checks the window layout.
func (d *Detector) Validate() error {
	if d.Source == nil {
		return errors.New("stability: source is required")
	}
	if d.Slice <= 0 {
		return fmt.Errorf("stability: slice must be > 0, got %s", d.Slice)
	}
	if len(d.Windows) < 2 {
		return fmt.Errorf("stability: at least two windows are required, got %v", d.Windows)
	}
	for i, w := range d.Windows {
		if w < 2 {
			return fmt.Errorf("stability: window %d must hold at least 2 samples, got %d", i, w)
		}
		if i > 0 && w > d.Windows[i-1] {
			return fmt.Errorf("stability: windows must be in descending size, got %v", d.Windows)
		}
	}
	return nil
}

// Await blocks until the source is stable. It returns the final stability
// score, which is -1 when the windows never filled.
func (d *Detector) Await(ctx context.Context) (float64, error) {
	if err := d.Validate(); err != nil {
		return -1, err
	}
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	rings := make([]*ring, len(d.Windows))
	for i, size := range d.Windows {
		rings[i] = newRing(size)
	}

	var waited time.Duration
	score := -1.0
	for {
		if err := sleep(ctx, d.Slice); err != nil {
			return score, err
		}
		waited += d.Slice

		v := d.Source()
		for _, r := range rings {
			r.add(v)
		}
		score = stabilityOf(rings)
		log.WithFields(logrus.Fields{"stability": score, "waited": waited}).Trace("stability sample")
		if score > d.Threshold {
			log.Debugf("stable after %s (%.3f)", waited, score)
			return score, nil
		}
		if d.MaxWait > 0 && waited >= d.MaxWait {
			return score, fmt.Errorf("%w after %s (stability %.3f, threshold %.3f)", ErrNotConverged, waited, score, d.Threshold)
		}
	}
}

func stabilityOf(rings []*ring) float64 {
	for _, r := range rings {
		if !r.full() {
			return -1
		}
	}
	score := 1.0
	for _, r := range rings {
		score *= 1 / (1 + variation(r.values()))
	}
	return score
}

// variation is the coefficient of variation. A constant series has none; a
// series varying around zero is treated as unbounded.
func variation(xs []float64) float64 {
	mean, std := stat.MeanStdDev(xs, nil)
	switch {
	case std == 0 || math.IsNaN(std):
		return 0
	case mean == 0:
		return math.Inf(1)
	default:
		return std / math.Abs(mean)
	}
}

// RateSource turns a cumulative counter into a per-second rate since the
// previous call.
func RateSource(counter func() int64, now func() time.Time) func() float64 {
	if now == nil {
		now = time.Now
	}
	last, lastAt := counter(), now()
	return func() float64 {
		cur, at := counter(), now()
		elapsed := at.Sub(lastAt).Seconds()
		delta := cur - last
		last, lastAt = cur, at
		if elapsed <= 0 {
			return 0
		}
		return float64(delta) / elapsed
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type ring struct {
	buf  []float64
	next int
	n    int
}

func newRing(size int) *ring {
	return &ring{buf: make([]float64, size)}
}

func (r *ring) add(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *ring) full() bool { return r.n == len(r.buf) }

func (r *ring) values() []float64 { return r.buf[:r.n] }
