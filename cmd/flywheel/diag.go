package main

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/flywheel/internal/config"
)

// diagError names its own metrics error kind.
type diagError string

func (e diagError) Error() string { return "diag: " + string(e) }
func (e diagError) Kind() string  { return string(e) }

const (
	errOverloaded diagError = "overloaded"
	errInjected   diagError = "injected"
)

// diagRequester simulates a service with fixed latency and finite capacity.
// Operations beyond capacity fail immediately.
type diagRequester struct {
	latency      time.Duration
	capacity     *rate.Limiter
	failureRatio float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func newDiagRequester(cfg config.DiagConfig, seed int64) *diagRequester {
	d := &diagRequester{
		latency:      cfg.Latency,
		failureRatio: cfg.FailureRatio,
		rnd:          rand.New(rand.NewSource(seed)),
	}
	if cfg.Capacity > 0 {
		burst := int(math.Ceil(cfg.Capacity / 10))
		if burst < 1 {
			burst = 1
		}
		d.capacity = rate.NewLimiter(rate.Limit(cfg.Capacity), burst)
	}
	return d
}

func (d *diagRequester) Do(ctx context.Context) error {
	if d.capacity != nil && !d.capacity.Allow() {
		return errOverloaded
	}
	if d.latency > 0 {
		timer := time.NewTimer(d.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if d.failureRatio > 0 && d.roll() < d.failureRatio {
		return errInjected
	}
	return nil
}

func (d *diagRequester) roll() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rnd.Float64()
}
