package runner

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// pacer releases one permit per operation at the flywheel's cycle rate.
// Wait is only called from the scheduling goroutine; SetRate may race with it.
type pacer interface {
	Wait(ctx context.Context) error
	SetRate(rps float64)
}

func newPacer(opt Options, initial float64) pacer {
	if opt.ArrivalModel == ArrivalModelPoisson {
		sample := opt.PoissonSampler
		if sample == nil {
			sample = rand.New(rand.NewSource(opt.RandomSeed)).ExpFloat64
		}
		p := &poissonPacer{sample: sample}
		p.SetRate(initial)
		return p
	}
	return &limiterPacer{limiter: opt.LimiterFactory(initial)}
}

// burstFor caps stored tokens at one second of traffic.
func burstFor(rps float64) int {
	return max(1, int(math.Ceil(rps)))
}

// limiterPacer spaces operations evenly.
type limiterPacer struct {
	limiter *rate.Limiter
}

func (l *limiterPacer) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

func (l *limiterPacer) SetRate(rps float64) {
	if rps <= 0 {
		l.limiter.SetLimit(rate.Inf)
		l.limiter.SetBurst(0)
		return
	}
	l.limiter.SetLimit(rate.Limit(rps))
	l.limiter.SetBurst(burstFor(rps))
}

// poissonPacer draws exponential gaps, so arrivals form a Poisson process.
type poissonPacer struct {
	rps    atomic.Uint64 // float64 bits
	sample func() float64
}

func (p *poissonPacer) SetRate(rps float64) {
	p.rps.Store(math.Float64bits(math.Max(rps, 0)))
}

func (p *poissonPacer) gap() time.Duration {
	rps := math.Float64frombits(p.rps.Load())
	if rps <= 0 {
		return 0
	}
	return time.Duration(math.Min(float64(time.Second)*p.sample()/rps, math.MaxInt64))
}

func (p *poissonPacer) Wait(ctx context.Context) error {
	d := p.gap()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
