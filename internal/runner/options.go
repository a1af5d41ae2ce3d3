package runner

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/flywheel/internal/metrics"
)

// ArrivalModel selects how the scheduler spaces operations.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// LoadPatternType names a warmup segment shape.
type LoadPatternType string

const (
	LoadPatternTypeRamp  LoadPatternType = "ramp"
	LoadPatternTypeStep  LoadPatternType = "step"
	LoadPatternTypeSpike LoadPatternType = "spike"
)

// LoadPattern is one warmup segment.
type LoadPattern struct {
	Name     string
	Type     LoadPatternType
	FromRPS  float64
	ToRPS    float64
	Duration time.Duration
	Steps    []LoadStep
	RPS      float64
}

// LoadStep is a fixed-rate interval inside a step pattern.
type LoadStep struct {
	RPS      float64
	Duration time.Duration
}

// Options configure the Runner.
type Options struct {
	Concurrency    int                             // initial number of worker goroutines
	TotalRequests  int                             // operations to issue before the flywheel stops (0 means unlimited)
	Duration       time.Duration                   // lifetime cap (0 means run until stopped)
	RatePerSecond  float64                         // operations per second after warmup (0 means unlimited)
	Requester      Requester                       // operation executor (required)
	Collector      *metrics.Collector              // created when nil
	ArrivalModel   ArrivalModel                    // uniform by default
	PoissonSampler func() float64                  // optional exponential sampler for tests
	RandomSeed     int64                           // seed for the poisson sampler
	Warmup         []LoadPattern                   // segments executed before readiness
	LimiterFactory func(rps float64) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps float64) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), burstFor(rps))
		}
	}
}
