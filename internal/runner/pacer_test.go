package runner

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestPoissonPacerGapScalesWithRate(t *testing.T) {
	p := &poissonPacer{sample: func() float64 { return 1 }}
	tests := []struct {
		rps  float64
		want time.Duration
	}{
		{rps: 200, want: 5 * time.Millisecond},
		{rps: 1, want: time.Second},
		{rps: 0, want: 0},
		{rps: -3, want: 0},
	}
	for _, tt := range tests {
		p.SetRate(tt.rps)
		if got := p.gap(); got != tt.want {
			t.Errorf("rps %v: gap = %s, want %s", tt.rps, got, tt.want)
		}
	}
}

func TestPoissonPacerWaitCancelled(t *testing.T) {
	p := &poissonPacer{sample: func() float64 { return 1 }}
	p.SetRate(0.000001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); err == nil {
		t.Fatal("expected context error when cancelled")
	}
}

func TestLimiterPacerSetRate(t *testing.T) {
	l := &limiterPacer{limiter: rate.NewLimiter(10, 1)}

	l.SetRate(99.5)
	if l.limiter.Limit() != 99.5 || l.limiter.Burst() != 100 {
		t.Errorf("limit/burst = %v/%d", l.limiter.Limit(), l.limiter.Burst())
	}
	l.SetRate(0)
	if l.limiter.Limit() != rate.Inf {
		t.Errorf("zero rate should be unlimited, got %v", l.limiter.Limit())
	}
}

func TestNewPacerModels(t *testing.T) {
	opt := Options{ArrivalModel: ArrivalModelPoisson, PoissonSampler: func() float64 { return 2 }}
	opt.normalize()
	p, ok := newPacer(opt, 100).(*poissonPacer)
	if !ok {
		t.Fatalf("poisson model built %T", p)
	}
	if got := p.gap(); got != 20*time.Millisecond {
		t.Errorf("gap = %s, want 20ms", got)
	}

	opt = Options{}
	opt.normalize()
	if _, ok := newPacer(opt, 100).(*limiterPacer); !ok {
		t.Error("uniform model should use a limiter")
	}
}

func TestWarmupPlan(t *testing.T) {
	plan := compileWarmup([]LoadPattern{
		{Type: LoadPatternTypeRamp, FromRPS: 10, ToRPS: 110, Duration: 10 * time.Second},
		{Type: LoadPatternTypeStep, Steps: []LoadStep{
			{RPS: 50, Duration: time.Second},
			{RPS: 0, Duration: 0},
			{RPS: 100, Duration: 2 * time.Second},
		}},
		{Type: LoadPatternTypeSpike, RPS: 500, Duration: 500 * time.Millisecond},
	})
	if plan == nil {
		t.Fatal("expected plan")
	}
	if plan.length() != 13500*time.Millisecond {
		t.Fatalf("length = %s", plan.length())
	}

	tests := []struct {
		at   time.Duration
		want float64
		ok   bool
	}{
		{at: -time.Second, want: 10, ok: true},
		{at: 5 * time.Second, want: 60, ok: true},
		{at: 10 * time.Second, want: 50, ok: true},
		{at: 11500 * time.Millisecond, want: 100, ok: true},
		{at: 13200 * time.Millisecond, want: 500, ok: true},
		{at: 13500 * time.Millisecond, ok: false},
	}
	for _, tt := range tests {
		got, ok := plan.rateAt(tt.at)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("rateAt(%s) = %v, %v; want %v, %v", tt.at, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCompileWarmupEmpty(t *testing.T) {
	if compileWarmup(nil) != nil {
		t.Error("no patterns should compile to nil")
	}
	if compileWarmup([]LoadPattern{{Type: LoadPatternTypeRamp, FromRPS: 1, ToRPS: 2}}) != nil {
		t.Error("zero-length patterns should compile to nil")
	}
	var plan *warmupPlan
	if _, ok := plan.rateAt(0); ok {
		t.Error("nil plan has no rate")
	}
}
