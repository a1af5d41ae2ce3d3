package runner

import (
	"sort"
	"time"
)

// warmupPlan is the rate schedule run before the flywheel reports ready.
type warmupPlan struct {
	segments []warmupSegment
}

// warmupSegment interpolates linearly from one rate to another until end.
type warmupSegment struct {
	end      time.Duration
	length   time.Duration
	from, to float64
}

func compileWarmup(patterns []LoadPattern) *warmupPlan {
	plan := &warmupPlan{}
	for _, p := range patterns {
		switch p.Type {
		case LoadPatternTypeRamp:
			plan.append(p.Duration, p.FromRPS, p.ToRPS)
		case LoadPatternTypeStep:
			for _, s := range p.Steps {
				plan.append(s.Duration, s.RPS, s.RPS)
			}
		case LoadPatternTypeSpike:
			plan.append(p.Duration, p.RPS, p.RPS)
		}
	}
	if len(plan.segments) == 0 {
		return nil
	}
	return plan
}

func (p *warmupPlan) append(d time.Duration, from, to float64) {
	if d <= 0 {
		return
	}
	p.segments = append(p.segments, warmupSegment{
		end:    p.length() + d,
		length: d,
		from:   from,
		to:     to,
	})
}

func (p *warmupPlan) length() time.Duration {
	if p == nil || len(p.segments) == 0 {
		return 0
	}
	return p.segments[len(p.segments)-1].end
}

// rateAt returns the scheduled rate at elapsed, or false once the plan is over.
func (p *warmupPlan) rateAt(elapsed time.Duration) (float64, bool) {
	if p == nil {
		return 0, false
	}
	elapsed = max(elapsed, 0)
	i := sort.Search(len(p.segments), func(i int) bool { return elapsed < p.segments[i].end })
	if i == len(p.segments) {
		return 0, false
	}
	seg := p.segments[i]
	into := elapsed - (seg.end - seg.length)
	return seg.from + (seg.to-seg.from)*float64(into)/float64(seg.length), true
}
