package simframe

import (
	"errors"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

var (
	// ErrWindowOpen is returned when a window is started while one is open.
	ErrWindowOpen = errors.New("capture window already open")
	// ErrWindowClosed is returned when a window is stopped without being started.
	ErrWindowClosed = errors.New("capture window not open")
)

type entryKind int

const (
	kindDirect entryKind = iota
	kindDeltaTime
	kindHistogram
	kindRemix
)

// HistogramSource hands out the distribution recorded since its previous call.
type HistogramSource interface {
	Snapshot() *hdrhistogram.Histogram
}

type entry struct {
	name      string
	kind      entryKind
	factor    bool
	undefined float64

	gauge   func() float64
	counter func() int64
	hist    HistogramSource
	reduce  func(*hdrhistogram.Histogram) float64
	remix   func(Values) float64

	base int64
}

// EntryOption adjusts how a captured value contributes to the frame value.
type EntryOption func(*entry)

// AsFactor multiplies the entry into the frame value.
func AsFactor() EntryOption {
	return func(e *entry) { e.factor = true }
}

// NotFactor keeps the entry out of the frame value.
func NotFactor() EntryOption {
	return func(e *entry) { e.factor = false }
}

// CaptureOption configures a Capture.
type CaptureOption func(*Capture)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CaptureOption {
	return func(c *Capture) {
		if now != nil {
			c.now = now
		}
	}
}

// Capture samples named signals over a window and reduces them to a value.
//
// Direct, delta and histogram entries are read from the workload; remix
// entries are computed afterwards, in registration order, from values already
// captured in the same window. The frame value is the product of all factor
// entries. Remixes are factors unless NotFactor is given; other entries only
// with AsFactor.
type Capture struct {
	entries []*entry
	now     func() time.Time
	open    bool
	started time.Time
}

func NewCapture(opts ...CaptureOption) *Capture {
	c := &Capture{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddDirect records the value of a live gauge at window close. NaN or
// infinite readings are replaced by ifUndefined.
func (c *Capture) AddDirect(name string, gauge func() float64, ifUndefined float64, opts ...EntryOption) {
	c.add(&entry{name: name, kind: kindDirect, gauge: gauge, undefined: ifUndefined}, opts)
}

// AddDeltaTime records the per-second rate of a cumulative counter over the
// window. A zero-length window yields ifUndefined.
func (c *Capture) AddDeltaTime(name string, counter func() int64, ifUndefined float64, opts ...EntryOption) {
	c.add(&entry{name: name, kind: kindDeltaTime, counter: counter, undefined: ifUndefined}, opts)
}

// AddDeltaHistogram reduces the distribution recorded during the window. An
// empty window or an undefined reduction yields ifUndefined.
func (c *Capture) AddDeltaHistogram(name string, src HistogramSource, reduce func(*hdrhistogram.Histogram) float64, ifUndefined float64, opts ...EntryOption) {
	c.add(&entry{name: name, kind: kindHistogram, hist: src, reduce: reduce, undefined: ifUndefined}, opts)
}

// AddRemix derives a value from signals captured earlier in the same window.
// An undefined result is replaced by 1.0.
func (c *Capture) AddRemix(name string, fn func(Values) float64, opts ...EntryOption) {
	c.add(&entry{name: name, kind: kindRemix, remix: fn, factor: true, undefined: 1.0}, opts)
}

func (c *Capture) add(e *entry, opts []EntryOption) {
	for _, opt := range opts {
		opt(e)
	}
	c.entries = append(c.entries, e)
}

// Open reports whether a window is in progress.
func (c *Capture) Open() bool { return c.open }

// StartWindow marks the window start and samples every counter baseline.
func (c *Capture) StartWindow() error {
	if c.open {
		return ErrWindowOpen
	}
	for _, e := range c.entries {
		switch e.kind {
		case kindDeltaTime:
			e.base = e.counter()
		case kindHistogram:
			e.hist.Snapshot()
		}
	}
	c.open = true
	c.started = c.now()
	return nil
}

// StopWindow closes the window and returns its Result.
func (c *Capture) StopWindow() (Result, error) {
	if !c.open {
		return Result{}, ErrWindowClosed
	}
	c.open = false
	elapsed := c.now().Sub(c.started).Seconds()

	values := make(Values, len(c.entries))
	signals := make([]Signal, 0, len(c.entries))
	byName := make(map[string]int, len(c.entries))
	put := func(e *entry, v float64) {
		values[e.name] = v
		if i, ok := byName[e.name]; ok {
			signals[i] = Signal{Name: e.name, Value: v, Factor: e.factor}
			return
		}
		byName[e.name] = len(signals)
		signals = append(signals, Signal{Name: e.name, Value: v, Factor: e.factor})
	}

	for _, e := range c.entries {
		if e.kind == kindRemix {
			continue
		}
		put(e, c.measure(e, elapsed))
	}
	for _, e := range c.entries {
		if e.kind != kindRemix {
			continue
		}
		v := e.remix(values)
		if undefined(v) {
			v = e.undefined
		}
		put(e, v)
	}

	value, factors := 1.0, 0
	for _, s := range signals {
		if !s.Factor {
			continue
		}
		factors++
		if undefined(s.Value) {
			continue
		}
		value *= s.Value
	}
	if factors == 0 {
		value = 0
	}
	return Result{signals: signals, value: value}, nil
}

func (c *Capture) measure(e *entry, elapsed float64) float64 {
	var v float64
	switch e.kind {
	case kindDirect:
		v = e.gauge()
	case kindDeltaTime:
		if elapsed <= 0 {
			return e.undefined
		}
		v = float64(e.counter()-e.base) / elapsed
	case kindHistogram:
		h := e.hist.Snapshot()
		if h == nil || h.TotalCount() == 0 {
			return e.undefined
		}
		v = e.reduce(h)
	}
	if undefined(v) {
		return e.undefined
	}
	return v
}
