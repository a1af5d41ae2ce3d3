package simframe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyJournal is returned when a journal is queried before any frame was recorded.
var ErrEmptyJournal = errors.New("journal is empty")

// SimFrame is one recorded trial.
type SimFrame[P Params] struct {
	Index  int
	Params P
	Result Result
	Value  float64
}

// Journal is the append-only history of one search. It is not safe for
// concurrent use.
type Journal[P Params] struct {
	frames []SimFrame[P]
}

func NewJournal[P Params]() *Journal[P] {
	return &Journal[P]{}
}

// Record appends a frame. Indices start at zero and follow insertion order.
func (j *Journal[P]) Record(params P, result Result) SimFrame[P] {
	frame := SimFrame[P]{
		Index:  len(j.frames),
		Params: params,
		Result: result,
		Value:  result.Value(),
	}
	j.frames = append(j.frames, frame)
	return frame
}

// Last returns the most recently recorded frame.
func (j *Journal[P]) Last() (SimFrame[P], error) {
	if len(j.frames) == 0 {
		return SimFrame[P]{}, ErrEmptyJournal
	}
	return j.frames[len(j.frames)-1], nil
}

// BestRun returns the frame with the highest value. On ties the earliest frame wins.
func (j *Journal[P]) BestRun() (SimFrame[P], error) {
	if len(j.frames) == 0 {
		return SimFrame[P]{}, ErrEmptyJournal
	}
	best := j.frames[0]
	for _, f := range j.frames[1:] {
		if f.Value > best.Value {
			best = f
		}
	}
	return best, nil
}

func (j *Journal[P]) Len() int { return len(j.frames) }

// Frames returns a copy of all frames in order.
func (j *Journal[P]) Frames() []SimFrame[P] {
	return append([]SimFrame[P](nil), j.frames...)
}

// FrameRecord is the rendering-friendly form of a SimFrame.
type FrameRecord struct {
	Index   int          `json:"index" yaml:"index"`
	Label   string       `json:"label" yaml:"label"`
	Params  []NamedValue `json:"params" yaml:"params"`
	Signals []Signal     `json:"signals" yaml:"signals"`
	Value   float64      `json:"value" yaml:"value"`
}

// Record projects a frame for reporting.
func (f SimFrame[P]) Record() FrameRecord {
	return FrameRecord{
		Index:   f.Index,
		Label:   f.Params.Label(),
		Params:  f.Params.Values(),
		Signals: f.Result.Signals(),
		Value:   f.Value,
	}
}

// Records returns every frame projected for reporting.
func (j *Journal[P]) Records() []FrameRecord {
	out := make([]FrameRecord, 0, len(j.frames))
	for _, f := range j.frames {
		out = append(out, f.Record())
	}
	return out
}

func (j *Journal[P]) String() string {
	var b strings.Builder
	for _, f := range j.frames {
		fmt.Fprintf(&b, "%3d %-8s %s value=%.6g\n", f.Index, f.Params.Label(), FormatValues(f.Params.Values()), f.Value)
	}
	return b.String()
}

// InconsistentJournalError reports a journal a planner cannot make sense of.
type InconsistentJournalError struct {
	Reason string
	Dump   string
}

func (e *InconsistentJournalError) Error() string {
	if e.Dump == "" {
		return "inconsistent journal: " + e.Reason
	}
	return "inconsistent journal: " + e.Reason + "\n" + e.Dump
}
