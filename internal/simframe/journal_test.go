package simframe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalEmpty(t *testing.T) {
	j := NewJournal[stepParams]()
	_, err := j.Last()
	assert.ErrorIs(t, err, ErrEmptyJournal)
	_, err = j.BestRun()
	assert.ErrorIs(t, err, ErrEmptyJournal)
	assert.Zero(t, j.Len())
}

func TestJournalRecordAssignsIndices(t *testing.T) {
	j := NewJournal[stepParams]()
	for i, v := range []float64{0.5, 0.9, 0.4} {
		f := j.Record(stepParams{x: float64(i)}, resultOf(v))
		assert.Equal(t, i, f.Index)
		assert.Equal(t, v, f.Value)
	}
	last, err := j.Last()
	require.NoError(t, err)
	assert.Equal(t, 2, last.Index)
	assert.Len(t, j.Frames(), 3)
}

func TestJournalBestRun(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   int
	}{
		{"single", []float64{1}, 0},
		{"max in middle", []float64{0.5, 0.9, 0.4}, 1},
		{"tie keeps first", []float64{0.2, 0.9, 0.9, 0.1}, 1},
		{"tie at start", []float64{3, 1, 3}, 0},
		{"increasing", []float64{1, 2, 3, 4}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewJournal[stepParams]()
			for i, v := range tt.values {
				j.Record(stepParams{x: float64(i)}, resultOf(v))
			}
			best, err := j.BestRun()
			require.NoError(t, err)
			assert.Equal(t, tt.want, best.Index)
		})
	}
}

func TestJournalRecordsAndString(t *testing.T) {
	j := NewJournal[stepParams]()
	j.Record(stepParams{x: 100, label: "INITIAL"}, resultOf(0.5))

	recs := j.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "INITIAL", recs[0].Label)
	assert.Equal(t, []NamedValue{{Name: "x", Value: 100}}, recs[0].Params)
	assert.Equal(t, 0.5, recs[0].Value)
	assert.Contains(t, j.String(), "INITIAL")
	assert.Contains(t, j.String(), "x=100")
}

func TestInconsistentJournalError(t *testing.T) {
	var err error = &InconsistentJournalError{Reason: "no reference frame", Dump: "  0 INITIAL x=1 value=1\n"}
	var target *InconsistentJournalError
	require.True(t, errors.As(err, &target))
	assert.Contains(t, err.Error(), "no reference frame")
	assert.Contains(t, err.Error(), "INITIAL")
}
