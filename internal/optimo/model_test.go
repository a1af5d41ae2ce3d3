package optimo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamModelRejectsBadBounds(t *testing.T) {
	m := NewParamModel()
	err := m.Add("rate", 10, 5, 20, nil)
	var bounds *BoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, "rate", bounds.Name)
	assert.Zero(t, m.Len())

	require.NoError(t, m.Add("rate", 10, 10, 10, nil))
	assert.Error(t, m.Add("RATE", 1, 2, 3, nil))
}

func TestParamModelApplyInvokesEffectorsInOrder(t *testing.T) {
	var calls []string
	var seen []float64
	m := NewParamModel()
	for _, name := range []string{"rate", "threads", "depth"} {
		name := name
		require.NoError(t, m.Add(name, 0, 1, 100, func(v float64) {
			calls = append(calls, name)
			seen = append(seen, v)
		}))
	}

	point := []float64{42, 7, 3.5}
	p, err := m.Apply(point)
	require.NoError(t, err)
	assert.Equal(t, []string{"rate", "threads", "depth"}, calls)
	assert.Equal(t, point, seen)
	assert.Equal(t, point, p.Point())

	vals := p.Values()
	require.Len(t, vals, 3)
	assert.Equal(t, "threads", vals[1].Name)
	assert.Equal(t, 7.0, vals[1].Value)
}

func TestParamModelParamsDoesNotEffect(t *testing.T) {
	called := false
	m := NewParamModel()
	require.NoError(t, m.Add("rate", 0, 1, 2, func(float64) { called = true }))
	p, err := m.Params([]float64{1.5})
	require.NoError(t, err)
	assert.False(t, called)

	_, err = m.Apply(p.Point())
	require.NoError(t, err)
	assert.True(t, called)
}

func TestParamModelDimensionMismatch(t *testing.T) {
	m := NewParamModel()
	require.NoError(t, m.Add("rate", 0, 1, 2, nil))
	require.NoError(t, m.Add("threads", 0, 1, 2, nil))

	_, err := m.Apply([]float64{1})
	var dim *DimensionError
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 2, dim.Want)
	assert.Equal(t, 1, dim.Got)

	_, err = m.Clamp([]float64{1, 2, 3})
	assert.ErrorAs(t, err, &dim)
}

func TestParamModelColumnsAndClamp(t *testing.T) {
	m := NewParamModel()
	require.NoError(t, m.Add("rate", 10, 100, 400, nil))
	require.NoError(t, m.Add("threads", 1, 8, 64, nil))

	assert.Equal(t, []float64{100, 8}, m.InitialGuess())
	assert.Equal(t, []float64{10, 1}, m.Lower())
	assert.Equal(t, []float64{400, 64}, m.Upper())

	clamped, err := m.Clamp([]float64{500, -3})
	require.NoError(t, err)
	assert.Equal(t, []float64{400, 1}, clamped)
}
