package optimo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.True(t, s.StabilityEnabled())
	assert.Equal(t, 5, s.Interpolation(2))

	specs := s.ParamSpecs()
	require.Len(t, specs, 2)
	assert.Equal(t, ParamSpec{Name: ParamRate, Lower: 10, Initial: 100, Upper: 400}, specs[0])
	assert.Equal(t, ParamSpec{Name: ParamThreads, Lower: 10, Initial: 50, Upper: 2000}, specs[1])
}

func TestParseSettingsOverrides(t *testing.T) {
	s, err := ParseSettings(map[string]string{
		"sample_time_ms":       "2500",
		"cutoff_ms":            "75",
		"start_rate":           "200",
		"interpolation_points": "9",
		"stability_windows":    "8, 4",
		"stability_max_ms":     "0",
		"params":               "rate:50:200:800, threads:4:16:128",
	})
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, s.SampleTime)
	assert.Equal(t, 75.0, s.CutoffMs)
	assert.Equal(t, 9, s.Interpolation(2))
	assert.Equal(t, []int{8, 4}, s.StabilityWindows)
	assert.False(t, s.StabilityEnabled())
	assert.Equal(t, []ParamSpec{
		{Name: "rate", Lower: 50, Initial: 200, Upper: 800},
		{Name: "threads", Lower: 4, Initial: 16, Upper: 128},
	}, s.ParamSpecs())
}

func TestParseSettingsRejects(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{"unknown key", map[string]string{"rate_step": "1"}, "unknown settings rate_step"},
		{"bad number", map[string]string{"cutoff_ms": "fast"}, "cutoff_ms"},
		{"radius order", map[string]string{"stopping_radius": "60"}, "stopping_radius"},
		{"quantile", map[string]string{"cutoff_quantile": "1.5"}, "cutoff_quantile"},
		{"low start", map[string]string{"start_rate": "5"}, "start_rate"},
		{"one window", map[string]string{"stability_windows": "10"}, "stability_windows"},
		{"bad param", map[string]string{"params": "rate:1:2"}, "name:lower:initial:upper"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings(tt.values)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseParamSpecsEmpty(t *testing.T) {
	_, err := ParseParamSpecs(" , ")
	assert.Error(t, err)
}
