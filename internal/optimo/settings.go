package optimo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Setting keys.
const (
	KeySampleTime          = "sample_time_ms"
	KeyCutoffQuantile      = "cutoff_quantile"
	KeyCutoffMs            = "cutoff_ms"
	KeyStartRate           = "start_rate"
	KeyInterpolationPoints = "interpolation_points"
	KeyInitialRadius       = "initial_radius"
	KeyStoppingRadius      = "stopping_radius"
	KeyMaxEvals            = "max_evals"
	KeyStabilityThreshold  = "stability_threshold"
	KeyStabilitySlice      = "stability_slice_ms"
	KeyStabilityWindows    = "stability_windows"
	KeyStabilityMax        = "stability_max_ms"
	KeyMinSettling         = "min_settling_ms"
	KeyParams              = "params"
)

// ParamSpec bounds one tunable parameter. Only "rate" and "threads" have effectors.
type ParamSpec struct {
	Name                  string
	Lower, Initial, Upper float64
}

// Settings are immutable once parsed.
type Settings struct {
	SampleTime     time.Duration
	CutoffQuantile float64
	CutoffMs       float64
	StartRate      float64

	// InterpolationPoints of zero means 2n+1 for n parameters.
	InterpolationPoints int
	InitialRadius       float64
	StoppingRadius      float64
	MaxEvals            int

	StabilityThreshold float64
	StabilitySlice     time.Duration
	StabilityWindows   []int
	// StabilityMax of zero disables the detector in favor of MinSettling.
	StabilityMax time.Duration
	MinSettling  time.Duration

	// Params overrides the default rate/threads model when set.
	Params []ParamSpec
}

func DefaultSettings() Settings {
	return Settings{
		SampleTime:         4 * time.Second,
		CutoffQuantile:     0.99,
		CutoffMs:           50,
		StartRate:          100,
		InitialRadius:      50,
		StoppingRadius:     1e-4,
		MaxEvals:           100,
		StabilityThreshold: 0.9,
		StabilitySlice:     500 * time.Millisecond,
		StabilityWindows:   []int{20, 10},
		StabilityMax:       30 * time.Second,
		MinSettling:        time.Second,
	}
}

// ParamSpecs returns the configured model, or rate [10, start, 4*start] and
// threads [10, 50, 2000].
func (s Settings) ParamSpecs() []ParamSpec {
	if len(s.Params) > 0 {
		return append([]ParamSpec(nil), s.Params...)
	}
	return []ParamSpec{
		{Name: ParamRate, Lower: 10, Initial: s.StartRate, Upper: s.StartRate * 4},
		{Name: ParamThreads, Lower: 10, Initial: 50, Upper: 2000},
	}
}

// Interpolation resolves the interpolation point count for n parameters.
func (s Settings) Interpolation(n int) int {
	if s.InterpolationPoints > 0 {
		return s.InterpolationPoints
	}
	return 2*n + 1
}

// StabilityEnabled reports whether frames settle on the stability detector.
func (s Settings) StabilityEnabled() bool { return s.StabilityMax > 0 }

// ParseSettings overlays named values on the defaults. Unknown keys are rejected.
func ParseSettings(values map[string]string) (Settings, error) {
	s := DefaultSettings()
	var unknown []string
	for key, raw := range values {
		raw = strings.TrimSpace(raw)
		var err error
		switch strings.ToLower(strings.TrimSpace(key)) {
		case KeySampleTime:
			s.SampleTime, err = parseMillis(raw)
		case KeyCutoffQuantile:
			s.CutoffQuantile, err = strconv.ParseFloat(raw, 64)
		case KeyCutoffMs:
			s.CutoffMs, err = strconv.ParseFloat(raw, 64)
		case KeyStartRate:
			s.StartRate, err = strconv.ParseFloat(raw, 64)
		case KeyInterpolationPoints:
			s.InterpolationPoints, err = strconv.Atoi(raw)
		case KeyInitialRadius:
			s.InitialRadius, err = strconv.ParseFloat(raw, 64)
		case KeyStoppingRadius:
			s.StoppingRadius, err = strconv.ParseFloat(raw, 64)
		case KeyMaxEvals:
			s.MaxEvals, err = strconv.Atoi(raw)
		case KeyStabilityThreshold:
			s.StabilityThreshold, err = strconv.ParseFloat(raw, 64)
		case KeyStabilitySlice:
			s.StabilitySlice, err = parseMillis(raw)
		case KeyStabilityWindows:
			s.StabilityWindows, err = parseInts(raw)
		case KeyStabilityMax:
			s.StabilityMax, err = parseMillis(raw)
		case KeyMinSettling:
			s.MinSettling, err = parseMillis(raw)
		case KeyParams:
			s.Params, err = ParseParamSpecs(raw)
		default:
			unknown = append(unknown, key)
			continue
		}
		if err != nil {
			return Settings{}, fmt.Errorf("optimo setting %s=%q: %w", key, raw, err)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Settings{}, fmt.Errorf("optimo: unknown settings %s", strings.Join(unknown, ", "))
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	var issues []string
	if s.SampleTime <= 0 {
		issues = append(issues, KeySampleTime+" must be > 0")
	}
	if s.CutoffQuantile <= 0 || s.CutoffQuantile > 1 {
		issues = append(issues, KeyCutoffQuantile+" must be in (0, 1]")
	}
	if s.CutoffMs <= 0 {
		issues = append(issues, KeyCutoffMs+" must be > 0")
	}
	if len(s.Params) == 0 && s.StartRate < 10 {
		issues = append(issues, KeyStartRate+" must be >= 10")
	}
	if s.InterpolationPoints < 0 {
		issues = append(issues, KeyInterpolationPoints+" must be >= 0")
	}
	if s.InitialRadius <= 0 {
		issues = append(issues, KeyInitialRadius+" must be > 0")
	}
	if s.StoppingRadius <= 0 || s.StoppingRadius >= s.InitialRadius {
		issues = append(issues, KeyStoppingRadius+" must be > 0 and < "+KeyInitialRadius)
	}
	if s.MaxEvals < 1 {
		issues = append(issues, KeyMaxEvals+" must be >= 1")
	}
	if s.StabilityMax < 0 {
		issues = append(issues, KeyStabilityMax+" must be >= 0")
	}
	if s.StabilityEnabled() {
		if s.StabilitySlice <= 0 {
			issues = append(issues, KeyStabilitySlice+" must be > 0")
		}
		if len(s.StabilityWindows) < 2 {
			issues = append(issues, KeyStabilityWindows+" needs at least two sizes")
		}
	}
	if s.MinSettling < 0 {
		issues = append(issues, KeyMinSettling+" must be >= 0")
	}
	if len(issues) > 0 {
		return fmt.Errorf("optimo: %s", strings.Join(issues, "; "))
	}
	return nil
}

// ParseParamSpecs parses "name:lower:initial:upper" entries separated by commas.
func ParseParamSpecs(raw string) ([]ParamSpec, error) {
	var specs []ParamSpec
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("param %q: expected name:lower:initial:upper", entry)
		}
		spec := ParamSpec{Name: strings.ToLower(strings.TrimSpace(parts[0]))}
		bounds := make([]float64, 3)
		for i, p := range parts[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", entry, err)
			}
			bounds[i] = v
		}
		spec.Lower, spec.Initial, spec.Upper = bounds[0], bounds[1], bounds[2]
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no parameters given")
	}
	return specs, nil
}

func parseMillis(raw string) (time.Duration, error) {
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

func parseInts(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
