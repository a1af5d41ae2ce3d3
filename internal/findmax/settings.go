package findmax

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Setting keys.
const (
	KeySampleTime  = "sample_time_ms"
	KeySampleMax   = "sample_max"
	KeySampleIncr  = "sample_incr"
	KeyRateBase    = "rate_base"
	KeyRateStep    = "rate_step"
	KeyRateIncr    = "rate_incr"
	KeyAverageOf   = "average_of"
	KeyMinSettling = "min_settling_ms"
)

// Settings are immutable once parsed.
type Settings struct {
	SampleTime  time.Duration
	SampleMax   time.Duration
	SampleIncr  float64
	RateBase    float64
	RateStep    float64
	RateIncr    float64
	AverageOf   int
	MinSettling time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		SampleTime:  4 * time.Second,
		SampleMax:   300 * time.Second,
		SampleIncr:  1.2,
		RateBase:    0,
		RateStep:    100,
		RateIncr:    2.0,
		AverageOf:   1,
		MinSettling: 4 * time.Second,
	}
}

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
		case KeySampleMax:
			s.SampleMax, err = parseMillis(raw)
		case KeySampleIncr:
			s.SampleIncr, err = strconv.ParseFloat(raw, 64)
		case KeyRateBase:
			s.RateBase, err = strconv.ParseFloat(raw, 64)
		case KeyRateStep:
			s.RateStep, err = strconv.ParseFloat(raw, 64)
		case KeyRateIncr:
			s.RateIncr, err = strconv.ParseFloat(raw, 64)
		case KeyAverageOf:
			s.AverageOf, err = strconv.Atoi(raw)
		case KeyMinSettling:
			s.MinSettling, err = parseMillis(raw)
		default:
			unknown = append(unknown, key)
			continue
		}
		if err != nil {
			return Settings{}, fmt.Errorf("findmax setting %s=%q: %w", key, raw, err)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Settings{}, fmt.Errorf("findmax: unknown settings %s", strings.Join(unknown, ", "))
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	var issues []string
	if s.SampleTime <= 0 {
		issues = append(issues, KeySampleTime+" must be > 0")
	}
	if s.SampleMax < s.SampleTime {
		issues = append(issues, KeySampleMax+" must be >= "+KeySampleTime)
	}
	if s.SampleIncr < 1 {
		issues = append(issues, KeySampleIncr+" must be >= 1")
	}
	if s.RateBase < 0 {
		issues = append(issues, KeyRateBase+" must be >= 0")
	}
	if s.RateStep <= 0 {
		issues = append(issues, KeyRateStep+" must be > 0")
	}
	if s.RateIncr < 1 {
		issues = append(issues, KeyRateIncr+" must be >= 1")
	}
	if s.AverageOf < 1 {
		issues = append(issues, KeyAverageOf+" must be >= 1")
	}
	if s.MinSettling < 0 {
		issues = append(issues, KeyMinSettling+" must be >= 0")
	}
	if len(issues) > 0 {
		return fmt.Errorf("findmax: %s", strings.Join(issues, "; "))
	}
	return nil
}

func parseMillis(raw string) (time.Duration, error) {
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
