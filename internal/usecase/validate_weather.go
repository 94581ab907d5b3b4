package usecase

import (
	"fmt"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
)

// rangeCheck bounds one observed field. Zero readings are valid values;
// only a nil pointer counts as missing.
type rangeCheck struct {
	name     string
	value    func(s domain.WeatherSnapshot) *float64
	lo       float64
	hi       float64
	hasUpper bool
}

var qualityChecks = []rangeCheck{
	{name: "temperature", value: func(s domain.WeatherSnapshot) *float64 { return s.Temperature }, lo: -90, hi: 60, hasUpper: true},
	{name: "humidity", value: func(s domain.WeatherSnapshot) *float64 { return s.Humidity }, lo: 0, hi: 100, hasUpper: true},
	{name: "pressure", value: func(s domain.WeatherSnapshot) *float64 { return s.Pressure }, lo: 850, hi: 1085, hasUpper: true},
	{name: "wind_speed", value: func(s domain.WeatherSnapshot) *float64 { return s.WindSpeed }, lo: 0},
}

// WeatherValidator scores observation completeness and plausibility.
// Pure and deterministic; it always produces a report and never fails,
// whatever shape the input is in.
type WeatherValidator struct{}

// NewWeatherValidator creates a validator instance (stateless).
func NewWeatherValidator() WeatherValidator {
	return WeatherValidator{}
}

// Validate checks the current snapshot and the forecast series.
// quality_score is the fraction of expected fields that are present and
// plausible; a missing field counts against the score but a zero value
// does not.
func (v WeatherValidator) Validate(snapshot *domain.WeatherSnapshot, series domain.ForecastSeries) domain.QualityReport {
	var (
		checked   int
		trusted   int
		anomalies []string
	)

	for _, check := range qualityChecks {
		checked++
		if snapshot == nil {
			continue
		}
		value := check.value(*snapshot)
		if value == nil {
			anomalies = append(anomalies, fmt.Sprintf("%s missing from current observation", check.name))
			continue
		}
		if msg, ok := checkRange(check, *value, ""); ok {
			trusted++
		} else {
			anomalies = append(anomalies, msg)
		}
	}

	missingBySeries := make(map[string]int)
	for i, step := range series {
		prefix := fmt.Sprintf("forecast step %d: ", i)
		for _, check := range qualityChecks {
			checked++
			value := check.value(step)
			if value == nil {
				missingBySeries[check.name]++
				continue
			}
			if msg, ok := checkRange(check, *value, prefix); ok {
				trusted++
			} else {
				anomalies = append(anomalies, msg)
			}
		}
	}
	for _, check := range qualityChecks {
		if n := missingBySeries[check.name]; n > 0 {
			anomalies = append(anomalies, fmt.Sprintf("%s missing in %d of %d forecast steps", check.name, n, len(series)))
		}
	}

	anomalies = append(anomalies, seriesStructureAnomalies(series)...)

	score := 0.0
	if checked > 0 {
		score = float64(trusted) / float64(checked)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return domain.QualityReport{
		QualityScore:      score,
		AnomaliesDetected: anomalies,
	}
}

func checkRange(check rangeCheck, value float64, prefix string) (string, bool) {
	if check.hasUpper {
		if value < check.lo || value > check.hi {
			return fmt.Sprintf("%s%s %.1f outside [%g, %g]", prefix, check.name, value, check.lo, check.hi), false
		}
		return "", true
	}
	if value < check.lo {
		return fmt.Sprintf("%s%s %.1f is negative", prefix, check.name, value), false
	}
	return "", true
}

func seriesStructureAnomalies(series domain.ForecastSeries) []string {
	if len(series) == 0 {
		return []string{"forecast series is empty"}
	}

	var anomalies []string
	missingTimestamps := 0
	for i, step := range series {
		if step.Timestamp.IsZero() {
			missingTimestamps++
			continue
		}
		if i == 0 || series[i-1].Timestamp.IsZero() {
			continue
		}
		if step.Timestamp.Equal(series[i-1].Timestamp) {
			anomalies = append(anomalies, fmt.Sprintf("duplicate forecast timestamp at step %d", i))
		} else if step.Timestamp.Before(series[i-1].Timestamp) {
			anomalies = append(anomalies, fmt.Sprintf("forecast timestamps out of order at step %d", i))
		}
	}
	if missingTimestamps > 0 {
		anomalies = append(anomalies, fmt.Sprintf("missing timestamps in %d of %d forecast steps", missingTimestamps, len(series)))
	}
	return anomalies
}
