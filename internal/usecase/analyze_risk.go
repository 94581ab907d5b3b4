package usecase

import (
	"fmt"
	"strings"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
)

// RiskThresholds holds the tunable cutoffs of the rule engine. All units
// match the normalized snapshot fields: °C, hPa, mm, m/s.
type RiskThresholds struct {
	StormPressureDrop float64 // hPa fall per 3-hour step, positive magnitude

	FloodRainSustained float64 // mm per 3 h, needs consecutive steps
	FloodRainSingle    float64 // mm per 3 h, single step
	FloodRainHigh      float64 // mm per 3 h, single step, high severity

	HeatHigh      float64 // °C
	HeatCritical  float64 // °C
	HeatTrendRise float64 // °C per step, least-squares slope
	HeatTrendMax  float64 // °C the trend must reach before it matters

	WindHigh      float64 // m/s
	WindCritical  float64 // m/s
	WindSustained float64 // m/s over consecutive steps

	FrostMedium float64 // °C
	FrostHigh   float64 // °C

	DroughtHumidity float64 // %, current reading

	ConfidenceFloor float64 // quality score below this caps severities
}

// DefaultRiskThresholds returns the deployment defaults.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		StormPressureDrop:  3,
		FloodRainSustained: 15,
		FloodRainSingle:    25,
		FloodRainHigh:      40,
		HeatHigh:           35,
		HeatCritical:       40,
		HeatTrendRise:      0.5,
		HeatTrendMax:       32,
		WindHigh:           20,
		WindCritical:       30,
		WindSustained:      15,
		FrostMedium:        0,
		FrostHigh:          -5,
		DroughtHumidity:    50,
		ConfidenceFloor:    0.5,
	}
}

// RiskAnalyzer derives hazard signals from validated observations.
// Pure and deterministic; no external calls.
type RiskAnalyzer struct {
	thresholds RiskThresholds
}

// NewRiskAnalyzer creates an analyzer with the given cutoffs.
func NewRiskAnalyzer(thresholds RiskThresholds) RiskAnalyzer {
	return RiskAnalyzer{thresholds: thresholds}
}

// forecastStep pairs a snapshot with its offset from now. The current
// observation sits at offset 0, forecast entries at 3-hour intervals.
type forecastStep struct {
	snapshot domain.WeatherSnapshot
	offset   int // hours
}

// Analyze runs every rule over the observation window, merges duplicate
// (kind, timeframe) signals keeping max severity, and caps severities
// when the quality score falls under the confidence floor.
func (a RiskAnalyzer) Analyze(snapshot *domain.WeatherSnapshot, series domain.ForecastSeries, quality domain.QualityReport) []domain.RiskSignal {
	steps := buildSteps(snapshot, series)

	collector := newSignalCollector()
	a.stormSignals(steps, collector)
	a.floodSignals(steps, collector)
	a.heatSignals(steps, collector)
	a.windSignals(steps, collector)
	a.frostSignals(steps, collector)
	a.droughtSignal(snapshot, series, collector)

	signals := collector.merged()
	signals = upgradeStormOnFlood(signals)

	if quality.QualityScore < a.thresholds.ConfidenceFloor {
		for i := range signals {
			signals[i].Severity = signals[i].Severity.Cap(domain.SeverityMedium)
		}
		signals = append(signals, domain.RiskSignal{
			Kind:     domain.RiskOther,
			Severity: domain.SeverityLow,
			Evidence: fmt.Sprintf("low data confidence: quality score %.2f below %.2f",
				quality.QualityScore, a.thresholds.ConfidenceFloor),
			Timeframe: domain.TimeframeToday,
		})
	}

	return signals
}

func buildSteps(snapshot *domain.WeatherSnapshot, series domain.ForecastSeries) []forecastStep {
	steps := make([]forecastStep, 0, len(series)+1)
	if snapshot != nil {
		steps = append(steps, forecastStep{snapshot: *snapshot, offset: 0})
	}
	for i, s := range series {
		steps = append(steps, forecastStep{snapshot: s, offset: (i + 1) * 3})
	}
	return steps
}

func timeframeFor(offsetHours int) domain.Timeframe {
	switch {
	case offsetHours <= 3:
		return domain.TimeframeImmediate
	case offsetHours <= 24:
		return domain.TimeframeToday
	case offsetHours <= 120:
		return domain.TimeframeThisWeek
	default:
		return domain.TimeframeNextWeek
	}
}

func (a RiskAnalyzer) stormSignals(steps []forecastStep, c *signalCollector) {
	for _, step := range steps {
		if !stormCondition(step.snapshot.ConditionCode) {
			continue
		}
		evidence := fmt.Sprintf("thunderstorm conditions expected within %d hours", step.offset)
		if step.offset == 0 {
			evidence = "thunderstorm conditions observed now"
		}
		c.add(domain.RiskSignal{
			Kind:      domain.RiskStorm,
			Severity:  domain.SeverityHigh,
			Evidence:  evidence,
			Timeframe: timeframeFor(step.offset),
		})
		break
	}

	// Sustained pressure fall over two consecutive 3-hour deltas.
	for i := 0; i+2 < len(steps); i++ {
		p0, p1, p2 := steps[i].snapshot.Pressure, steps[i+1].snapshot.Pressure, steps[i+2].snapshot.Pressure
		if p0 == nil || p1 == nil || p2 == nil {
			continue
		}
		if *p1-*p0 <= -a.thresholds.StormPressureDrop && *p2-*p1 <= -a.thresholds.StormPressureDrop {
			c.add(domain.RiskSignal{
				Kind:      domain.RiskStorm,
				Severity:  domain.SeverityHigh,
				Evidence:  fmt.Sprintf("pressure falling %.1f hPa over 6 hours", *p0-*p2),
				Timeframe: timeframeFor(steps[i+2].offset),
			})
			break
		}
	}
}

func (a RiskAnalyzer) floodSignals(steps []forecastStep, c *signalCollector) {
	for _, step := range steps {
		rain := step.snapshot.Rainfall3h
		if rain == nil {
			continue
		}
		if *rain >= a.thresholds.FloodRainHigh {
			c.add(domain.RiskSignal{
				Kind:      domain.RiskFlood,
				Severity:  domain.SeverityHigh,
				Evidence:  fmt.Sprintf("%.0f mm of rain in a single 3-hour step", *rain),
				Timeframe: timeframeFor(step.offset),
			})
			break
		}
		if *rain >= a.thresholds.FloodRainSingle {
			c.add(domain.RiskSignal{
				Kind:      domain.RiskFlood,
				Severity:  domain.SeverityMedium,
				Evidence:  fmt.Sprintf("%.0f mm of rain in a single 3-hour step", *rain),
				Timeframe: timeframeFor(step.offset),
			})
			break
		}
	}

	run := 0
	for i, step := range steps {
		rain := step.snapshot.Rainfall3h
		if rain != nil && *rain >= a.thresholds.FloodRainSustained {
			run++
			if run == 2 || run == 3 {
				severity := domain.SeverityMedium
				if run >= 3 {
					severity = domain.SeverityHigh
				}
				c.add(domain.RiskSignal{
					Kind:      domain.RiskFlood,
					Severity:  severity,
					Evidence:  fmt.Sprintf("rainfall at or above %.0f mm per 3 hours for %d consecutive steps", a.thresholds.FloodRainSustained, run),
					Timeframe: timeframeFor(steps[i-run+1].offset),
				})
			}
			continue
		}
		run = 0
	}
}

func (a RiskAnalyzer) heatSignals(steps []forecastStep, c *signalCollector) {
	for _, step := range steps {
		temp := step.snapshot.Temperature
		if temp == nil {
			continue
		}
		if *temp > a.thresholds.HeatCritical {
			c.add(domain.RiskSignal{
				Kind:      domain.RiskHeat,
				Severity:  domain.SeverityCritical,
				Evidence:  fmt.Sprintf("forecast high of %.1f °C", *temp),
				Timeframe: timeframeFor(step.offset),
			})
			break
		}
		if *temp > a.thresholds.HeatHigh {
			c.add(domain.RiskSignal{
				Kind:      domain.RiskHeat,
				Severity:  domain.SeverityHigh,
				Evidence:  fmt.Sprintf("forecast high of %.1f °C", *temp),
				Timeframe: timeframeFor(step.offset),
			})
			break
		}
	}

	slope, maxTemp, maxStep, ok := temperatureTrend(steps)
	if ok && slope > a.thresholds.HeatTrendRise && maxTemp > a.thresholds.HeatTrendMax {
		c.add(domain.RiskSignal{
			Kind:      domain.RiskHeat,
			Severity:  domain.SeverityMedium,
			Evidence:  fmt.Sprintf("temperature rising %.1f °C per 3-hour step toward %.1f °C", slope, maxTemp),
			Timeframe: timeframeFor(maxStep.offset),
		})
	}
}

func (a RiskAnalyzer) windSignals(steps []forecastStep, c *signalCollector) {
	for _, step := range steps {
		wind := step.snapshot.WindSpeed
		if wind == nil {
			continue
		}
		if *wind > a.thresholds.WindCritical {
			c.add(domain.RiskSignal{
				Kind:      domain.RiskWind,
				Severity:  domain.SeverityCritical,
				Evidence:  fmt.Sprintf("wind speeds up to %.1f m/s expected", *wind),
				Timeframe: timeframeFor(step.offset),
			})
			break
		}
		if *wind > a.thresholds.WindHigh {
			c.add(domain.RiskSignal{
				Kind:      domain.RiskWind,
				Severity:  domain.SeverityHigh,
				Evidence:  fmt.Sprintf("wind speeds up to %.1f m/s expected", *wind),
				Timeframe: timeframeFor(step.offset),
			})
			break
		}
	}

	run := 0
	for i, step := range steps {
		wind := step.snapshot.WindSpeed
		if wind != nil && *wind > a.thresholds.WindSustained {
			run++
			if run == 2 {
				c.add(domain.RiskSignal{
					Kind:      domain.RiskWind,
					Severity:  domain.SeverityMedium,
					Evidence:  fmt.Sprintf("sustained winds above %.0f m/s", a.thresholds.WindSustained),
					Timeframe: timeframeFor(steps[i-1].offset),
				})
			}
			continue
		}
		run = 0
	}
}

func (a RiskAnalyzer) frostSignals(steps []forecastStep, c *signalCollector) {
	for _, step := range steps {
		temp := step.snapshot.Temperature
		if temp == nil || *temp >= a.thresholds.FrostMedium {
			continue
		}
		severity := domain.SeverityMedium
		if *temp < a.thresholds.FrostHigh {
			severity = domain.SeverityHigh
		}
		c.add(domain.RiskSignal{
			Kind:      domain.RiskOther,
			Severity:  severity,
			Evidence:  fmt.Sprintf("frost risk: low of %.1f °C", *temp),
			Timeframe: timeframeFor(step.offset),
		})
		break
	}
}

func (a RiskAnalyzer) droughtSignal(snapshot *domain.WeatherSnapshot, series domain.ForecastSeries, c *signalCollector) {
	if snapshot == nil || snapshot.Humidity == nil || *snapshot.Humidity >= a.thresholds.DroughtHumidity {
		return
	}
	if len(series) == 0 {
		return
	}
	for _, step := range series {
		if step.Rainfall3h != nil && *step.Rainfall3h > 0 {
			return
		}
		if step.Rainfall1h != nil && *step.Rainfall1h > 0 {
			return
		}
	}
	c.add(domain.RiskSignal{
		Kind:      domain.RiskOther,
		Severity:  domain.SeverityLow,
		Evidence:  fmt.Sprintf("no rainfall in forecast window with humidity at %.0f%%", *snapshot.Humidity),
		Timeframe: domain.TimeframeThisWeek,
	})
}

// temperatureTrend fits a least-squares line over the present readings.
// Needs at least three points to call a trend.
func temperatureTrend(steps []forecastStep) (slope float64, maxTemp float64, maxStep forecastStep, ok bool) {
	var xs, ys []float64
	for _, step := range steps {
		if step.snapshot.Temperature == nil {
			continue
		}
		t := *step.snapshot.Temperature
		xs = append(xs, float64(len(xs)))
		ys = append(ys, t)
		if !ok || t > maxTemp {
			maxTemp = t
			maxStep = step
			ok = true
		}
	}
	n := float64(len(xs))
	if n < 3 {
		return 0, 0, forecastStep{}, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, forecastStep{}, false
	}
	return (n*sumXY - sumX*sumY) / denom, maxTemp, maxStep, true
}

func stormCondition(code string) bool {
	return strings.Contains(code, "storm") || strings.Contains(code, "squall")
}

// upgradeStormOnFlood raises storm severity to critical when flood
// conditions co-occur in the same window.
func upgradeStormOnFlood(signals []domain.RiskSignal) []domain.RiskSignal {
	hasFlood := false
	for _, s := range signals {
		if s.Kind == domain.RiskFlood {
			hasFlood = true
			break
		}
	}
	if !hasFlood {
		return signals
	}
	for i := range signals {
		if signals[i].Kind == domain.RiskStorm {
			signals[i].Severity = domain.SeverityCritical
			signals[i].Evidence += "; combined with heavy rainfall"
		}
	}
	return signals
}

type signalCollector struct {
	signals []domain.RiskSignal
	index   map[string]int
}

func newSignalCollector() *signalCollector {
	return &signalCollector{index: make(map[string]int)}
}

// add merges into an existing (kind, timeframe) entry, keeping the higher
// severity and joining evidence, or appends a new signal.
func (c *signalCollector) add(sig domain.RiskSignal) {
	key := string(sig.Kind) + "|" + string(sig.Timeframe)
	if i, ok := c.index[key]; ok {
		existing := &c.signals[i]
		existing.Severity = domain.MaxSeverity(existing.Severity, sig.Severity)
		existing.Evidence = existing.Evidence + "; " + sig.Evidence
		return
	}
	c.index[key] = len(c.signals)
	c.signals = append(c.signals, sig)
}

func (c *signalCollector) merged() []domain.RiskSignal {
	return c.signals
}
