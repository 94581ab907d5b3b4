package domain

import (
	"fmt"
	"strings"
)

// RiskKind categorizes a derived hazard signal.
type RiskKind string

const (
	RiskStorm RiskKind = "storm"
	RiskHeat  RiskKind = "heat"
	RiskFlood RiskKind = "flood"
	RiskWind  RiskKind = "wind"
	RiskOther RiskKind = "other"
)

// Severity grades how serious a signal is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank maps severity to an ordinal, low = 0 up to critical = 3.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the recognized severity values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Cap limits s to at most ceiling.
func (s Severity) Cap(ceiling Severity) Severity {
	if s.Rank() > ceiling.Rank() {
		return ceiling
	}
	return s
}

// Timeframe buckets when a signal is expected to matter.
type Timeframe string

const (
	TimeframeImmediate Timeframe = "immediate"
	TimeframeToday     Timeframe = "today"
	TimeframeThisWeek  Timeframe = "this_week"
	TimeframeNextWeek  Timeframe = "next_week"
)

// Rank maps timeframe to an ordinal, immediate = 0 up to next_week = 3.
func (t Timeframe) Rank() int {
	switch t {
	case TimeframeImmediate:
		return 0
	case TimeframeToday:
		return 1
	case TimeframeThisWeek:
		return 2
	default:
		return 3
	}
}

// RiskSignal is one derived hazard indication. At most one signal exists
// per (kind, timeframe) pair after merging.
type RiskSignal struct {
	Kind      RiskKind  `json:"kind"`
	Severity  Severity  `json:"severity"`
	Evidence  string    `json:"evidence"`
	Timeframe Timeframe `json:"timeframe"`
}

// Alert renders the signal as the human-readable line carried in
// InsightBundle.RiskAlerts.
func (s RiskSignal) Alert() string {
	return fmt.Sprintf("%s: %s risk (%s): %s",
		strings.ToUpper(string(s.Severity)), s.Kind, s.Timeframe, s.Evidence)
}
