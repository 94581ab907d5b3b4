package domain

import (
	"fmt"
	"sort"
)

// Priority grades how urgent a recommendation is.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank maps priority to a sort ordinal, critical = 0 down to low = 3.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Valid reports whether p is one of the recognized priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Timing buckets when a recommended action should happen. The values
// "today" and "within_2_hours" are distinct labels in the contract but
// share one urgency rank.
type Timing string

const (
	TimingImmediate    Timing = "immediate"
	TimingToday        Timing = "today"
	TimingWithin2Hours Timing = "within_2_hours"
	TimingThisWeek     Timing = "this_week"
	TimingNextWeek     Timing = "next_week"
)

// Rank maps timing to a sort ordinal, immediate = 0 down to next_week = 3.
func (t Timing) Rank() int {
	switch t {
	case TimingImmediate:
		return 0
	case TimingToday, TimingWithin2Hours:
		return 1
	case TimingThisWeek:
		return 2
	default:
		return 3
	}
}

// Valid reports whether t is one of the recognized timing values.
func (t Timing) Valid() bool {
	switch t {
	case TimingImmediate, TimingToday, TimingWithin2Hours, TimingThisWeek, TimingNextWeek:
		return true
	}
	return false
}

// Recommendation is one audience-tailored action. Immutable once emitted.
type Recommendation struct {
	Title           string   `json:"title"`
	Action          string   `json:"action"`
	Reason          string   `json:"reason"`
	Priority        Priority `json:"priority"`
	Timing          Timing   `json:"timing"`
	TargetAudience  string   `json:"target_audience"`
	ResourcesNeeded []string `json:"resources_needed,omitempty"`
}

// PriorityCeiling returns the highest priority a recommendation derived
// from a signal of the given severity may carry. Critical priority is
// reserved for critical-severity signals.
func PriorityCeiling(sev Severity) Priority {
	switch sev {
	case SeverityCritical:
		return PriorityCritical
	case SeverityHigh:
		return PriorityHigh
	case SeverityMedium:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// ClampPriority lowers p to the ceiling for the given severity when the
// proposal exceeds it. Lower proposals pass through unchanged.
func ClampPriority(p Priority, sev Severity) Priority {
	ceiling := PriorityCeiling(sev)
	if p.Rank() < ceiling.Rank() {
		return ceiling
	}
	return p
}

// SortRecommendations orders recs by priority, then timing, preserving
// generation order between equals.
func SortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority.Rank() != recs[j].Priority.Rank() {
			return recs[i].Priority.Rank() < recs[j].Priority.Rank()
		}
		return recs[i].Timing.Rank() < recs[j].Timing.Rank()
	})
}

// PrioritySummary counts recommendations per priority level.
type PrioritySummary struct {
	Critical int    `json:"critical"`
	High     int    `json:"high"`
	Medium   int    `json:"medium"`
	Low      int    `json:"low"`
	Headline string `json:"headline"`
}

// SummarizePriorities tallies recs and headlines the most urgent level
// present.
func SummarizePriorities(recs []Recommendation) PrioritySummary {
	var s PrioritySummary
	for _, r := range recs {
		switch r.Priority {
		case PriorityCritical:
			s.Critical++
		case PriorityHigh:
			s.High++
		case PriorityMedium:
			s.Medium++
		default:
			s.Low++
		}
	}
	switch {
	case s.Critical > 0:
		s.Headline = fmt.Sprintf("%d critical action(s) required immediately", s.Critical)
	case s.High > 0:
		s.Headline = fmt.Sprintf("%d high-priority action(s) recommended", s.High)
	case s.Medium > 0:
		s.Headline = fmt.Sprintf("%d precautionary action(s) suggested", s.Medium)
	case s.Low > 0:
		s.Headline = "conditions normal, routine guidance only"
	default:
		s.Headline = "no recommendations"
	}
	return s
}

// BuildActionChecklist flattens ordered recommendations into checklist
// lines. The input is expected to be sorted already.
func BuildActionChecklist(recs []Recommendation) []string {
	checklist := make([]string, 0, len(recs))
	for _, r := range recs {
		checklist = append(checklist, fmt.Sprintf("[%s/%s] %s: %s", r.Priority, r.Timing, r.Title, r.Action))
	}
	return checklist
}
