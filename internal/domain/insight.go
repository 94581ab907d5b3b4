package domain

import "time"

// InsightBundle is the final artifact of one pipeline run. Created once
// per request and never mutated after construction; each run owns its
// bundle exclusively until returned.
type InsightBundle struct {
	Location           Location         `json:"location"`
	CurrentWeather     WeatherSnapshot  `json:"current_weather"`
	DataQuality        QualityReport    `json:"data_quality"`
	RiskAlerts         []string         `json:"risk_alerts"`
	Recommendations    []Recommendation `json:"recommendations"`
	Summary            string           `json:"summary"`
	AnalysisTime       time.Time        `json:"analysis_time"`
	PrioritySummary    PrioritySummary  `json:"priority_summary"`
	ActionChecklist    []string         `json:"action_checklist"`
	ContactSuggestions []string         `json:"contact_suggestions,omitempty"`
	Degraded           bool             `json:"degraded"`
	DegradedStages     []string         `json:"degraded_stages,omitempty"`
}
