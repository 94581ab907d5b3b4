package domain

// QualityReport scores how complete and plausible a set of weather
// readings is. Produced once per request and read-only afterward.
type QualityReport struct {
	QualityScore      float64  `json:"quality_score"`
	AnomaliesDetected []string `json:"anomalies_detected"`
}
