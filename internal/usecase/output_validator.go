package usecase

import (
	"encoding/json"
	"strings"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
)

// AdviceValidator re-enforces the generation output contract locally,
// whatever the provider claims to have done with the format schema.
type AdviceValidator struct{}

// NewAdviceValidator creates a validator instance (stateless).
func NewAdviceValidator() AdviceValidator {
	return AdviceValidator{}
}

type adviceEnvelope struct {
	Recommendations []rawRecommendation `json:"recommendations"`
	Note            string              `json:"note"`
}

type rawRecommendation struct {
	Title           string   `json:"title"`
	Action          string   `json:"action"`
	Reason          string   `json:"reason"`
	Priority        string   `json:"priority"`
	Timing          string   `json:"timing"`
	ResourcesNeeded []string `json:"resources_needed"`
}

// ParseRecommendations parses the JSON advice output, discarding every
// object that misses a required field or uses an out-of-enum value.
// It returns the surviving recommendations and the discard count; when
// nothing survives the error is a SchemaViolationError.
func (v AdviceValidator) ParseRecommendations(raw string) ([]domain.Recommendation, int, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, 0, &domain.SchemaViolationError{Reason: "no JSON object in generation output"}
	}

	var envelope adviceEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, 0, &domain.SchemaViolationError{Reason: "advice output is not valid JSON: " + err.Error()}
	}
	if len(envelope.Recommendations) == 0 {
		return nil, 0, &domain.SchemaViolationError{Reason: "advice output carries no recommendations"}
	}

	var recs []domain.Recommendation
	discarded := 0
	for _, r := range envelope.Recommendations {
		rec, ok := v.toRecommendation(r)
		if !ok {
			discarded++
			continue
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil, discarded, &domain.SchemaViolationError{Reason: "every recommendation object violated the contract"}
	}
	return recs, discarded, nil
}

func (v AdviceValidator) toRecommendation(r rawRecommendation) (domain.Recommendation, bool) {
	title := strings.TrimSpace(r.Title)
	action := strings.TrimSpace(r.Action)
	reason := strings.TrimSpace(r.Reason)
	priority := domain.Priority(strings.ToLower(strings.TrimSpace(r.Priority)))
	timing := domain.Timing(strings.ToLower(strings.TrimSpace(r.Timing)))

	if title == "" || action == "" || reason == "" {
		return domain.Recommendation{}, false
	}
	if !priority.Valid() || !timing.Valid() {
		return domain.Recommendation{}, false
	}

	var resources []string
	for _, res := range r.ResourcesNeeded {
		if trimmed := strings.TrimSpace(res); trimmed != "" {
			resources = append(resources, trimmed)
		}
	}

	return domain.Recommendation{
		Title:           title,
		Action:          action,
		Reason:          reason,
		Priority:        priority,
		Timing:          timing,
		ResourcesNeeded: resources,
	}, true
}

type summaryEnvelope struct {
	Summary string `json:"summary"`
}

// ParseSummary parses the JSON summary output.
func (v AdviceValidator) ParseSummary(raw string) (string, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return "", &domain.SchemaViolationError{Reason: "no JSON object in summary output"}
	}

	var envelope summaryEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return "", &domain.SchemaViolationError{Reason: "summary output is not valid JSON: " + err.Error()}
	}
	summary := strings.TrimSpace(envelope.Summary)
	if summary == "" {
		return "", &domain.SchemaViolationError{Reason: "summary output is empty"}
	}
	return summary, nil
}

// extractJSON tolerates fenced code blocks and prose around the JSON
// object, returning the outermost object or "".
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx != -1 {
			trimmed = trimmed[idx+1:]
		}
		if idx := strings.LastIndex(trimmed, "```"); idx != -1 {
			trimmed = trimmed[:idx]
		}
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return trimmed[start : end+1]
}
