package usecase

import (
	"fmt"
	"strings"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
)

// AdvicePromptInput carries everything one signal-level generation needs.
type AdvicePromptInput struct {
	Location string
	Audience string
	Signal   domain.RiskSignal
	Passages []domain.KnowledgePassage
	Current  *domain.WeatherSnapshot
}

// SummaryPromptInput feeds the narrative-summary generation over the
// final recommendation list.
type SummaryPromptInput struct {
	Location        string
	Audience        string
	Recommendations []domain.Recommendation
	Signals         []domain.RiskSignal
}

// AdvicePromptBuilder renders the chat messages sent to the generator.
type AdvicePromptBuilder interface {
	BuildAdvice(input AdvicePromptInput) ([]domain.Message, error)
	BuildBaseline(location, audience string, current *domain.WeatherSnapshot) ([]domain.Message, error)
	BuildSummary(input SummaryPromptInput) ([]domain.Message, error)
}

// XMLAdvicePromptBuilder creates structured prompts that separate
// conditions, signal, knowledge, instructions, and format.
type XMLAdvicePromptBuilder struct {
	additionalInstructions []string
}

// NewXMLAdvicePromptBuilder creates a prompt builder with optional extra
// instructions appended.
func NewXMLAdvicePromptBuilder(additionalInstructions ...string) AdvicePromptBuilder {
	return &XMLAdvicePromptBuilder{
		additionalInstructions: additionalInstructions,
	}
}

// BuildAdvice renders the messages for one risk signal.
func (b *XMLAdvicePromptBuilder) BuildAdvice(input AdvicePromptInput) ([]domain.Message, error) {
	if input.Signal.Kind == "" {
		return nil, fmt.Errorf("signal kind is required")
	}
	profile := ProfileFor(input.Audience)

	instructions := []string{
		fmt.Sprintf("You produce weather-preparedness recommendations for %s.", audienceClause(profile)),
		"1. Read <conditions>, <signal>, and <knowledge> carefully.",
		"2. Propose 1 to 3 recommendations addressing the signal, most urgent first.",
		"3. Ground actions in the <knowledge> passages when they apply; never invent facts.",
		fmt.Sprintf("4. Use %s.", profile.Vocabulary),
		fmt.Sprintf("5. Frame each action as %s.", profile.Framing),
		fmt.Sprintf("6. resources_needed lists concrete items, for example: %s.", strings.Join(profile.ExampleResources, ", ")),
		"7. priority must be one of: critical, high, medium, low.",
		"8. timing must be one of: immediate, today, within_2_hours, this_week, next_week.",
		"9. Follow the JSON format below EXACTLY.",
	}

	var userSb strings.Builder
	writeConditions(&userSb, input.Location, input.Current)
	writeSignal(&userSb, input.Signal)
	writeKnowledge(&userSb, input.Passages)

	return []domain.Message{
		{Role: "system", Content: b.systemContent(instructions, adviceFormatBlock)},
		{Role: "user", Content: userSb.String()},
	}, nil
}

// BuildBaseline renders the messages for a no-hazard run. One routine
// low-priority recommendation is requested.
func (b *XMLAdvicePromptBuilder) BuildBaseline(location, audience string, current *domain.WeatherSnapshot) ([]domain.Message, error) {
	profile := ProfileFor(audience)

	instructions := []string{
		fmt.Sprintf("You produce weather-preparedness recommendations for %s.", audienceClause(profile)),
		"1. No weather hazards were detected for the <conditions> below.",
		"2. Propose exactly 1 routine, low-priority recommendation appropriate for the conditions.",
		fmt.Sprintf("3. Use %s.", profile.Vocabulary),
		fmt.Sprintf("4. Frame the action as %s.", profile.Framing),
		"5. priority must be \"low\" and timing one of: today, this_week, next_week.",
		"6. Follow the JSON format below EXACTLY.",
	}

	var userSb strings.Builder
	writeConditions(&userSb, location, current)

	return []domain.Message{
		{Role: "system", Content: b.systemContent(instructions, adviceFormatBlock)},
		{Role: "user", Content: userSb.String()},
	}, nil
}

// BuildSummary renders the messages for the one-paragraph narrative over
// the final recommendation list.
func (b *XMLAdvicePromptBuilder) BuildSummary(input SummaryPromptInput) ([]domain.Message, error) {
	profile := ProfileFor(input.Audience)

	instructions := []string{
		fmt.Sprintf("You summarize weather advice for %s.", audienceClause(profile)),
		"1. Write ONE paragraph of 3 to 5 sentences covering the <recommendations> below.",
		"2. Mention the most urgent actions by name.",
		"3. Do NOT introduce hazards or actions that are not listed.",
		fmt.Sprintf("4. Use %s.", profile.Vocabulary),
		"5. Follow the JSON format below EXACTLY.",
	}

	var userSb strings.Builder
	if input.Location != "" {
		userSb.WriteString("<location>")
		userSb.WriteString(escape(input.Location))
		userSb.WriteString("</location>\n\n")
	}
	userSb.WriteString("<recommendations>\n")
	for _, rec := range input.Recommendations {
		userSb.WriteString("  <recommendation>\n")
		userSb.WriteString("    <title>")
		userSb.WriteString(escape(rec.Title))
		userSb.WriteString("</title>\n")
		userSb.WriteString("    <action>")
		userSb.WriteString(escape(rec.Action))
		userSb.WriteString("</action>\n")
		userSb.WriteString("    <priority>")
		userSb.WriteString(string(rec.Priority))
		userSb.WriteString("</priority>\n")
		userSb.WriteString("    <timing>")
		userSb.WriteString(string(rec.Timing))
		userSb.WriteString("</timing>\n")
		userSb.WriteString("  </recommendation>\n")
	}
	userSb.WriteString("</recommendations>\n\n")

	userSb.WriteString("<hazards>")
	kinds := make([]string, 0, len(input.Signals))
	for _, s := range input.Signals {
		kinds = append(kinds, string(s.Kind))
	}
	userSb.WriteString(escape(strings.Join(kinds, ", ")))
	userSb.WriteString("</hazards>\n")

	return []domain.Message{
		{Role: "system", Content: b.systemContent(instructions, summaryFormatBlock)},
		{Role: "user", Content: userSb.String()},
	}, nil
}

const adviceFormatBlock = `JSON: {
  "recommendations": [
    {"title": "...", "action": "...", "reason": "...", "priority": "high", "timing": "today", "resources_needed": ["..."]}
  ],
  "note": ""
}`

const summaryFormatBlock = `JSON: {
  "summary": "One paragraph of plain text."
}`

func (b *XMLAdvicePromptBuilder) systemContent(instructions []string, format string) string {
	var sb strings.Builder
	sb.WriteString("<instructions>\n")
	for _, inst := range append(instructions, b.additionalInstructions...) {
		sb.WriteString("  <line>")
		sb.WriteString(escape(inst))
		sb.WriteString("</line>\n")
	}
	sb.WriteString("</instructions>\n\n")

	sb.WriteString("<format>\n")
	sb.WriteString(format)
	sb.WriteString("\n</format>\n")
	return sb.String()
}

func audienceClause(profile AudienceProfile) string {
	switch profile.Label {
	case AudienceFarmers:
		return "farmers protecting crops and livestock"
	case AudienceOfficials:
		return "local officials coordinating disaster response"
	default:
		return "the general public"
	}
}

func writeConditions(sb *strings.Builder, location string, current *domain.WeatherSnapshot) {
	sb.WriteString("<conditions>\n")
	if location != "" {
		sb.WriteString("  <location>")
		sb.WriteString(escape(location))
		sb.WriteString("</location>\n")
	}
	if current != nil {
		writeMeasure(sb, "temperature", current.Temperature, "°C")
		writeMeasure(sb, "humidity", current.Humidity, "%")
		writeMeasure(sb, "pressure", current.Pressure, "hPa")
		writeMeasure(sb, "wind_speed", current.WindSpeed, "m/s")
		writeMeasure(sb, "rainfall_3h", current.Rainfall3h, "mm")
		if current.Description != "" {
			sb.WriteString("  <description>")
			sb.WriteString(escape(current.Description))
			sb.WriteString("</description>\n")
		}
	}
	sb.WriteString("</conditions>\n\n")
}

func writeMeasure(sb *strings.Builder, name string, value *float64, unit string) {
	if value == nil {
		return
	}
	sb.WriteString("  <")
	sb.WriteString(name)
	sb.WriteString(">")
	sb.WriteString(fmt.Sprintf("%.1f %s", *value, unit))
	sb.WriteString("</")
	sb.WriteString(name)
	sb.WriteString(">\n")
}

func writeSignal(sb *strings.Builder, signal domain.RiskSignal) {
	sb.WriteString("<signal>\n")
	sb.WriteString("  <kind>")
	sb.WriteString(string(signal.Kind))
	sb.WriteString("</kind>\n")
	sb.WriteString("  <severity>")
	sb.WriteString(string(signal.Severity))
	sb.WriteString("</severity>\n")
	sb.WriteString("  <timeframe>")
	sb.WriteString(string(signal.Timeframe))
	sb.WriteString("</timeframe>\n")
	sb.WriteString("  <evidence>")
	sb.WriteString(escape(signal.Evidence))
	sb.WriteString("</evidence>\n")
	sb.WriteString("</signal>\n\n")
}

func writeKnowledge(sb *strings.Builder, passages []domain.KnowledgePassage) {
	sb.WriteString("<knowledge>\n")
	for _, p := range passages {
		sb.WriteString("  <passage>\n")
		sb.WriteString("    <source_tag>")
		sb.WriteString(escape(p.SourceTag))
		sb.WriteString("</source_tag>\n")
		sb.WriteString("    <relevance>")
		sb.WriteString(fmt.Sprintf("%.4f", p.RelevanceScore))
		sb.WriteString("</relevance>\n")
		sb.WriteString("    <text>")
		sb.WriteString(escape(p.Text))
		sb.WriteString("</text>\n")
		sb.WriteString("  </passage>\n")
	}
	sb.WriteString("</knowledge>\n")
}

func escape(value string) string {
	s := strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}
