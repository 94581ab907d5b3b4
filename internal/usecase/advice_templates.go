package usecase

import (
	"fmt"
	"strings"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
)

// adviceTemplate is the deterministic fallback substituted when
// generation fails the output contract for a signal. Templates never
// leave a signal unaddressed.
type adviceTemplate struct {
	Title     string
	Action    string
	Resources []string
}

var fallbackTemplates = map[domain.RiskKind]map[string]adviceTemplate{
	domain.RiskStorm: {
		AudienceGeneral: {
			Title:     "Prepare for storm conditions",
			Action:    "Secure loose outdoor items, charge phones and lights, and stay indoors while the storm passes.",
			Resources: []string{"emergency kit", "flashlight", "battery-powered radio"},
		},
		AudienceFarmers: {
			Title:     "Protect crops and livestock before the storm",
			Action:    "Move animals to sturdy shelter, reinforce greenhouses and trellises, and postpone open-field work.",
			Resources: []string{"livestock shelter", "tarpaulins", "rope"},
		},
		AudienceOfficials: {
			Title:     "Activate storm preparedness protocols",
			Action:    "Issue a public advisory, pre-position response teams, and verify evacuation centers are ready.",
			Resources: []string{"public address system", "evacuation centers", "rescue equipment"},
		},
	},
	domain.RiskFlood: {
		AudienceGeneral: {
			Title:     "Prepare for possible flooding",
			Action:    "Move valuables above ground level, avoid low-lying roads, and know your nearest evacuation route.",
			Resources: []string{"drinking water", "waterproof bags"},
		},
		AudienceFarmers: {
			Title:     "Protect fields and stock from flooding",
			Action:    "Clear drainage canals, move harvested produce and feed to high ground, and relocate animals from low paddocks.",
			Resources: []string{"drainage tools", "harvest containers"},
		},
		AudienceOfficials: {
			Title:     "Stage flood response resources",
			Action:    "Monitor river and drainage levels, ready pumps and rescue boats, and alert riverside communities.",
			Resources: []string{"rescue equipment", "relief supplies"},
		},
	},
	domain.RiskHeat: {
		AudienceGeneral: {
			Title:     "Stay safe in the heat",
			Action:    "Limit outdoor activity around midday, drink water often, and check on children and the elderly.",
			Resources: []string{"drinking water", "oral rehydration salts"},
		},
		AudienceFarmers: {
			Title:     "Shield crops and animals from heat stress",
			Action:    "Irrigate in the early morning, provide shade and extra drinking water for livestock, and delay strenuous field work.",
			Resources: []string{"shade nets", "extra water supply"},
		},
		AudienceOfficials: {
			Title:     "Open heat-relief support",
			Action:    "Issue a heat advisory, open cooling or hydration stations, and monitor outdoor work sites.",
			Resources: []string{"cooling centers", "water stations"},
		},
	},
	domain.RiskWind: {
		AudienceGeneral: {
			Title:     "Secure against strong winds",
			Action:    "Tie down or store loose objects, park vehicles away from trees, and keep windows closed.",
			Resources: []string{"rope", "storm shutters"},
		},
		AudienceFarmers: {
			Title:     "Brace farm structures for strong winds",
			Action:    "Stake young plants, reinforce sheds and net houses, and move poultry to enclosed shelter.",
			Resources: []string{"stakes", "tarpaulins"},
		},
		AudienceOfficials: {
			Title:     "Prepare for wind damage",
			Action:    "Alert utility crews for possible line damage, clear unstable signage and branches, and brief response teams.",
			Resources: []string{"chainsaws", "barricades"},
		},
	},
	domain.RiskOther: {
		AudienceGeneral: {
			Title:     "Stay alert to changing weather",
			Action:    "Follow official weather updates and review your household emergency plan.",
			Resources: []string{"battery-powered radio"},
		},
		AudienceFarmers: {
			Title:     "Review farm contingency plans",
			Action:    "Check forecasts before committing field work and protect frost- or drought-sensitive crops.",
			Resources: []string{"row covers", "irrigation supplies"},
		},
		AudienceOfficials: {
			Title:     "Maintain situational awareness",
			Action:    "Keep monitoring stations active, update duty rosters, and confirm communication lines with field units.",
			Resources: []string{"monitoring equipment"},
		},
	},
}

var baselineTemplates = map[string]adviceTemplate{
	AudienceGeneral: {
		Title:     "No weather hazards expected",
		Action:    "Carry on with normal activities and keep your emergency kit stocked.",
		Resources: []string{"emergency kit"},
	},
	AudienceFarmers: {
		Title:     "Favorable conditions for field work",
		Action:    "Proceed with planned farm activities and restock supplies while the weather holds.",
		Resources: []string{"farm supplies"},
	},
	AudienceOfficials: {
		Title:     "Normal operations",
		Action:    "Maintain routine weather monitoring and keep readiness inventories up to date.",
		Resources: []string{"monitoring equipment"},
	},
}

// fallbackRecommendation builds the template for a signal. Priority maps
// straight from severity and timing from the signal timeframe, so the
// clamp invariant holds by construction.
func fallbackRecommendation(signal domain.RiskSignal, audience string) domain.Recommendation {
	byAudience, ok := fallbackTemplates[signal.Kind]
	if !ok {
		byAudience = fallbackTemplates[domain.RiskOther]
	}
	tpl, ok := byAudience[audience]
	if !ok {
		tpl = byAudience[AudienceGeneral]
	}

	return domain.Recommendation{
		Title:           tpl.Title,
		Action:          tpl.Action,
		Reason:          signal.Evidence,
		Priority:        severityPriority(signal.Severity),
		Timing:          timeframeTiming(signal.Timeframe),
		TargetAudience:  audience,
		ResourcesNeeded: tpl.Resources,
	}
}

// baselineRecommendation is the routine advice emitted when no signals
// exist and generation is unavailable or non-conforming.
func baselineRecommendation(audience string) domain.Recommendation {
	tpl, ok := baselineTemplates[audience]
	if !ok {
		tpl = baselineTemplates[AudienceGeneral]
	}
	return domain.Recommendation{
		Title:           tpl.Title,
		Action:          tpl.Action,
		Reason:          "No hazard signals were derived from the current forecast.",
		Priority:        domain.PriorityLow,
		Timing:          domain.TimingThisWeek,
		TargetAudience:  audience,
		ResourcesNeeded: tpl.Resources,
	}
}

func severityPriority(sev domain.Severity) domain.Priority {
	switch sev {
	case domain.SeverityCritical:
		return domain.PriorityCritical
	case domain.SeverityHigh:
		return domain.PriorityHigh
	case domain.SeverityMedium:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func timeframeTiming(tf domain.Timeframe) domain.Timing {
	switch tf {
	case domain.TimeframeImmediate:
		return domain.TimingImmediate
	case domain.TimeframeToday:
		return domain.TimingToday
	case domain.TimeframeThisWeek:
		return domain.TimingThisWeek
	default:
		return domain.TimingNextWeek
	}
}

// templateSummary is the deterministic narrative fallback. It only
// names hazards and actions present in the structured output, so the
// cross-check invariant holds by construction.
func templateSummary(location, audience string, signals []domain.RiskSignal, recs []domain.Recommendation) string {
	var sb strings.Builder

	place := strings.TrimSpace(location)
	if place == "" {
		place = "the requested location"
	}

	if len(signals) == 0 {
		fmt.Fprintf(&sb, "Weather conditions for %s look stable with no hazard signals in the forecast window. ", place)
	} else {
		names := make([]string, 0, len(signals))
		for _, s := range signals {
			names = append(names, fmt.Sprintf("%s (%s)", s.Kind, s.Severity))
		}
		fmt.Fprintf(&sb, "Weather analysis for %s identified %d hazard signal(s): %s. ", place, len(signals), strings.Join(names, ", "))
	}

	if len(recs) > 0 {
		fmt.Fprintf(&sb, "The most urgent action is %q, due %s. ", recs[0].Title, recs[0].Timing)
		if len(recs) > 1 {
			fmt.Fprintf(&sb, "%d further action(s) follow in the checklist. ", len(recs)-1)
		}
	}

	switch audience {
	case AudienceFarmers:
		sb.WriteString("Plan field and livestock work around the stated timing.")
	case AudienceOfficials:
		sb.WriteString("Coordinate response activities according to the stated priorities.")
	default:
		sb.WriteString("Follow the stated timing and keep an eye on official updates.")
	}

	return sb.String()
}
