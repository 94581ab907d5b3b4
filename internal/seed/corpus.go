// Package seed carries the default best-practice corpus loaded by
// kbctl seed when no document file is given.
package seed

import "github.com/dreiseu/ai-weather-insights-agent/internal/usecase"

// DefaultCorpus returns the built-in weather preparedness documents.
// The thresholds quoted in the passages match the analyzer's rules so
// retrieved advice stays consistent with the signals that triggered it.
func DefaultCorpus() []usecase.KnowledgeDocumentInput {
	return []usecase.KnowledgeDocumentInput{
		{
			Category:  "storm",
			Audience:  "farmers",
			SourceTag: "system-thunderstorm-advisory",
			Text: "Humidity above 80% combined with rising temperatures sharply raises the chance of thunderstorm formation. " +
				"Secure outdoor equipment before conditions deteriorate and keep workers away from tall isolated structures. " +
				"Move livestock to sheltered areas early, while handling is still safe.",
		},
		{
			Category:  "frost",
			Audience:  "farmers",
			SourceTag: "system-frost-protection",
			Text: "Nighttime temperatures forecast below 2°C bring a high risk of frost formation on open fields. " +
				"Cover sensitive crops with row covers or straw, drain exposed irrigation lines before they freeze, and give livestock extra bedding and shelter. " +
				"Inspect fields at first light, since frost damage shows earliest on young leaves.",
		},
		{
			Category:  "wind",
			Audience:  "farmers",
			SourceTag: "system-wind-operations",
			Text: "Wind speeds above 15 m/s make most field operations dangerous. " +
				"Avoid operating tall machinery, postpone any spraying since drift becomes uncontrollable, and tie down or store loose materials such as tarpaulins and crates. " +
				"Suspend harvest work until the wind subsides.",
		},
		{
			Category:  "storm",
			Audience:  "officials",
			SourceTag: "system-pressure-drop-advisory",
			Text: "A rapid atmospheric pressure drop of more than 3 hPa per hour usually signals an approaching weather system. " +
				"Expect heavy rain, strong winds, or storms within 12 to 24 hours. " +
				"Issue public advisories early, verify communication lines with barangay units, and pre-position response teams before conditions worsen.",
		},
		{
			Category:  "heat",
			Audience:  "general",
			SourceTag: "system-heat-stress-prevention",
			Text: "A heat index above 32°C puts outdoor workers and livestock at risk of heat stress. " +
				"Schedule heavy work for early morning or evening, keep drinking water within reach at all times, and set up shaded rest areas. " +
				"Watch for dizziness, cramps, and confusion, which are early symptoms of heat exhaustion.",
		},
		{
			Category:  "flood",
			Audience:  "general",
			SourceTag: "system-flash-flood-advisory",
			Text: "Rainfall rates above 25 mm per hour can trigger flash flooding, especially where drainage is poor. " +
				"Clear canals and gutters before the rain arrives, move valuables and vehicles away from low-lying areas, and prepare an emergency kit with food, water, and a flashlight. " +
				"Never walk or drive through moving floodwater.",
		},
		{
			Category:  "flood",
			Audience:  "farmers",
			SourceTag: "pagasa-field-drainage-guide",
			Text: "Standing water after heavy rain suffocates roots and invites fungal disease. " +
				"Open field drains ahead of forecast downpours, harvest mature crops from flood-prone paddies early, and move stored grain and feed above expected water lines. " +
				"Check levees and dikes for erosion after each heavy rainfall event.",
		},
		{
			Category:  "storm",
			Audience:  "general",
			SourceTag: "pagasa-household-storm-guide",
			Text: "Before a storm arrives, charge phones and backup batteries, store at least three days of drinking water, and fasten roof sheets and windows. " +
				"Know the route to the nearest evacuation center and agree on a family meeting point in case members are separated. " +
				"Keep copies of important documents in a waterproof container.",
		},
		{
			Category:  "flood",
			Audience:  "officials",
			SourceTag: "noah-flood-coordination",
			Text: "Flood response works best when staged before water rises. " +
				"Activate the local disaster risk reduction council once rainfall forecasts exceed warning thresholds, open evacuation centers in elevated areas, and position rescue boats near historically flooded communities. " +
				"Coordinate road closures with traffic management so relief convoys keep moving.",
		},
		{
			Category:  "heat",
			Audience:  "officials",
			SourceTag: "system-heat-response-plan",
			Text: "During prolonged high heat, open air-conditioned public buildings as cooling centers and extend hours at public pools and covered courts. " +
				"Prioritize welfare checks on the elderly and outdoor laborers, and remind schools to move physical activities indoors or to early morning.",
		},
		{
			Category:  "drought",
			Audience:  "farmers",
			SourceTag: "system-drought-management",
			Text: "Extended dry spells with high temperatures deplete soil moisture fastest in sandy and recently tilled fields. " +
				"Mulch around standing crops to slow evaporation, irrigate at dusk or dawn to cut losses, and prioritize water for crops near maturity. " +
				"Report failing communal water sources to the municipal agriculture office early.",
		},
		{
			Category:  "wind",
			Audience:  "general",
			SourceTag: "system-wind-safety",
			Text: "Strong winds turn unsecured objects into projectiles. " +
				"Bring in laundry lines, potted plants, and light furniture, park vehicles away from old trees and utility poles, and stay clear of windows during the strongest gusts. " +
				"Report downed power lines instead of approaching them.",
		},
	}
}
