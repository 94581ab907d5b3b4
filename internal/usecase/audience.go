package usecase

// Audience tags recognized by the pipeline. Anything else is rejected at
// the API boundary; an empty tag falls back to the general profile.
const (
	AudienceGeneral   = "general"
	AudienceFarmers   = "farmers"
	AudienceOfficials = "officials"
)

// AudienceProfile is a flat vocabulary/framing lookup, not a behavioral
// subtype. The pipeline logic is identical for every audience; only the
// phrasing policy and retrieval context differ.
type AudienceProfile struct {
	Label string

	// Vocabulary steers word choice in generated text.
	Vocabulary string

	// Framing steers how actions are phrased.
	Framing string

	// ExampleResources seeds the resources_needed suggestions.
	ExampleResources []string

	// RetrievalContext is appended to similarity-search queries so the
	// knowledge store surfaces passages written for this audience.
	RetrievalContext string
}

var audienceProfiles = map[string]AudienceProfile{
	AudienceGeneral: {
		Label:            AudienceGeneral,
		Vocabulary:       "plain everyday language, no jargon",
		Framing:          "simple personal safety and preparation steps for households",
		ExampleResources: []string{"emergency kit", "flashlight", "drinking water", "battery-powered radio"},
		RetrievalContext: "daily activities safety preparation",
	},
	AudienceFarmers: {
		Label:            AudienceFarmers,
		Vocabulary:       "agricultural terms familiar to smallholder farmers",
		Framing:          "concrete field, crop, and livestock protection tasks",
		ExampleResources: []string{"tarpaulins", "drainage tools", "livestock shelter", "harvest containers"},
		RetrievalContext: "agricultural farming crop livestock protection",
	},
	AudienceOfficials: {
		Label:            AudienceOfficials,
		Vocabulary:       "disaster risk reduction and emergency management terminology",
		Framing:          "coordination, public advisory, and resource pre-positioning actions",
		ExampleResources: []string{"evacuation centers", "public address system", "rescue equipment", "relief supplies"},
		RetrievalContext: "disaster management emergency response community safety",
	},
}

// NormalizeAudience maps an empty tag to the general profile. Unknown
// tags are left to the caller to reject.
func NormalizeAudience(audience string) string {
	if audience == "" {
		return AudienceGeneral
	}
	return audience
}

// KnownAudience reports whether the tag names one of the three profiles.
func KnownAudience(audience string) bool {
	_, ok := audienceProfiles[audience]
	return ok
}

// ProfileFor returns the profile for the tag, falling back to general so
// the pipeline never runs without a phrasing policy.
func ProfileFor(audience string) AudienceProfile {
	if p, ok := audienceProfiles[audience]; ok {
		return p
	}
	return audienceProfiles[AudienceGeneral]
}

// ContactSuggestions lists audience-appropriate contacts attached to the
// bundle when any signal reaches high or critical severity.
func ContactSuggestions(audience string) []string {
	switch audience {
	case AudienceFarmers:
		return []string{
			"Municipal agriculture office",
			"NDRRMC emergency hotline 911",
			"Local disaster risk reduction and management office",
		}
	case AudienceOfficials:
		return []string{
			"NDRRMC operations center",
			"Regional disaster risk reduction and management council",
			"PAGASA weather service regional division",
		}
	default:
		return []string{
			"NDRRMC emergency hotline 911",
			"Local disaster risk reduction and management office",
			"Nearest evacuation center (ask your barangay hall)",
		}
	}
}
