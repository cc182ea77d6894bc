package protocol

import (
	"sort"
	"strings"
)

// TierBand is an inclusive tier range associated with an urgency level.
type TierBand struct {
	Min int
	Max int
}

// urgencyBands maps urgency to its base tier band. Unknown urgency is
// normalized to low before lookup, so absence of data never escalates.
var urgencyBands = map[Urgency]TierBand{
	UrgencyLow:      {Min: 1, Max: 5},
	UrgencyMedium:   {Min: 6, Max: 10},
	UrgencyHigh:     {Min: 11, Max: 20},
	UrgencyCritical: {Min: 21, Max: 33},
}

// BandFor returns the tier band for an urgency level, falling back to the
// low band for unknown values.
func BandFor(u Urgency) TierBand {
	if band, ok := urgencyBands[u]; ok {
		return band
	}
	return urgencyBands[UrgencyLow]
}

// DefaultHighSignalCategories groups escalation keywords by category. Each
// category with at least one phrase present in the context adds one
// increment to the tier, capped at the band's upper bound. The table is
// data, not code: callers may supply their own.
func DefaultHighSignalCategories() map[string][]string {
	return map[string][]string{
		"foreign_influence": {
			"foreign influence", "foreign interference", "election interference",
			"covert funding",
		},
		"cyber": {
			"cyber threat", "cyber attack", "cyberattack", "ransomware",
			"data breach", "zero-day",
		},
		"institutional_capture": {
			"institutional capture", "regulatory capture", "state capture",
			"judicial capture",
		},
		"economic_coercion": {
			"economic coercion", "sanctions evasion", "supply chain attack",
			"market manipulation",
		},
		"information_ops": {
			"disinformation", "influence operation", "propaganda",
			"coordinated inauthentic",
		},
	}
}

// TierAssessor maps a request context to a numeric threat tier.
type TierAssessor struct {
	categories map[string][]string
	increment  int
}

// NewTierAssessor builds an assessor from a high-signal keyword table and a
// per-category increment. A non-positive increment defaults to 2.
func NewTierAssessor(categories map[string][]string, increment int) *TierAssessor {
	if categories == nil {
		categories = DefaultHighSignalCategories()
	}
	if increment <= 0 {
		increment = 2
	}
	return &TierAssessor{categories: categories, increment: increment}
}

// Assess maps the context to a tier. The urgency selects the base band and
// each matched high-signal category raises the tier by the configured
// increment, never past the band's upper bound.
func (a *TierAssessor) Assess(cx *AnalysisContext) int {
	band := BandFor(cx.Urgency)
	tier := band.Min

	text := cx.matchText()
	if text == "" {
		return tier
	}

	// Deterministic order: sort category names before scanning.
	for _, name := range sortedKeys(a.categories) {
		for _, phrase := range a.categories[name] {
			if strings.Contains(text, phrase) {
				tier += a.increment
				break
			}
		}
	}

	if tier > band.Max {
		tier = band.Max
	}
	return tier
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
