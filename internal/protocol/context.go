package protocol

import "strings"

// AnalysisType is the closed enumeration of analysis categories a request
// can ask for.
type AnalysisType string

const (
	AnalysisCompetitive   AnalysisType = "competitive"
	AnalysisThreat        AnalysisType = "threat"
	AnalysisInstitutional AnalysisType = "institutional"
	AnalysisNarrative     AnalysisType = "narrative"
	AnalysisEconomic      AnalysisType = "economic"
	AnalysisGeneric       AnalysisType = "generic"
)

// KnownAnalysisType reports whether t is a member of the enumeration.
func KnownAnalysisType(t AnalysisType) bool {
	switch t {
	case AnalysisCompetitive, AnalysisThreat, AnalysisInstitutional,
		AnalysisNarrative, AnalysisEconomic, AnalysisGeneric:
		return true
	}
	return false
}

// Urgency is the request urgency signal from the context extractor.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// KnownUrgency reports whether u is a member of the enumeration.
func KnownUrgency(u Urgency) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// AnalysisContext is the per-request input to the engine. Any field may be
// absent; the engine substitutes safe defaults and never escalates on
// missing data.
type AnalysisContext struct {
	// RawQuery is the original user text.
	RawQuery string `json:"raw_query"`

	// Keywords are normalized lowercase tokens/phrases used for matching.
	Keywords []string `json:"keywords,omitempty"`

	// AnalysisType is the suggested analysis category.
	AnalysisType AnalysisType `json:"analysis_type,omitempty"`

	// Urgency is the suggested urgency level.
	Urgency Urgency `json:"urgency,omitempty"`
}

// normalized returns a copy with defaults substituted for missing or
// unknown fields, plus the fallback anomalies describing what was replaced.
// The original context is never mutated.
func (cx *AnalysisContext) normalized() (*AnalysisContext, []Anomaly) {
	var anomalies []Anomaly

	out := &AnalysisContext{}
	if cx != nil {
		*out = *cx
	}

	if cx == nil {
		anomalies = append(anomalies, Anomaly{
			Kind:   AnomalyContextFallback,
			Detail: "nil context, using defaults",
		})
	}

	if !KnownUrgency(out.Urgency) {
		if out.Urgency != "" {
			anomalies = append(anomalies, Anomaly{
				Kind:   AnomalyContextFallback,
				Detail: "unknown urgency " + string(out.Urgency) + ", defaulting to low",
			})
		}
		out.Urgency = UrgencyLow
	}

	if !KnownAnalysisType(out.AnalysisType) {
		if out.AnalysisType != "" {
			anomalies = append(anomalies, Anomaly{
				Kind:   AnomalyContextFallback,
				Detail: "unknown analysis type " + string(out.AnalysisType) + ", defaulting to generic",
			})
		}
		out.AnalysisType = AnalysisGeneric
	}

	normalized := make([]string, 0, len(out.Keywords))
	for _, kw := range out.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}
	out.Keywords = normalized

	return out, anomalies
}

// matchText returns the lowercase haystack that keyword triggers are matched
// against: the normalized keywords plus the raw query.
func (cx *AnalysisContext) matchText() string {
	parts := make([]string, 0, len(cx.Keywords)+1)
	parts = append(parts, cx.Keywords...)
	if cx.RawQuery != "" {
		parts = append(parts, strings.ToLower(cx.RawQuery))
	}
	return strings.Join(parts, " ")
}
