// Package context turns a raw user query into the structured analysis
// context the selection engine consumes: extracted entities, a suggested
// analysis type and urgency, and optionally web-search enrichment.
package context

import (
	"regexp"
	"strings"

	"mapshock/internal/logging"
	"mapshock/internal/protocol"
)

// Entities are the named things pulled out of a query. Every slice is
// deduplicated and capped at five entries.
type Entities struct {
	Companies    []string `json:"companies,omitempty"`
	Industries   []string `json:"industries,omitempty"`
	Competitors  []string `json:"competitors,omitempty"`
	Markets      []string `json:"markets,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

var industryKeywords = []string{
	"technology", "tech", "ai", "artificial intelligence", "software", "fintech",
	"healthcare", "pharmaceutical", "automotive", "retail", "e-commerce",
	"manufacturing", "construction", "energy", "oil", "gas", "banking",
	"insurance", "telecommunications", "media", "entertainment", "gaming",
}

var marketKeywords = []string{
	"market", "europe", "asia", "america", "global", "domestic", "international",
}

var techKeywords = []string{
	"cloud", "mobile", "web", "platform", "api", "blockchain", "ml", "data",
}

// companyPattern matches capitalized multi-word names with an optional
// corporate suffix. Acronyms are matched separately.
var (
	companyPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*(?:\s+(?:Inc|Corp|LLC|Ltd|Co|Company))?\b`)
	acronymPattern = regexp.MustCompile(`\b[A-Z]{2,10}\b`)
)

// urgency and analysis-type keyword tables, most severe first.
var (
	criticalUrgencyWords = []string{"immediate", "urgent", "asap", "emergency", "critical"}
	highUrgencyWords     = []string{"soon", "quickly", "fast", "priority", "important", "significant"}

	analysisTypeWords = []struct {
		t     protocol.AnalysisType
		words []string
	}{
		{protocol.AnalysisCompetitive, []string{"compete", "competitor", "competitive", "rival"}},
		{protocol.AnalysisThreat, []string{"threat", "attack", "security", "breach", "cyber"}},
		{protocol.AnalysisInstitutional, []string{"institution", "government", "regulatory", "agency", "policy"}},
		{protocol.AnalysisNarrative, []string{"narrative", "media", "disinformation", "propaganda", "press"}},
		{protocol.AnalysisEconomic, []string{"market", "economic", "financial", "trade", "economy"}},
	}
)

// Extracted is the structured form of a query before enrichment.
type Extracted struct {
	Entities Entities                  `json:"entities"`
	Context  *protocol.AnalysisContext `json:"context"`
}

// Extract derives entities, analysis type, and urgency from the raw query.
// It is pure string processing; the safe default for an empty query is a
// low-urgency generic context.
func Extract(query string) *Extracted {
	text := strings.ToLower(query)

	ents := Entities{
		Industries:   matchKeywords(text, industryKeywords),
		Markets:      matchKeywords(text, marketKeywords),
		Technologies: matchKeywords(text, techKeywords),
	}

	var companies []string
	companies = append(companies, companyPattern.FindAllString(query, 3)...)
	companies = append(companies, acronymPattern.FindAllString(query, 3)...)
	ents.Companies = dedupeCap(companies, 5)

	cx := &protocol.AnalysisContext{
		RawQuery:     query,
		Keywords:     contextKeywords(ents),
		AnalysisType: suggestAnalysisType(text),
		Urgency:      detectUrgency(text),
	}

	logging.Get(logging.CategoryContext).Debugw("context extracted",
		"companies", len(ents.Companies),
		"industries", len(ents.Industries),
		"analysis_type", cx.AnalysisType,
		"urgency", cx.Urgency,
	)
	return &Extracted{Entities: ents, Context: cx}
}

func matchKeywords(text string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			out = append(out, kw)
		}
	}
	return dedupeCap(out, 5)
}

// contextKeywords flattens the matched entity terms into the keyword list
// the trigger matcher scans. Company names are lowercased to match the
// catalog's lowercase trigger phrases.
func contextKeywords(ents Entities) []string {
	var out []string
	out = append(out, ents.Industries...)
	out = append(out, ents.Markets...)
	out = append(out, ents.Technologies...)
	for _, c := range ents.Companies {
		out = append(out, strings.ToLower(c))
	}
	return dedupeCap(out, 20)
}

func suggestAnalysisType(text string) protocol.AnalysisType {
	for _, entry := range analysisTypeWords {
		for _, w := range entry.words {
			if strings.Contains(text, w) {
				return entry.t
			}
		}
	}
	return protocol.AnalysisGeneric
}

// detectUrgency maps urgency vocabulary to the engine's enum. A non-empty
// query with no urgency vocabulary is medium; an empty query is low, so
// silence never escalates.
func detectUrgency(text string) protocol.Urgency {
	if strings.TrimSpace(text) == "" {
		return protocol.UrgencyLow
	}
	for _, w := range criticalUrgencyWords {
		if strings.Contains(text, w) {
			return protocol.UrgencyCritical
		}
	}
	for _, w := range highUrgencyWords {
		if strings.Contains(text, w) {
			return protocol.UrgencyHigh
		}
	}
	return protocol.UrgencyMedium
}

func dedupeCap(in []string, max int) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}
