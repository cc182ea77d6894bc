package protocol

import (
	"strings"

	"mapshock/internal/logging"
)

// Candidate is a protocol activated by trigger matching, with the strength
// of its match. Strength is the number of trigger keywords found plus one
// for a purpose-tag hit; it orders triggered protocols in the final result.
type Candidate struct {
	Record   *ProtocolRecord
	Strength int
}

// TriggerMatcher produces the initial candidate set for a context. Matching
// is pure and order-independent: the same context and catalog always yield
// the same candidates, with no I/O and no randomness.
type TriggerMatcher struct {
	catalog *Catalog
}

// NewTriggerMatcher builds a matcher over an immutable catalog.
func NewTriggerMatcher(catalog *Catalog) *TriggerMatcher {
	return &TriggerMatcher{catalog: catalog}
}

// Match scans every catalog record against the context. A record is a
// candidate when any trigger keyword occurs in the context text or its
// purpose tag equals the analysis type. The generic analysis type is the
// catch-all default and never purpose-matches: an empty context must not
// activate every generic-purpose record. Records whose tier range excludes
// the assessed tier are never matched, even on a keyword hit.
func (m *TriggerMatcher) Match(cx *AnalysisContext, tier int) []Candidate {
	text := cx.matchText()

	var candidates []Candidate
	for _, rec := range m.catalog.All() {
		if !rec.EligibleAt(tier) {
			continue
		}

		strength := 0
		for _, kw := range rec.TriggerKeywords {
			if kw != "" && strings.Contains(text, kw) {
				strength++
			}
		}
		if rec.PurposeTag != "" && cx.AnalysisType != AnalysisGeneric &&
			rec.PurposeTag == string(cx.AnalysisType) {
			strength++
		}

		if strength > 0 {
			candidates = append(candidates, Candidate{Record: rec, Strength: strength})
		}
	}

	logging.Get(logging.CategorySelection).Debugf(
		"trigger match: %d candidates at tier %d", len(candidates), tier)
	return candidates
}
