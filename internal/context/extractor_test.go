package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapshock/internal/protocol"
)

func TestExtractEntities(t *testing.T) {
	got := Extract("analyze Acme Corp exposure in the european fintech market using cloud platforms")

	assert.Contains(t, got.Entities.Companies, "Acme Corp")
	assert.Contains(t, got.Entities.Industries, "fintech")
	assert.Contains(t, got.Entities.Markets, "market")
	assert.Contains(t, got.Entities.Technologies, "cloud")
	assert.Contains(t, got.Entities.Technologies, "platform")
}

func TestExtractAnalysisType(t *testing.T) {
	tests := []struct {
		query string
		want  protocol.AnalysisType
	}{
		{"how do we compete with rivals", protocol.AnalysisCompetitive},
		{"assess the cyber attack surface", protocol.AnalysisThreat},
		{"regulatory agency oversight gaps", protocol.AnalysisInstitutional},
		{"disinformation in the press", protocol.AnalysisNarrative},
		{"financial exposure to trade disruption", protocol.AnalysisEconomic},
		{"tell me about this organization", protocol.AnalysisGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.query).Context.AnalysisType)
		})
	}
}

func TestExtractUrgency(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  protocol.Urgency
	}{
		{"emergency wording", "urgent: we need this immediately", protocol.UrgencyCritical},
		{"priority wording", "high priority review of suppliers", protocol.UrgencyHigh},
		{"plain query", "overview of the retail sector", protocol.UrgencyMedium},
		{"empty query", "", protocol.UrgencyLow},
		{"whitespace only", "   ", protocol.UrgencyLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.query).Context.Urgency)
		})
	}
}

func TestExtractKeywordsFeedTheMatcher(t *testing.T) {
	got := Extract("Acme Corp banking exposure in europe")

	require.NotNil(t, got.Context)
	assert.Contains(t, got.Context.Keywords, "banking")
	assert.Contains(t, got.Context.Keywords, "europe")
	assert.Contains(t, got.Context.Keywords, "acme corp", "company names are lowercased")
}

func TestExtractCapsAndDedupes(t *testing.T) {
	got := Extract("tech tech tech energy oil gas banking insurance media gaming retail")

	assert.LessOrEqual(t, len(got.Entities.Industries), 5)
	counts := make(map[string]int)
	for _, kw := range got.Entities.Industries {
		counts[kw]++
	}
	for kw, n := range counts {
		assert.Equal(t, 1, n, "duplicate industry %q", kw)
	}
}
