package research

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxagent "mapshock/internal/context"
	"mapshock/internal/perception"
	"mapshock/internal/protocol"
)

func testInput(t *testing.T) Input {
	t.Helper()
	return Input{
		Enriched: &ctxagent.Enriched{
			Extracted: ctxagent.Extracted{
				Entities: ctxagent.Entities{
					Companies:  []string{"Acme Corp"},
					Industries: []string{"fintech"},
				},
				Context: &protocol.AnalysisContext{
					RawQuery:     "urgent review of Acme Corp cyber exposure",
					AnalysisType: protocol.AnalysisThreat,
					Urgency:      protocol.UrgencyCritical,
				},
			},
		},
		Selection: &protocol.SelectionResult{
			Tier:              25,
			SelectedProtocols: []string{"DVF_v1.0", "10.0", "52.4", "51.1"},
			ActivationReasons: map[string]string{},
		},
	}
}

const analystJSON = `{
  "executive_summary": {"key_findings": ["finding one", "finding two"], "confidence_score": 0.9},
  "detailed_analysis": {"insights": "plenty"},
  "strategic_implications": {
    "recommendations": ["do a thing"],
    "risks": ["a risk"],
    "opportunities": ["an opening"]
  }
}`

func TestBuildQueries(t *testing.T) {
	queries := BuildQueries(testInput(t))
	require.Len(t, queries, 4)

	assert.Equal(t, QueryPrimary, queries[0].Type)
	assert.Equal(t, "high", queries[0].Priority)
	assert.Contains(t, queries[0].Text, "threat analysis for Acme Corp")
	assert.Contains(t, queries[0].Text, "urgent review of Acme Corp cyber exposure")

	types := map[QueryType]bool{}
	for _, q := range queries {
		types[q.Type] = true
		assert.Contains(t, q.Text, "Acme Corp")
	}
	assert.Len(t, types, 4, "all four query types present")
}

func TestBuildQueriesDefaultsWithoutEntities(t *testing.T) {
	in := testInput(t)
	in.Enriched.Entities = ctxagent.Entities{}

	queries := BuildQueries(in)
	assert.Contains(t, queries[0].Text, "Target Company")
	assert.Contains(t, queries[1].Text, "technology")
}

func TestConductSynthesizesResponses(t *testing.T) {
	fake := perception.NewFakeClient(analystJSON)
	agent := NewAgent(fake, nil)

	report := agent.Conduct(context.Background(), testInput(t))

	assert.Equal(t, "Acme Corp", report.ExecutiveSummary.Company)
	assert.Equal(t, "Threat", report.ExecutiveSummary.AnalysisType)
	assert.Equal(t, 4, report.ExecutiveSummary.ProtocolsApplied)
	assert.Contains(t, report.ExecutiveSummary.KeyFindings, "finding one")
	assert.LessOrEqual(t, len(report.ExecutiveSummary.KeyFindings), 5)

	assert.Contains(t, report.DetailedAnalysis.StrategicRecommendations, "do a thing")
	assert.Contains(t, report.DetailedAnalysis.RisksAndThreats, "a risk")
	assert.Contains(t, report.DetailedAnalysis.MarketOpportunities, "an opening")

	assert.Equal(t, 1.0, report.DataQuality.VerificationScore, "all four queries succeeded")

	// The analyst prompt must carry the ordered protocol list.
	calls := fake.Calls()
	require.Len(t, calls, 4)
	for _, prompt := range calls {
		assert.Contains(t, prompt, "DVF_v1.0, 10.0, 52.4, 51.1")
		assert.Contains(t, prompt, "Threat Tier: 25")
	}
}

func TestConductCapsAtFivePerSection(t *testing.T) {
	var findings []string
	for i := 0; i < 8; i++ {
		findings = append(findings, fmt.Sprintf(`"finding %d"`, i))
	}
	fake := perception.NewFakeClient(fmt.Sprintf(
		`{"executive_summary": {"key_findings": [%s]}}`, strings.Join(findings, ",")))

	report := NewAgent(fake, nil).Conduct(context.Background(), testInput(t))
	assert.Len(t, report.ExecutiveSummary.KeyFindings, 5)
}

func TestConductToleratesQueryFailures(t *testing.T) {
	fake := perception.NewFakeClient("")
	fake.Err = fmt.Errorf("backend down")
	agent := NewAgent(fake, nil)

	report := agent.Conduct(context.Background(), testInput(t))

	require.NotNil(t, report)
	assert.Zero(t, report.DataQuality.VerificationScore)
	assert.Equal(t, 0.0, report.ExecutiveSummary.ConfidenceScore)
	assert.NotEmpty(t, report.NextSteps.ImmediateActions, "fallback report is still complete")
}

func TestConductWithoutLLM(t *testing.T) {
	report := NewAgent(nil, nil).Conduct(context.Background(), testInput(t))

	require.NotNil(t, report)
	assert.Empty(t, report.ExecutiveSummary.KeyFindings)
	assert.Equal(t, "Acme Corp", report.ExecutiveSummary.Company)
}

func TestConductNamesProtocolsFromCatalog(t *testing.T) {
	cat, err := protocol.DefaultCatalog()
	require.NoError(t, err)

	fake := perception.NewFakeClient(analystJSON)
	report := NewAgent(fake, cat).Conduct(context.Background(), testInput(t))

	assert.Contains(t, report.Methodology.ProtocolsApplied, "Data Verification Framework (DVF_v1.0)")
	assert.Contains(t, report.Methodology.ProtocolsApplied, "Foreign Influence Detection (10.0)")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "plain json",
			raw:  analystJSON,
			want: []string{"finding one", "finding two"},
		},
		{
			name: "fenced json",
			raw:  "Here is the analysis:\n```json\n" + analystJSON + "\n```\nHope that helps.",
			want: []string{"finding one", "finding two"},
		},
		{
			name: "single string finding",
			raw:  `{"executive_summary": {"key_findings": "just one"}}`,
			want: []string{"just one"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseResponse(tt.raw, QueryPrimary)
			assert.Equal(t, flexibleStrings(tt.want), got.ExecutiveSummary.KeyFindings)
		})
	}
}

func TestParseResponsePlainTextFallback(t *testing.T) {
	long := strings.Repeat("prose about the market ", 20)
	got := parseResponse(long, QueryRisk)

	require.Len(t, got.ExecutiveSummary.KeyFindings, 1)
	assert.True(t, strings.HasSuffix(got.ExecutiveSummary.KeyFindings[0], "..."))
	assert.Equal(t, 0.75, got.ExecutiveSummary.ConfidenceScore)
	assert.Contains(t, got.StrategicImplications.Recommendations[0], string(QueryRisk))
}
