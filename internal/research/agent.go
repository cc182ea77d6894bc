// Package research runs the LLM research pass: four queries derived from
// the enriched context and the selected protocols, synthesized into a
// formatted report. Per-query failures degrade the report instead of
// failing it.
package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	ctxagent "mapshock/internal/context"
	"mapshock/internal/logging"
	"mapshock/internal/perception"
	"mapshock/internal/protocol"
)

const analystSystemPrompt = `You are a MAPSHOCK intelligence analyst. Provide comprehensive analysis in JSON format with:
1. executive_summary (key_findings, confidence_score)
2. detailed_analysis (insights)
3. strategic_implications (recommendations, risks, opportunities)`

// maxPerSection caps each synthesized list in the report.
const maxPerSection = 5

// Agent conducts the research pass for one analysis.
type Agent struct {
	llm     perception.LLMClient
	catalog *protocol.Catalog
}

// NewAgent builds an agent. A nil client produces fallback reports only;
// the catalog, when present, lets reports name protocols instead of ids.
func NewAgent(llm perception.LLMClient, catalog *protocol.Catalog) *Agent {
	return &Agent{llm: llm, catalog: catalog}
}

// Input is everything the research pass consumes.
type Input struct {
	Enriched  *ctxagent.Enriched
	Selection *protocol.SelectionResult
}

// BuildQueries derives the four research queries from the input. The primary
// query carries the original ask; the rest probe fixed angles.
func BuildQueries(in Input) []Query {
	company := companyName(in)
	industry := industryName(in)
	analysisType := string(in.Enriched.Context.AnalysisType)

	return []Query{
		{
			Type: QueryPrimary,
			Text: fmt.Sprintf("Conduct %s analysis for %s in the %s industry. Focus on: %s",
				analysisType, company, industry, in.Enriched.Context.RawQuery),
			Priority: "high",
		},
		{
			Type:     QueryCompetitive,
			Text:     fmt.Sprintf("Analyze competitive landscape for %s in %s industry", company, industry),
			Priority: "medium",
		},
		{
			Type:     QueryRisk,
			Text:     fmt.Sprintf("Identify key risks and threats for %s in current market conditions", company),
			Priority: "medium",
		},
		{
			Type:     QueryOpportunity,
			Text:     fmt.Sprintf("Identify strategic opportunities for %s in %s market", company, industry),
			Priority: "medium",
		},
	}
}

// Conduct runs the four queries sequentially, synthesizes the responses,
// and formats the report. It always returns a report; with no working LLM
// every section degrades to its fallback content.
func (a *Agent) Conduct(ctx context.Context, in Input) *Report {
	log := logging.Get(logging.CategoryResearch)

	queries := BuildQueries(in)
	results := make([]queryResult, 0, len(queries))

	for _, q := range queries {
		res := queryResult{query: q}
		if a.llm == nil {
			res.err = fmt.Errorf("no llm configured")
		} else {
			raw, err := a.llm.CompleteWithSystem(ctx, analystSystemPrompt, a.buildPrompt(in, q))
			if err != nil {
				res.err = fmt.Errorf("research query %s failed: %w", q.Type, err)
				log.Warnw("research query failed", "type", q.Type, "error", err)
			} else {
				res.response = parseResponse(raw, q.Type)
			}
		}
		results = append(results, res)
	}

	return a.format(in, synthesize(results), results)
}

// buildPrompt renders the analyst prompt: context block, the ordered active
// protocol list, then the query.
func (a *Agent) buildPrompt(in Input, q Query) string {
	var b strings.Builder
	b.WriteString("Analysis Context:\n")
	fmt.Fprintf(&b, "Company: %s\n", companyName(in))
	fmt.Fprintf(&b, "Industry: %s\n", industryName(in))
	fmt.Fprintf(&b, "Analysis Type: %s\n", in.Enriched.Context.AnalysisType)
	fmt.Fprintf(&b, "Threat Tier: %d\n", in.Selection.Tier)
	fmt.Fprintf(&b, "Active Protocols: %s\n", strings.Join(in.Selection.SelectedProtocols, ", "))

	if insights := in.Enriched.Intelligence.KeyInsights; len(insights) > 0 {
		b.WriteString("\nWeb Intelligence:\n")
		for i, ins := range insights {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", ins.Category, ins.Text)
		}
	}

	fmt.Fprintf(&b, "\nResearch Query: %s\n", q.Text)
	b.WriteString("\nProvide detailed analysis following MAPSHOCK protocols.")
	return b.String()
}

// synthesis is the merged view over all query responses.
type synthesis struct {
	findings        []string
	recommendations []string
	risks           []string
	opportunities   []string
	confidence      float64
	quality         float64
}

func synthesize(results []queryResult) synthesis {
	var s synthesis
	successes := 0

	for _, r := range results {
		if r.err != nil {
			continue
		}
		successes++
		s.findings = append(s.findings, r.response.ExecutiveSummary.KeyFindings...)
		s.recommendations = append(s.recommendations, r.response.StrategicImplications.Recommendations...)
		s.risks = append(s.risks, r.response.StrategicImplications.Risks...)
		s.opportunities = append(s.opportunities, r.response.StrategicImplications.Opportunities...)
	}

	s.findings = dedupe(s.findings, maxPerSection)
	s.recommendations = dedupe(s.recommendations, maxPerSection)
	s.risks = dedupe(s.risks, maxPerSection)
	s.opportunities = dedupe(s.opportunities, maxPerSection)

	s.confidence = 0.8
	if len(results) > 0 {
		s.quality = float64(successes) / float64(len(results))
	}
	if successes == 0 {
		s.confidence = 0.0
	}
	return s
}

func (a *Agent) format(in Input, s synthesis, results []queryResult) *Report {
	confidenceLevel := "Medium"
	if s.confidence > 0.8 {
		confidenceLevel = "High"
	}

	protocolNames := make([]string, 0, len(in.Selection.SelectedProtocols))
	for _, id := range in.Selection.SelectedProtocols {
		name := id
		if a.catalog != nil {
			if rec, ok := a.catalog.Get(id); ok && rec.Name != "" {
				name = fmt.Sprintf("%s (%s)", rec.Name, id)
			}
		}
		protocolNames = append(protocolNames, name)
	}

	freshness := "Medium"
	if in.Enriched.Intelligence.ContentFreshness == "high" {
		freshness = "High"
	}

	report := &Report{
		ExecutiveSummary: ExecutiveSummary{
			Company:          companyName(in),
			Industry:         industryName(in),
			AnalysisType:     titleCase(string(in.Enriched.Context.AnalysisType)),
			KeyFindings:      emptySafe(s.findings),
			ConfidenceScore:  s.confidence,
			Timestamp:        time.Now().UTC(),
			ProtocolsApplied: len(in.Selection.SelectedProtocols),
		},
		DetailedAnalysis: DetailedAnalysis{
			StrategicRecommendations: emptySafe(s.recommendations),
			RisksAndThreats:          emptySafe(s.risks),
			MarketOpportunities:      emptySafe(s.opportunities),
		},
		DataQuality: DataQuality{
			SourceCoverage:    len(in.Selection.SelectedProtocols),
			VerificationScore: s.quality,
			FreshnessRating:   freshness,
			ConfidenceLevel:   confidenceLevel,
		},
		Methodology: Methodology{
			ProtocolsApplied:  protocolNames,
			AnalysisDepth:     "Standard",
			VerificationLevel: "Enhanced",
		},
		NextSteps: NextSteps{
			ImmediateActions: []string{
				"Review and validate key findings with stakeholders",
				"Develop implementation plan for strategic recommendations",
				"Monitor identified risks and mitigation strategies",
			},
			MonitoringRecommendations: []string{
				"Set up alerts for competitor activity and market changes",
				"Establish KPIs to track progress on strategic initiatives",
			},
			FollowUpAnalysis: []string{
				"Quarterly strategic position review",
				"Customer perception and brand analysis",
			},
		},
	}

	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}
	logging.Get(logging.CategoryResearch).Infow("research complete",
		"queries", len(results),
		"failed", failed,
		"findings", len(report.ExecutiveSummary.KeyFindings),
	)
	return report
}

func companyName(in Input) string {
	if cs := in.Enriched.Entities.Companies; len(cs) > 0 {
		return cs[0]
	}
	return "Target Company"
}

func industryName(in Input) string {
	if is := in.Enriched.Entities.Industries; len(is) > 0 {
		return is[0]
	}
	return "technology"
}

func dedupe(in []string, max int) []string {
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
	sort.Strings(out)
	return out
}

func emptySafe(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
