package research

import "time"

// QueryType labels the four research passes run per analysis.
type QueryType string

const (
	QueryPrimary     QueryType = "primary_analysis"
	QueryCompetitive QueryType = "competitive_analysis"
	QueryRisk        QueryType = "risk_assessment"
	QueryOpportunity QueryType = "opportunity_analysis"
)

// Query is one research question posed to the LLM.
type Query struct {
	Type     QueryType `json:"query_type"`
	Text     string    `json:"query_text"`
	Priority string    `json:"priority"`
}

// response is the analyst-schema payload expected from the model. Parsing is
// lenient: any missing section is simply empty.
type response struct {
	ExecutiveSummary struct {
		KeyFindings     flexibleStrings `json:"key_findings"`
		ConfidenceScore float64         `json:"confidence_score"`
	} `json:"executive_summary"`
	DetailedAnalysis struct {
		Insights flexibleStrings `json:"insights"`
	} `json:"detailed_analysis"`
	StrategicImplications struct {
		Recommendations flexibleStrings `json:"recommendations"`
		Risks           flexibleStrings `json:"risks"`
		Opportunities   flexibleStrings `json:"opportunities"`
	} `json:"strategic_implications"`
}

// queryResult pairs a query with its parsed response.
type queryResult struct {
	query    Query
	response response
	err      error
}

// ExecutiveSummary heads the report.
type ExecutiveSummary struct {
	Company          string    `json:"company"`
	Industry         string    `json:"industry"`
	AnalysisType     string    `json:"analysis_type"`
	KeyFindings      []string  `json:"key_findings"`
	ConfidenceScore  float64   `json:"confidence_score"`
	Timestamp        time.Time `json:"timestamp"`
	ProtocolsApplied int       `json:"protocols_applied"`
}

// DetailedAnalysis carries the synthesized strategic content.
type DetailedAnalysis struct {
	StrategicRecommendations []string `json:"strategic_recommendations"`
	RisksAndThreats          []string `json:"risks_and_threats"`
	MarketOpportunities      []string `json:"market_opportunities"`
}

// DataQuality describes how trustworthy the analysis is.
type DataQuality struct {
	SourceCoverage    int     `json:"source_coverage"`
	VerificationScore float64 `json:"verification_score"`
	FreshnessRating   string  `json:"freshness_rating"`
	ConfidenceLevel   string  `json:"confidence_level"`
}

// Methodology records what was applied and how deep the pass went.
type Methodology struct {
	ProtocolsApplied  []string `json:"protocols_applied"`
	AnalysisDepth     string   `json:"analysis_depth"`
	VerificationLevel string   `json:"verification_level"`
}

// NextSteps closes the report with follow-up guidance.
type NextSteps struct {
	ImmediateActions          []string `json:"immediate_actions"`
	MonitoringRecommendations []string `json:"monitoring_recommendations"`
	FollowUpAnalysis          []string `json:"follow_up_analysis"`
}

// Report is the formatted analysis output.
type Report struct {
	ExecutiveSummary ExecutiveSummary `json:"executive_summary"`
	DetailedAnalysis DetailedAnalysis `json:"detailed_analysis"`
	DataQuality      DataQuality      `json:"data_quality"`
	Methodology      Methodology      `json:"methodology"`
	NextSteps        NextSteps        `json:"next_steps"`
}
