package context

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mapshock/internal/logging"
	"mapshock/internal/protocol"
)

// Search categories; five queries each, fifteen total per request.
const (
	CategoryCompany     = "company"
	CategoryIndustry    = "industry"
	CategoryCompetition = "competition"

	queriesPerCategory = 5
)

// Insight is a search-derived highlight carried into the research stage.
type Insight struct {
	Category string  `json:"category"`
	Text     string  `json:"insight"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
}

// Intelligence summarizes what the search pass found.
type Intelligence struct {
	DataQualityScore float64   `json:"data_quality_score"`
	SourceDiversity  float64   `json:"source_diversity"`
	ContentFreshness string    `json:"content_freshness"`
	KeyInsights      []Insight `json:"key_insights,omitempty"`
}

// Enriched is the extractor output plus optional web intelligence. Search
// failures degrade it, never invalidate it: Context is always usable.
type Enriched struct {
	Extracted
	Queries       map[string][]string       `json:"queries,omitempty"`
	Results       map[string][]SearchResult `json:"results,omitempty"`
	Intelligence  Intelligence              `json:"intelligence"`
	FailedQueries []string                  `json:"failed_queries,omitempty"`
	SearchEnabled bool                      `json:"search_enabled"`
}

// Searcher is the slice of SearchClient the enricher needs; tests substitute
// a fake.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Enricher runs extraction and, when search is enabled, fans out the
// generated queries concurrently.
type Enricher struct {
	search        Searcher
	maxConcurrent int
}

// NewEnricher builds an enricher. A nil searcher disables enrichment; the
// extractor alone still yields a valid context.
func NewEnricher(search Searcher, maxConcurrent int) *Enricher {
	if maxConcurrent <= 0 {
		maxConcurrent = 15
	}
	return &Enricher{search: search, maxConcurrent: maxConcurrent}
}

// Enrich extracts the context and augments it with search intelligence.
// Individual query failures are recorded and tolerated; only full extraction
// output is guaranteed.
func (e *Enricher) Enrich(ctx context.Context, query string) *Enriched {
	out := &Enriched{
		Extracted:     *Extract(query),
		SearchEnabled: e.search != nil,
	}
	if e.search == nil {
		return out
	}

	out.Queries = GenerateQueries(query, out.Entities)
	out.Results = make(map[string][]SearchResult, len(out.Queries))

	type hit struct {
		category string
		results  []SearchResult
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	start := time.Now()
	for category, queries := range out.Queries {
		for _, q := range queries {
			category, q := category, q
			g.Go(func() error {
				results, err := e.search.Search(gctx, q)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					out.FailedQueries = append(out.FailedQueries, q)
					// Search degradation is tolerated per query.
					return nil
				}
				out.Results[category] = append(out.Results[category], results...)
				return nil
			})
		}
	}
	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()

	sort.Strings(out.FailedQueries)
	out.Intelligence = analyzeResults(out.Results)

	logging.Get(logging.CategoryContext).Infow("context enriched",
		"queries", 3*queriesPerCategory,
		"failed", len(out.FailedQueries),
		"quality", out.Intelligence.DataQualityScore,
		"elapsed", time.Since(start),
	)
	return out
}

// EngineContext returns the context to feed the selection engine.
func (e *Enriched) EngineContext() *protocol.AnalysisContext {
	return e.Context
}

// GenerateQueries builds fifteen search queries, five per category, from the
// raw query and its extracted entities. Generic fillers based on the query's
// leading words pad each category to exactly five.
func GenerateQueries(query string, ents Entities) map[string][]string {
	base := strings.Join(firstWords(query, 3), " ")
	if base == "" {
		base = "general"
	}

	out := map[string][]string{
		CategoryCompany:     {},
		CategoryIndustry:    {},
		CategoryCompetition: {},
	}

	for _, company := range capSlice(ents.Companies, 2) {
		out[CategoryCompany] = append(out[CategoryCompany],
			fmt.Sprintf("%s financial performance", company),
			fmt.Sprintf("%s market share analysis", company),
			fmt.Sprintf("%s recent news updates", company),
		)
	}
	padQueries(out, CategoryCompany,
		base+" company analysis",
		base+" business model",
	)

	industries := capSlice(ents.Industries, 2)
	if len(industries) == 0 {
		industries = []string{"technology"}
	}
	for _, industry := range industries {
		out[CategoryIndustry] = append(out[CategoryIndustry],
			fmt.Sprintf("%s industry trends", industry),
			fmt.Sprintf("%s market size forecast", industry),
			fmt.Sprintf("%s growth analysis", industry),
		)
	}
	padQueries(out, CategoryIndustry,
		base+" industry overview",
		base+" market trends",
	)

	for _, competitor := range capSlice(ents.Competitors, 2) {
		out[CategoryCompetition] = append(out[CategoryCompetition],
			fmt.Sprintf("%s vs competitors", competitor),
			fmt.Sprintf("%s competitive analysis", competitor),
		)
	}
	padQueries(out, CategoryCompetition,
		base+" competitors analysis",
		base+" competitive landscape",
		base+" market competition",
	)

	return out
}

func padQueries(out map[string][]string, category string, fillers ...string) {
	i := 0
	for len(out[category]) < queriesPerCategory {
		out[category] = append(out[category], fillers[i%len(fillers)])
		i++
	}
	out[category] = dedupeCap(out[category], queriesPerCategory)
	// Dedupe may shrink below the target; repeat numbered fillers to refill.
	for n := 1; len(out[category]) < queriesPerCategory; n++ {
		out[category] = append(out[category], fmt.Sprintf("%s %d", fillers[0], n))
	}
}

// analyzeResults computes the web-intelligence summary: quality is scaled by
// result count, diversity by distinct source domains, and freshness by the
// share of recent-looking content.
func analyzeResults(results map[string][]SearchResult) Intelligence {
	intel := Intelligence{ContentFreshness: "medium"}

	total := 0
	recent := 0
	sources := make(map[string]bool)
	var insights []Insight

	for category, hits := range results {
		for _, r := range hits {
			total++
			sources[r.SourceDomain] = true

			lower := strings.ToLower(r.Content)
			for _, term := range []string{"recent", "latest", "new", "today"} {
				if strings.Contains(lower, term) {
					recent++
					break
				}
			}

			if len(r.Content) > 100 {
				text := r.Content
				if len(text) > 200 {
					text = text[:200] + "..."
				}
				insights = append(insights, Insight{
					Category: category,
					Text:     text,
					Source:   r.SourceDomain,
					Score:    r.Score,
				})
			}
		}
	}

	intel.DataQualityScore = minFloat(1.0, float64(total)/10.0)
	intel.SourceDiversity = minFloat(1.0, float64(len(sources))/8.0)
	if total > 0 && float64(recent) > float64(total)*0.6 {
		intel.ContentFreshness = "high"
	}

	sort.SliceStable(insights, func(i, j int) bool { return insights[i].Score > insights[j].Score })
	if len(insights) > 10 {
		insights = insights[:10]
	}
	intel.KeyInsights = insights

	return intel
}

func firstWords(s string, n int) []string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return fields
}

func capSlice(in []string, max int) []string {
	if len(in) > max {
		return in[:max]
	}
	return in
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
