package context

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mapshock/internal/logging"
)

// SearchResult is one normalized hit from the search API.
type SearchResult struct {
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	SourceDomain string  `json:"source_domain"`
}

// SearchClient talks to a Tavily-compatible search endpoint: a JSON POST
// carrying the api key and query, answered with scored results.
type SearchClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// SearchConfig configures the search client.
type SearchConfig struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

// DefaultSearchConfig returns defaults for the public endpoint.
func DefaultSearchConfig(apiKey string) SearchConfig {
	return SearchConfig{
		APIKey:     apiKey,
		BaseURL:    "https://api.tavily.com/search",
		MaxResults: 3,
		Timeout:    30 * time.Second,
	}
}

// NewSearchClient builds a client; zero-value config fields get defaults.
func NewSearchClient(cfg SearchConfig) *SearchClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com/search"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SearchClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		maxResults: cfg.MaxResults,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one query. Results are normalized and the source domain is
// derived from each hit's URL.
func (c *SearchClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search API key not configured")
	}

	body, err := json.Marshal(searchRequest{
		APIKey:      c.apiKey,
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, SearchResult{
			Title:        r.Title,
			URL:          r.URL,
			Content:      r.Content,
			Score:        r.Score,
			SourceDomain: domainOf(r.URL),
		})
	}

	logging.Get(logging.CategoryContext).Debugf("search %q: %d results", query, len(results))
	return results, nil
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
