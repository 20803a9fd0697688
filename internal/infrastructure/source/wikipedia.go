package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"SandwichAgent/internal/domain"
	"SandwichAgent/internal/ports"
)

const (
	wikipediaSummaryURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"
	wikipediaRandomURL  = "https://en.wikipedia.org/api/rest_v1/page/random/summary"
)

// Wikipedia is the tier-1 content source backed by the Wikipedia REST API.
type Wikipedia struct {
	client  *http.Client
	limiter *RateLimiter
	baseURL string
}

var _ ports.ContentSource = (*Wikipedia)(nil)

// NewWikipedia wires an HTTP client and per-source rate limit.
func NewWikipedia(client *http.Client, maxPerMinute int) *Wikipedia {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Wikipedia{
		client:  client,
		limiter: NewRateLimiter(maxPerMinute),
	}
}

// Name identifies the source inside the forager tiers.
func (w *Wikipedia) Name() string {
	return "wikipedia"
}

// Fetch resolves the query to an article summary.
func (w *Wikipedia) Fetch(ctx context.Context, query string) (domain.SourceResult, error) {
	if query == "" {
		return w.FetchRandom(ctx)
	}
	return w.fetchSummary(ctx, w.summaryURL(query), query)
}

// FetchRandom pulls a random article summary.
func (w *Wikipedia) FetchRandom(ctx context.Context) (domain.SourceResult, error) {
	return w.fetchSummary(ctx, w.randomURL(), "")
}

func (w *Wikipedia) fetchSummary(ctx context.Context, endpoint, query string) (domain.SourceResult, error) {
	if _, err := w.limiter.Wait(ctx); err != nil {
		return domain.SourceResult{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.SourceResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "SandwichAgent/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return domain.SourceResult{}, fmt.Errorf("request summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.SourceResult{}, fmt.Errorf("wikipedia returned %s", resp.Status)
	}

	var summary struct {
		Title   string `json:"title"`
		Extract string `json:"extract"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return domain.SourceResult{}, fmt.Errorf("decode summary: %w", err)
	}

	return domain.SourceResult{
		Content:     summary.Extract,
		URL:         summary.ContentURLs.Desktop.Page,
		Title:       summary.Title,
		ContentType: "text",
		Metadata:    map[string]string{"query": query, "source": "wikipedia"},
	}, nil
}

func (w *Wikipedia) summaryURL(query string) string {
	if w.baseURL != "" {
		return w.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(query)
	}
	return wikipediaSummaryURL + url.PathEscape(query)
}

func (w *Wikipedia) randomURL() string {
	if w.baseURL != "" {
		return w.baseURL + "/api/rest_v1/page/random/summary"
	}
	return wikipediaRandomURL
}
