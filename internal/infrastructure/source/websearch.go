package source

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"SandwichAgent/internal/domain"
	"SandwichAgent/internal/ports"
)

const (
	duckduckgoHTMLURL = "https://html.duckduckgo.com/html/"
	maxPageContent    = 10000
)

// seedWords drive serendipitous discovery when no curiosity prompt exists.
var seedWords = []string{
	"theorem", "paradox", "optimization", "constraint", "equilibrium",
	"convergence", "entropy", "symmetry", "recursion", "emergence",
	"bifurcation", "resonance", "topology", "duality", "invariant",
}

// WebSearch is the tier-2 source: a DuckDuckGo HTML search followed by a
// fetch of the top result's page text.
type WebSearch struct {
	client    *http.Client
	limiter   *RateLimiter
	searchURL string
	pick      func(n int) int
}

var _ ports.ContentSource = (*WebSearch)(nil)

// NewWebSearch wires an HTTP client and per-source rate limit.
func NewWebSearch(client *http.Client, maxPerMinute int) *WebSearch {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebSearch{
		client:    client,
		limiter:   NewRateLimiter(maxPerMinute),
		searchURL: duckduckgoHTMLURL,
		pick:      rand.Intn,
	}
}

// Name identifies the source inside the forager tiers.
func (s *WebSearch) Name() string {
	return "web_search"
}

// Fetch searches the web and returns the top result's page content.
func (s *WebSearch) Fetch(ctx context.Context, query string) (domain.SourceResult, error) {
	if query == "" {
		return s.FetchRandom(ctx)
	}

	doc, err := s.fetchDocument(ctx, http.MethodPost, s.searchURL, url.Values{"q": {query}})
	if err != nil {
		return domain.SourceResult{}, fmt.Errorf("search %q: %w", query, err)
	}

	first := doc.Find("a.result__a").First()
	if first.Length() == 0 {
		return domain.SourceResult{}, fmt.Errorf("no results for %q", query)
	}

	href, _ := first.Attr("href")
	title := strings.TrimSpace(first.Text())
	if href == "" {
		return domain.SourceResult{}, fmt.Errorf("result without link for %q", query)
	}

	return s.fetchPage(ctx, href, title, query)
}

// FetchRandom searches for one of the seed words.
func (s *WebSearch) FetchRandom(ctx context.Context) (domain.SourceResult, error) {
	return s.Fetch(ctx, seedWords[s.pick(len(seedWords))])
}

func (s *WebSearch) fetchPage(ctx context.Context, pageURL, title, query string) (domain.SourceResult, error) {
	doc, err := s.fetchDocument(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return domain.SourceResult{}, fmt.Errorf("fetch page %s: %w", pageURL, err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()
	text := strings.TrimSpace(doc.Find("body").Text())
	text = collapseWhitespace(text)
	if len(text) > maxPageContent {
		text = text[:maxPageContent]
	}

	return domain.SourceResult{
		Content:     text,
		URL:         pageURL,
		Title:       title,
		ContentType: "html",
		Metadata:    map[string]string{"query": query, "source": "web_search"},
	}, nil
}

func (s *WebSearch) fetchDocument(ctx context.Context, method, endpoint string, form url.Values) (*goquery.Document, error) {
	if _, err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "SandwichAgent/1.0 (research project)")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
