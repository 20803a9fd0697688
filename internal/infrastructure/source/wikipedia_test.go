package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const summaryJSON = `{
	"title": "Squeeze theorem",
	"extract": "In calculus, the squeeze theorem pins the limit of a function between two others.",
	"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Squeeze_theorem"}}
}`

func newTestWikipedia(srvURL string) *Wikipedia {
	w := NewWikipedia(http.DefaultClient, 600)
	w.baseURL = srvURL
	return w
}

func TestWikipediaFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		rw.Header().Set("Content-Type", "application/json")
		rw.Write([]byte(summaryJSON))
	}))
	defer srv.Close()

	w := newTestWikipedia(srv.URL)
	got, err := w.Fetch(context.Background(), "squeeze theorem")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !strings.HasPrefix(gotPath, "/api/rest_v1/page/summary/") {
		t.Fatalf("request path = %q, want summary endpoint", gotPath)
	}
	if got.Title != "Squeeze theorem" {
		t.Errorf("Title = %q", got.Title)
	}
	if !strings.Contains(got.Content, "squeeze theorem pins") {
		t.Errorf("Content = %q, missing extract", got.Content)
	}
	if got.URL != "https://en.wikipedia.org/wiki/Squeeze_theorem" {
		t.Errorf("URL = %q", got.URL)
	}
	if got.ContentType != "text" {
		t.Errorf("ContentType = %q, want text", got.ContentType)
	}
	if got.Metadata["query"] != "squeeze theorem" {
		t.Errorf("Metadata[query] = %q", got.Metadata["query"])
	}
}

func TestWikipediaFetchRandom(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		rw.Write([]byte(summaryJSON))
	}))
	defer srv.Close()

	w := newTestWikipedia(srv.URL)
	got, err := w.FetchRandom(context.Background())
	if err != nil {
		t.Fatalf("FetchRandom() error = %v", err)
	}

	if gotPath != "/api/rest_v1/page/random/summary" {
		t.Fatalf("request path = %q, want random endpoint", gotPath)
	}
	if got.Content == "" {
		t.Error("Content is empty")
	}
}

func TestWikipediaEmptyQueryFallsBackToRandom(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		rw.Write([]byte(summaryJSON))
	}))
	defer srv.Close()

	w := newTestWikipedia(srv.URL)
	if _, err := w.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotPath != "/api/rest_v1/page/random/summary" {
		t.Fatalf("request path = %q, want random endpoint", gotPath)
	}
}

func TestWikipediaFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := newTestWikipedia(srv.URL)
	if _, err := w.Fetch(context.Background(), "anything"); err == nil {
		t.Fatal("Fetch() expected error on 503")
	}
}

func TestWikipediaFetchBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte("not json"))
	}))
	defer srv.Close()

	w := newTestWikipedia(srv.URL)
	if _, err := w.Fetch(context.Background(), "anything"); err == nil {
		t.Fatal("Fetch() expected decode error")
	}
}
