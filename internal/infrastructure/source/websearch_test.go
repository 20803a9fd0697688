package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const resultPageHTML = `<html><head>
<script>var tracking = true;</script>
<style>body { color: red }</style>
</head><body>
<nav>Home | About</nav>
<header>Site header</header>
<article>
The pigeonhole principle states that if n items are put into m containers,
with n greater than m, then at least one container must hold more than one item.
</article>
<footer>Copyright</footer>
</body></html>`

func newSearchServer(t *testing.T, lastQuery *string) (*httptest.Server, *WebSearch) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/search", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("search method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if lastQuery != nil {
			*lastQuery = r.PostFormValue("q")
		}
		if r.PostFormValue("q") == "" {
			t.Error("search request without q parameter")
		}
		fmt.Fprintf(rw, `<html><body>
			<a class="result__a" href="%s/page">Pigeonhole principle</a>
			<a class="result__a" href="%s/other">Second result</a>
		</body></html>`, srv.URL, srv.URL)
	})
	mux.HandleFunc("/page", func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(resultPageHTML))
	})

	s := NewWebSearch(http.DefaultClient, 600)
	s.searchURL = srv.URL + "/search"
	return srv, s
}

func TestWebSearchFetch(t *testing.T) {
	srv, s := newSearchServer(t, nil)

	got, err := s.Fetch(context.Background(), "pigeonhole principle")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if got.Title != "Pigeonhole principle" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.URL != srv.URL+"/page" {
		t.Errorf("URL = %q, want top result", got.URL)
	}
	if !strings.Contains(got.Content, "at least one container") {
		t.Errorf("Content missing article text: %q", got.Content)
	}
	for _, stripped := range []string{"var tracking", "color: red", "Site header", "Copyright"} {
		if strings.Contains(got.Content, stripped) {
			t.Errorf("Content still contains %q", stripped)
		}
	}
	if got.ContentType != "html" {
		t.Errorf("ContentType = %q, want html", got.ContentType)
	}
}

func TestWebSearchFetchRandomUsesSeedWord(t *testing.T) {
	var searched string
	_, s := newSearchServer(t, &searched)
	s.pick = func(n int) int { return 0 }

	got, err := s.FetchRandom(context.Background())
	if err != nil {
		t.Fatalf("FetchRandom() error = %v", err)
	}
	if searched != seedWords[0] {
		t.Fatalf("searched %q, want seed word %q", searched, seedWords[0])
	}
	if got.Content == "" {
		t.Error("Content is empty")
	}
}

func TestWebSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte("<html><body>no results</body></html>"))
	}))
	defer srv.Close()

	s := NewWebSearch(http.DefaultClient, 600)
	s.searchURL = srv.URL

	if _, err := s.Fetch(context.Background(), "gibberish"); err == nil {
		t.Fatal("Fetch() expected error when the page has no results")
	}
}

func TestWebSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewWebSearch(http.DefaultClient, 600)
	s.searchURL = srv.URL

	if _, err := s.Fetch(context.Background(), "anything"); err == nil {
		t.Fatal("Fetch() expected error on 429")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "first line\n\n   \n  second line  \n\nthird"
	want := "first line\nsecond line\nthird"
	if got := collapseWhitespace(in); got != want {
		t.Fatalf("collapseWhitespace() = %q, want %q", got, want)
	}
}
