package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"SandwichAgent/internal/config"
	"SandwichAgent/internal/domain"
)

func newTestClient(endpoint string) *Client {
	return NewClient(config.LLMConfig{
		Endpoint: endpoint,
		Model:    "test-model",
		APIKey:   "test-key",
	})
}

func completionReply(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(payload)
}

func TestExtractCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		reply := "Here are the structures:\n```json\n" +
			`[{"bread_top":"Hypothesis","bread_bottom":"Conclusion","filling":"Proof","structure_type":"theorem","confidence":0.85,"rationale":"classic bound"}]` +
			"\n```"
		fmt.Fprint(rw, completionReply(reply))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.ExtractCandidates(context.Background(), "some article text")
	if err != nil {
		t.Fatalf("ExtractCandidates() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].BreadTop != "Hypothesis" || got[0].Confidence != 0.85 {
		t.Errorf("candidate = %+v", got[0])
	}
}

func TestExtractCandidatesBadReplyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, completionReply("I could not find any structures, sorry."))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ExtractCandidates(context.Background(), "text")

	var perr *domain.PipelineError
	if !errors.As(err, &perr) || perr.Kind != domain.ErrorKindParse {
		t.Fatalf("error = %v, want parse PipelineError", err)
	}
}

func TestAuthRejectionIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GenerateCuriosity(context.Background(), nil)

	var perr *domain.PipelineError
	if !errors.As(err, &perr) || perr.Kind != domain.ErrorKindFatal {
		t.Fatalf("error = %v, want fatal PipelineError", err)
	}
	if perr.Reason != "llm_auth_rejected" {
		t.Errorf("Reason = %q", perr.Reason)
	}
}

func TestMisconfiguredClientIsFatal(t *testing.T) {
	c := NewClient(config.LLMConfig{})
	_, err := c.GenerateCuriosity(context.Background(), nil)

	var perr *domain.PipelineError
	if !errors.As(err, &perr) || perr.Kind != domain.ErrorKindFatal {
		t.Fatalf("error = %v, want fatal PipelineError", err)
	}
}

func TestTransientErrorRetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(rw, completionReply("prime gaps"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.GenerateCuriosity(context.Background(), []string{"sorting networks"})
	if err != nil {
		t.Fatalf("GenerateCuriosity() error = %v", err)
	}
	if got != "prime gaps" {
		t.Errorf("curiosity = %q", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestValidateSandwichUnknownVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, completionReply(`{"verdict":"maybe","overall_score":0.5,"notes":""}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ValidateSandwich(context.Background(), domain.AssembledSandwich{Name: "x"})

	var perr *domain.PipelineError
	if !errors.As(err, &perr) || perr.Kind != domain.ErrorKindParse {
		t.Fatalf("error = %v, want parse PipelineError", err)
	}
	if perr.Reason != "validation_verdict" {
		t.Errorf("Reason = %q", perr.Reason)
	}
}

func TestValidateSandwich(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, completionReply(`{"verdict":"accepted","overall_score":0.9,"notes":"solid structure"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.ValidateSandwich(context.Background(), domain.AssembledSandwich{Name: "x"})
	if err != nil {
		t.Fatalf("ValidateSandwich() error = %v", err)
	}
	if got.Verdict != domain.VerdictAccepted || got.OverallScore != 0.9 {
		t.Errorf("report = %+v", got)
	}
}

func TestAssembleSandwichKeepsCandidateStructure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, completionReply(`{"name":"The Bounded Bite","description":"a function held between two bounds"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	cand := domain.CandidateStructure{
		BreadTop:      "Upper bound",
		BreadBottom:   "Lower bound",
		Filling:       "Target function",
		StructureType: "theorem",
		Confidence:    0.8,
	}
	got, err := c.AssembleSandwich(context.Background(), cand)
	if err != nil {
		t.Fatalf("AssembleSandwich() error = %v", err)
	}
	if got.Name != "The Bounded Bite" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.BreadTop != cand.BreadTop || got.StructureType != cand.StructureType {
		t.Errorf("assembled = %+v, want candidate structure carried over", got)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n[1,2]\n```", "[1,2]"},
		{"prose around", `Sure! Here you go: {"a":1} Hope that helps.`, `{"a":1}`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
