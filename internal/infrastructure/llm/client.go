package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SandwichAgent/internal/config"
	"SandwichAgent/internal/domain"
	"SandwichAgent/internal/ports"
)

const maxAttempts = 3

// Client implements ports.LanguageModel backed by OpenAI-compatible chat APIs.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.LanguageModel = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GenerateCuriosity asks for a one-sentence exploration prompt, steering away
// from topics explored recently.
func (c *Client) GenerateCuriosity(ctx context.Context, recentTopics []string) (string, error) {
	prompt := "Produce a single short curiosity prompt: one sentence naming a concept worth reading about."
	if len(recentTopics) > 0 {
		prompt += " Avoid these recently explored topics: " + strings.Join(recentTopics, ", ") + "."
	}

	reply, err := c.complete(ctx, "You generate curiosity prompts for a research forager. Reply with the prompt only.", prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(reply), `"`)), nil
}

// ExtractCandidates runs structured extraction over raw content and decodes
// the model's JSON reply into candidate structures.
func (c *Client) ExtractCandidates(ctx context.Context, content string) ([]domain.CandidateStructure, error) {
	system := `You identify sandwich structures in text: a pair of bounding concepts (bread) around a bounded one (filling).
Reply with a JSON array only, each element:
{"bread_top":"...","bread_bottom":"...","filling":"...","structure_type":"...","confidence":0.0,"rationale":"..."}`

	reply, err := c.complete(ctx, system, content)
	if err != nil {
		return nil, err
	}

	var decoded []struct {
		BreadTop      string  `json:"bread_top"`
		BreadBottom   string  `json:"bread_bottom"`
		Filling       string  `json:"filling"`
		StructureType string  `json:"structure_type"`
		Confidence    float64 `json:"confidence"`
		Rationale     string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply)), &decoded); err != nil {
		return nil, domain.NewParseError("candidate_decode", "candidate extraction reply is not valid JSON", err)
	}

	candidates := make([]domain.CandidateStructure, 0, len(decoded))
	for _, d := range decoded {
		candidates = append(candidates, domain.CandidateStructure{
			BreadTop:      d.BreadTop,
			BreadBottom:   d.BreadBottom,
			Filling:       d.Filling,
			StructureType: d.StructureType,
			Confidence:    d.Confidence,
			Rationale:     d.Rationale,
		})
	}
	return candidates, nil
}

// AssembleSandwich turns the selected candidate into a named artifact.
func (c *Client) AssembleSandwich(ctx context.Context, candidate domain.CandidateStructure) (domain.AssembledSandwich, error) {
	system := `You assemble a sandwich artifact from a candidate structure.
Reply with a JSON object only: {"name":"...","description":"..."}`

	payload, err := json.Marshal(map[string]string{
		"bread_top":      candidate.BreadTop,
		"bread_bottom":   candidate.BreadBottom,
		"filling":        candidate.Filling,
		"structure_type": candidate.StructureType,
	})
	if err != nil {
		return domain.AssembledSandwich{}, fmt.Errorf("marshal candidate: %w", err)
	}

	reply, err := c.complete(ctx, system, string(payload))
	if err != nil {
		return domain.AssembledSandwich{}, err
	}

	var decoded struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply)), &decoded); err != nil {
		return domain.AssembledSandwich{}, domain.NewParseError("assembly_decode", "assembly reply is not valid JSON", err)
	}

	return domain.AssembledSandwich{
		Name:          decoded.Name,
		BreadTop:      candidate.BreadTop,
		BreadBottom:   candidate.BreadBottom,
		Filling:       candidate.Filling,
		StructureType: candidate.StructureType,
		Description:   decoded.Description,
	}, nil
}

// ValidateSandwich judges an assembled sandwich and returns the verdict.
func (c *Client) ValidateSandwich(ctx context.Context, sandwich domain.AssembledSandwich) (domain.ValidationReport, error) {
	system := `You validate assembled sandwich artifacts.
Reply with a JSON object only: {"verdict":"accepted|review|rejected","overall_score":0.0,"notes":"..."}`

	payload, err := json.Marshal(map[string]string{
		"name":           sandwich.Name,
		"bread_top":      sandwich.BreadTop,
		"bread_bottom":   sandwich.BreadBottom,
		"filling":        sandwich.Filling,
		"structure_type": sandwich.StructureType,
		"description":    sandwich.Description,
	})
	if err != nil {
		return domain.ValidationReport{}, fmt.Errorf("marshal sandwich: %w", err)
	}

	reply, err := c.complete(ctx, system, string(payload))
	if err != nil {
		return domain.ValidationReport{}, err
	}

	var decoded struct {
		Verdict      string  `json:"verdict"`
		OverallScore float64 `json:"overall_score"`
		Notes        string  `json:"notes"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply)), &decoded); err != nil {
		return domain.ValidationReport{}, domain.NewParseError("validation_decode", "validation reply is not valid JSON", err)
	}

	verdict := domain.ValidationVerdict(decoded.Verdict)
	switch verdict {
	case domain.VerdictAccepted, domain.VerdictReview, domain.VerdictRejected:
	default:
		return domain.ValidationReport{}, domain.NewParseError("validation_verdict", fmt.Sprintf("unknown verdict %q", decoded.Verdict), nil)
	}

	return domain.ValidationReport{
		Verdict:      verdict,
		OverallScore: decoded.OverallScore,
		Notes:        decoded.Notes,
	}, nil
}

// complete posts one system+user exchange and returns the assistant reply.
// Transient upstream failures are retried with backoff and surfaced as
// retryable only once the budget is spent; auth rejections are fatal.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", domain.NewFatalError("llm_misconfigured", "language model client misconfigured", nil)
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, retry, err := c.post(ctx, body)
		if err == nil {
			return reply, nil
		}
		if !retry {
			return "", err
		}
		lastErr = err
		if attempt < maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return "", domain.NewRetryableError("llm_cancelled", "completion cancelled while retrying", ctx.Err())
			}
		}
	}

	return "", domain.NewRetryableError("llm_unavailable", "completion failed after retries", lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (reply string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", false, domain.NewFatalError("llm_auth_rejected", "language model rejected credentials", fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", true, fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	case resp.StatusCode >= http.StatusBadRequest:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", false, domain.NewParseError("llm_bad_request", strings.TrimSpace(string(payload)), fmt.Errorf("status %s", resp.Status))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", false, domain.NewParseError("llm_response_decode", "cannot decode completion response", err)
	}
	if len(decoded.Choices) == 0 {
		return "", false, domain.NewParseError("llm_empty_choices", "completion returned no choices", nil)
	}

	return decoded.Choices[0].Message.Content, false, nil
}

// extractJSON trims code fences and surrounding prose around a JSON payload.
func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if idx := strings.Index(reply, "```"); idx >= 0 {
		reply = reply[idx+3:]
		reply = strings.TrimPrefix(reply, "json")
		if end := strings.Index(reply, "```"); end >= 0 {
			reply = reply[:end]
		}
	}

	start := strings.IndexAny(reply, "[{")
	if start < 0 {
		return reply
	}
	end := strings.LastIndexAny(reply, "]}")
	if end < start {
		return reply
	}
	return reply[start : end+1]
}
