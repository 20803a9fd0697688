package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"SandwichAgent/internal/config"
	"SandwichAgent/internal/domain"
	"SandwichAgent/internal/ports"
)

// Client talks to an external embedding service.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

var _ ports.EmbeddingService = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.EmbeddingConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Embed sends text for vectorization.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.endpoint == "" {
		return nil, domain.NewFatalError("embedding_misconfigured", "embedding client misconfigured", nil)
	}

	payload := map[string]any{
		"model": c.model,
		"input": text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewRetryableError("embedding_unreachable", "embedding request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewFatalError("embedding_auth_rejected", "embedding service rejected credentials", fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewRetryableError("embedding_status", fmt.Sprintf("unexpected status %s", resp.Status), nil)
	}

	var decoded struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, domain.NewParseError("embedding_decode", "cannot decode embedding response", err)
	}
	if len(decoded.Data) == 0 {
		return nil, domain.NewParseError("embedding_empty", "embedding response carried no vectors", nil)
	}

	return decoded.Data[0].Embedding, nil
}
