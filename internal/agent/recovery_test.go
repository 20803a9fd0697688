package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"SandwichAgent/internal/domain"
)

func TestClassifyFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Event
	}{
		{
			name: "fatal ends the session",
			err:  domain.NewFatalError("store_unreachable", "database is gone", errors.New("dial tcp")),
			want: EventFatal,
		},
		{
			name: "content failure recovers",
			err:  domain.NewContentError("content_too_short", "article body below threshold"),
			want: EventRecovered,
		},
		{
			name: "parse failure recovers",
			err:  domain.NewParseError("candidate_decode", "model returned prose", errors.New("invalid character 'T'")),
			want: EventRecovered,
		},
		{
			name: "retryable failure recovers after retries",
			err:  domain.NewRetryableError("llm_unavailable", "gave up after 3 attempts", errors.New("status 503")),
			want: EventRecovered,
		},
		{
			name: "wrapped fatal is still fatal",
			err:  fmt.Errorf("run iteration: %w", domain.NewFatalError("llm_auth_rejected", "api key refused", nil)),
			want: EventFatal,
		},
		{
			name: "unclassified error fails open",
			err:  errors.New("something unexpected"),
			want: EventRecovered,
		},
		{
			name: "unknown kind fails open",
			err:  &domain.PipelineError{Kind: "mystery", Reason: "x", Message: "y"},
			want: EventRecovered,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyFailure(tt.err, nil))
		})
	}
}
