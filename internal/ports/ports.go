package ports

import (
	"context"

	"SandwichAgent/internal/domain"
)

// ContentSource pulls raw material from an upstream provider. Implementations
// may fail freely; the forager absorbs every fetch error as a soft failure.
type ContentSource interface {
	Name() string
	Fetch(ctx context.Context, query string) (domain.SourceResult, error)
	FetchRandom(ctx context.Context) (domain.SourceResult, error)
}

// LanguageModel covers the prompt-generation and structured steps of the
// pipeline that run on a language model.
type LanguageModel interface {
	GenerateCuriosity(ctx context.Context, recentTopics []string) (string, error)
	ExtractCandidates(ctx context.Context, content string) ([]domain.CandidateStructure, error)
	AssembleSandwich(ctx context.Context, candidate domain.CandidateStructure) (domain.AssembledSandwich, error)
	ValidateSandwich(ctx context.Context, sandwich domain.AssembledSandwich) (domain.ValidationReport, error)
}

// EmbeddingService turns text into a dense vector.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CorpusStore is the persistent sandwich corpus. Reads feed the selector;
// SaveSandwich is the terminal step of a successful pipeline run.
type CorpusStore interface {
	Embeddings(ctx context.Context) ([][]float32, error)
	TypeFrequencies(ctx context.Context) (map[string]float64, error)
	SaveSandwich(ctx context.Context, sandwich domain.AssembledSandwich, report domain.ValidationReport, embedding []float32) error
}

// Notifier streams session summaries to an external channel.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}

// Scheduler controls when recurring sessions execute.
type Scheduler interface {
	Start(ctx context.Context, job func()) error
	Stop(ctx context.Context) error
}
