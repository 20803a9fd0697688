package agent

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/oklog/ulid/v2"

	"SandwichAgent/internal/domain"
	"SandwichAgent/internal/ports"
)

// ErrNoSources reports a forager with no sources configured at any tier.
var ErrNoSources = errors.New("no content sources configured for any tier")

// ForagerConfig tunes the promotion/demotion hysteresis.
type ForagerConfig struct {
	SuccessesToPromote int
	FailuresToDemote   int
}

// DefaultForagerConfig mirrors the production thresholds.
func DefaultForagerConfig() ForagerConfig {
	return ForagerConfig{SuccessesToPromote: 5, FailuresToDemote: 3}
}

// Forager explores tiered content sources. Tier 1 is the most reliable;
// sustained success pushes the forager toward higher, more experimental tiers
// and sustained failure pulls it back down. A streak is required in either
// direction so isolated blips never move the tier.
type Forager struct {
	mu                   sync.Mutex
	sources              map[int][]ports.ContentSource
	llm                  ports.LanguageModel
	cfg                  ForagerConfig
	currentTier          int
	consecutiveSuccesses int
	consecutiveFailures  int
	pick                 func(n int) int
	logger               *slog.Logger
}

// ForagerOption customizes a Forager at construction.
type ForagerOption func(*Forager)

// WithSourcePicker replaces the uniform random source choice, so tests can
// supply a deterministic selector.
func WithSourcePicker(pick func(n int) int) ForagerOption {
	return func(f *Forager) { f.pick = pick }
}

// NewForager wires tiered sources and the prompt-generating language model.
func NewForager(sources map[int][]ports.ContentSource, llm ports.LanguageModel, cfg ForagerConfig, logger *slog.Logger, opts ...ForagerOption) *Forager {
	if cfg.SuccessesToPromote <= 0 {
		cfg.SuccessesToPromote = DefaultForagerConfig().SuccessesToPromote
	}
	if cfg.FailuresToDemote <= 0 {
		cfg.FailuresToDemote = DefaultForagerConfig().FailuresToDemote
	}
	f := &Forager{
		sources:     sources,
		llm:         llm,
		cfg:         cfg,
		currentTier: 1,
		pick:        rand.Intn,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CurrentTier returns the tier the next forage will draw from.
func (f *Forager) CurrentTier() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentTier
}

// Streaks returns the consecutive success and failure counters.
func (f *Forager) Streaks() (successes, failures int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consecutiveSuccesses, f.consecutiveFailures
}

// GenerateCuriosity asks the language model for a short exploration prompt,
// steering away from recently used topics.
func (f *Forager) GenerateCuriosity(ctx context.Context, recentTopics []string) (string, error) {
	return f.llm.GenerateCuriosity(ctx, recentTopics)
}

// Forage fetches content from one randomly chosen source in the effective
// tier. A curiosity prompt directs the fetch; without one the source picks
// random content. Source errors and empty content are soft failures: the call
// returns (nil, nil) so the loop can simply try again. Only a forager with no
// sources at any tier returns an error.
func (f *Forager) Forage(ctx context.Context, curiosity string) (*domain.ForagingResult, error) {
	source, err := f.pickSource()
	if err != nil {
		return nil, err
	}

	var result domain.SourceResult
	if curiosity != "" {
		result, err = source.Fetch(ctx, curiosity)
	} else {
		result, err = source.FetchRandom(ctx)
	}
	if err != nil {
		f.log().Warn("source fetch failed", "source", source.Name(), "error", err)
		return nil, nil
	}
	if result.Content == "" {
		f.log().Info("source returned empty content", "source", source.Name(), "query", curiosity)
		return nil, nil
	}

	return &domain.ForagingResult{
		SourceResult:    result,
		SourceName:      source.Name(),
		CuriosityPrompt: curiosity,
		LogID:           ulid.Make(),
	}, nil
}

// RecordSuccess zeroes the failure streak and counts a success. Reaching the
// promotion threshold advances the tier by one when a higher tier exists, and
// restarts the streak.
func (f *Forager) RecordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.consecutiveFailures = 0
	f.consecutiveSuccesses++

	if f.consecutiveSuccesses >= f.cfg.SuccessesToPromote && f.currentTier < f.maxTier() {
		old := f.currentTier
		f.currentTier++
		f.consecutiveSuccesses = 0
		f.log().Info("tier promotion", "from", old, "to", f.currentTier, "after_successes", f.cfg.SuccessesToPromote)
	}
}

// RecordFailure zeroes the success streak and counts a failure. Reaching the
// demotion threshold drops the tier by one when above tier 1, and restarts
// the streak.
func (f *Forager) RecordFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.consecutiveSuccesses = 0
	f.consecutiveFailures++

	if f.consecutiveFailures >= f.cfg.FailuresToDemote && f.currentTier > 1 {
		old := f.currentTier
		f.currentTier--
		f.consecutiveFailures = 0
		f.log().Info("tier demotion", "from", old, "to", f.currentTier, "after_failures", f.cfg.FailuresToDemote)
	}
}

// pickSource resolves the effective source list by walking down from the
// current tier to 1, then draws one source uniformly.
func (f *Forager) pickSource() (ports.ContentSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for tier := f.currentTier; tier >= 1; tier-- {
		candidates := f.sources[tier]
		if len(candidates) == 0 {
			continue
		}
		return candidates[f.pick(len(candidates))], nil
	}

	f.log().Warn("no sources available", "tier", f.currentTier)
	return nil, ErrNoSources
}

func (f *Forager) maxTier() int {
	max := 1
	for tier := range f.sources {
		if tier > max {
			max = tier
		}
	}
	return max
}

func (f *Forager) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}
