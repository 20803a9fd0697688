package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"SandwichAgent/internal/agent"
	"SandwichAgent/internal/config"
	"SandwichAgent/internal/infrastructure/llm"
	"SandwichAgent/internal/infrastructure/ml"
	"SandwichAgent/internal/infrastructure/scheduler"
	"SandwichAgent/internal/infrastructure/source"
	"SandwichAgent/internal/infrastructure/storage"
	"SandwichAgent/internal/infrastructure/telegram"
	"SandwichAgent/internal/logging"
	"SandwichAgent/internal/ports"
	"SandwichAgent/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	llmClient  ports.LanguageModel
	embeddings ports.EmbeddingService
	corpus     ports.CorpusStore
	sink       agent.CheckpointSink
	notifier   ports.Notifier
	db         *sql.DB
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{
		cfg:        cfg,
		logger:     baseLogger,
		llmClient:  llm.NewClient(cfg.LLM),
		embeddings: ml.NewClient(cfg.Embedding),
	}

	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		a.corpus = storage.NewPostgresCorpus(db)
		a.sink = storage.NewPostgresCheckpoints(db)
	} else {
		a.sink = storage.NewMemoryCheckpoints(time.Duration(cfg.Session.CheckpointTTL))
	}

	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		a.notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	return a, nil
}

// NewSession assembles a fresh session: its own state machine and forager
// sharing the application's collaborators.
func (a *Application) NewSession() *usecase.Session {
	machine := agent.NewMachine(
		a.logger.With("component", "state_machine"),
		agent.WithCheckpointSink(a.sink),
	)

	forager := agent.NewForager(
		a.buildSources(),
		a.llmClient,
		agent.ForagerConfig{
			SuccessesToPromote: a.cfg.Foraging.SuccessesToPromote,
			FailuresToDemote:   a.cfg.Foraging.FailuresToDemote,
		},
		a.logger.With("component", "forager"),
	)

	return usecase.NewSession(usecase.SessionDeps{
		Machine:    machine,
		Forager:    forager,
		LLM:        a.llmClient,
		Embeddings: a.embeddings,
		Corpus:     a.corpus,
		Notifier:   a.notifier,
		Selection: agent.SelectionConfig{
			MinConfidence:   a.cfg.Selection.MinConfidence,
			NoveltyWeight:   a.cfg.Selection.NoveltyWeight,
			DiversityWeight: a.cfg.Selection.DiversityWeight,
		},
		MinContentLength: a.cfg.Foraging.MinContentLength,
		Logger:           a.logger.With("component", "session"),
	})
}

// Run executes a single session with the configured caps.
func (a *Application) Run(ctx context.Context, opts usecase.Options) (usecase.Summary, error) {
	return a.NewSession().Run(ctx, opts)
}

// RunRecurring executes sessions on the configured interval until ctx ends.
func (a *Application) RunRecurring(ctx context.Context, opts usecase.Options) error {
	driver := scheduler.NewIntervalScheduler(time.Duration(a.cfg.Session.Interval))
	runner := usecase.NewScheduler(driver, a.NewSession, opts, a.logger.With("component", "scheduler"))
	if err := runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return runner.Stop(context.Background())
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Application) buildSources() map[int][]ports.ContentSource {
	sources := map[int][]ports.ContentSource{}
	for _, sc := range a.cfg.Foraging.Sources {
		tier := sc.Tier
		if tier < 1 {
			tier = 1
		}
		switch sc.Name {
		case "wikipedia":
			sources[tier] = append(sources[tier], source.NewWikipedia(nil, sc.MaxPerMinute))
		case "web_search":
			sources[tier] = append(sources[tier], source.NewWebSearch(nil, sc.MaxPerMinute))
		default:
			a.logger.Warn("unknown source in config", "name", sc.Name)
		}
	}
	return sources
}
