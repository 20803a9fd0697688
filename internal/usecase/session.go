package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"SandwichAgent/internal/agent"
	"SandwichAgent/internal/domain"
	"SandwichAgent/internal/ports"
)

const recentTopicWindow = 5

// SessionDeps wires the orchestration core and its external collaborators
// into a runnable session.
type SessionDeps struct {
	Machine          *agent.Machine
	Forager          *agent.Forager
	LLM              ports.LanguageModel
	Embeddings       ports.EmbeddingService
	Corpus           ports.CorpusStore
	Notifier         ports.Notifier
	Selection        agent.SelectionConfig
	MinContentLength int
	Logger           *slog.Logger
}

// Options caps a session run.
type Options struct {
	MaxSandwiches int
	MaxDuration   time.Duration
}

// Summary describes a finished session.
type Summary struct {
	SessionID        uuid.UUID
	SandwichesMade   int
	ForagingAttempts int
	StartedAt        time.Time
	EndedAt          time.Time
}

// Session drives one pipeline at a time through the state machine: forage,
// preprocess, identify, select, assemble, validate, store. Step failures are
// classified and routed back into the machine; only fatal failures or the
// configured caps end the session.
type Session struct {
	machine    *agent.Machine
	forager    *agent.Forager
	llm        ports.LanguageModel
	embeddings ports.EmbeddingService
	corpus     ports.CorpusStore
	notifier   ports.Notifier
	selection  agent.SelectionConfig
	minContent int
	logger     *slog.Logger

	recentTopics []string
}

// NewSession constructs the orchestration loop.
func NewSession(deps SessionDeps) *Session {
	minContent := deps.MinContentLength
	if minContent <= 0 {
		minContent = 200
	}
	return &Session{
		machine:    deps.Machine,
		forager:    deps.Forager,
		llm:        deps.LLM,
		embeddings: deps.Embeddings,
		corpus:     deps.Corpus,
		notifier:   deps.Notifier,
		selection:  deps.Selection,
		minContent: minContent,
		logger:     deps.Logger,
	}
}

// Run executes pipeline iterations until a cap is reached, the context is
// cancelled between iterations, or a fatal failure ends the session.
// Configuration failures (no sources at any tier) and illegal transitions
// propagate to the caller.
func (s *Session) Run(ctx context.Context, opts Options) (Summary, error) {
	summary := Summary{
		SessionID: s.machine.SessionID(),
		StartedAt: time.Now().UTC(),
	}
	deadline := time.Time{}
	if opts.MaxDuration > 0 {
		deadline = summary.StartedAt.Add(opts.MaxDuration)
	}

	for {
		if ctx.Err() != nil {
			break
		}
		if opts.MaxSandwiches > 0 && summary.SandwichesMade >= opts.MaxSandwiches {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		ended, err := s.runIteration(ctx, &summary)
		if err != nil {
			summary.EndedAt = time.Now().UTC()
			return summary, err
		}
		if ended {
			summary.EndedAt = time.Now().UTC()
			s.publishSummary(ctx, summary)
			return summary, nil
		}
	}

	if _, err := s.machine.Transition(ctx, agent.EventEndSession, nil); err != nil {
		summary.EndedAt = time.Now().UTC()
		return summary, fmt.Errorf("end session: %w", err)
	}

	summary.EndedAt = time.Now().UTC()
	s.publishSummary(ctx, summary)
	return summary, nil
}

// runIteration walks one full pass through the pipeline. It returns true when
// the session has reached its terminal state.
func (s *Session) runIteration(ctx context.Context, summary *Summary) (bool, error) {
	curiosity := s.generateCuriosity(ctx)

	if _, err := s.machine.Transition(ctx, agent.EventStartForaging, payload("curiosity", curiosity)); err != nil {
		return false, fmt.Errorf("start foraging: %w", err)
	}

	summary.ForagingAttempts++
	foraged, err := s.forager.Forage(ctx, curiosity)
	if err != nil {
		// No sources configured anywhere: structural, not recoverable in-loop.
		return false, fmt.Errorf("forage: %w", err)
	}
	if foraged == nil {
		s.forager.RecordFailure()
		_, err := s.machine.Transition(ctx, agent.EventForageFailed, nil)
		return false, err
	}

	if _, err := s.machine.Transition(ctx, agent.EventContentFound, payload(
		"source", foraged.SourceName,
		"url", foraged.SourceResult.URL,
		"title", foraged.SourceResult.Title,
		"log_id", foraged.LogID.String(),
	)); err != nil {
		return false, err
	}

	if len(foraged.SourceResult.Content) < s.minContent {
		s.forager.RecordFailure()
		_, err := s.machine.Transition(ctx, agent.EventContentRejected, payload(
			"reason", "content_too_short",
			"length", len(foraged.SourceResult.Content),
		))
		return false, err
	}
	if _, err := s.machine.Transition(ctx, agent.EventContentAccepted, nil); err != nil {
		return false, err
	}

	candidates, err := s.llm.ExtractCandidates(ctx, foraged.SourceResult.Content)
	if err != nil {
		return s.routeFailure(ctx, err)
	}
	if len(candidates) == 0 {
		s.forager.RecordFailure()
		_, err := s.machine.Transition(ctx, agent.EventNoCandidates, nil)
		return false, err
	}
	if _, err := s.machine.Transition(ctx, agent.EventCandidatesFound, payload("count", len(candidates))); err != nil {
		return false, err
	}

	selected, err := s.selectCandidate(ctx, candidates)
	if err != nil {
		return s.routeFailure(ctx, err)
	}
	if selected == nil {
		s.forager.RecordFailure()
		_, err := s.machine.Transition(ctx, agent.EventNoneViable, nil)
		return false, err
	}
	if _, err := s.machine.Transition(ctx, agent.EventCandidateSelected, payload(
		"bread_top", selected.Candidate.BreadTop,
		"bread_bottom", selected.Candidate.BreadBottom,
		"filling", selected.Candidate.Filling,
		"structure_type", selected.Candidate.StructureType,
		"final_score", selected.FinalScore,
	)); err != nil {
		return false, err
	}

	assembled, err := s.llm.AssembleSandwich(ctx, selected.Candidate)
	if err != nil {
		return s.routeFailure(ctx, err)
	}
	if _, err := s.machine.Transition(ctx, agent.EventAssemblyComplete, payload("name", assembled.Name)); err != nil {
		return false, err
	}

	report, err := s.llm.ValidateSandwich(ctx, assembled)
	if err != nil {
		return s.routeFailure(ctx, err)
	}

	verdictEvent, ok := verdictToEvent(report.Verdict)
	if !ok || verdictEvent == agent.EventRejected {
		s.forager.RecordFailure()
		_, err := s.machine.Transition(ctx, agent.EventRejected, payload(
			"verdict", string(report.Verdict),
			"score", report.OverallScore,
		))
		return false, err
	}
	if _, err := s.machine.Transition(ctx, verdictEvent, payload(
		"verdict", string(report.Verdict),
		"score", report.OverallScore,
	)); err != nil {
		return false, err
	}

	if err := s.storeSandwich(ctx, assembled, report); err != nil {
		return s.routeFailure(ctx, err)
	}
	if _, err := s.machine.Transition(ctx, agent.EventStored, payload("name", assembled.Name)); err != nil {
		return false, err
	}

	s.forager.RecordSuccess()
	summary.SandwichesMade++
	s.rememberTopic(assembled.Name)
	s.log().Info("sandwich stored", "name", assembled.Name, "verdict", report.Verdict, "score", report.OverallScore)
	return false, nil
}

// routeFailure moves the machine into error recovery, classifies the failure,
// and applies the resulting event. Fatal failures end the session.
func (s *Session) routeFailure(ctx context.Context, cause error) (bool, error) {
	if _, err := s.machine.Transition(ctx, agent.EventError, payload("error", cause.Error())); err != nil {
		return false, err
	}

	event := agent.ClassifyFailure(cause, s.log())
	if _, err := s.machine.Transition(ctx, event, payload("cause", cause.Error())); err != nil {
		return false, err
	}

	if event == agent.EventFatal {
		return true, nil
	}
	s.forager.RecordFailure()
	return false, nil
}

func (s *Session) selectCandidate(ctx context.Context, candidates []domain.CandidateStructure) (*domain.SelectedCandidate, error) {
	sctx := agent.SelectionContext{}

	if s.corpus != nil {
		corpusEmb, err := s.corpus.Embeddings(ctx)
		if err != nil {
			return nil, fmt.Errorf("load corpus embeddings: %w", err)
		}
		freqs, err := s.corpus.TypeFrequencies(ctx)
		if err != nil {
			return nil, fmt.Errorf("load type frequencies: %w", err)
		}
		sctx.CorpusEmbeddings = corpusEmb
		sctx.TypeFrequencies = freqs
	}

	if s.embeddings != nil && len(sctx.CorpusEmbeddings) > 0 {
		sctx.CandidateEmbeddings = make([][]float32, len(candidates))
		for i, cand := range candidates {
			emb, err := s.embeddings.Embed(ctx, candidateText(cand))
			if err != nil {
				return nil, fmt.Errorf("embed candidate %d: %w", i, err)
			}
			sctx.CandidateEmbeddings[i] = emb
		}
	}

	return agent.SelectCandidate(candidates, sctx, s.selection, s.log()), nil
}

func (s *Session) storeSandwich(ctx context.Context, sandwich domain.AssembledSandwich, report domain.ValidationReport) error {
	if s.corpus == nil {
		return nil
	}

	var embedding []float32
	if s.embeddings != nil {
		var err error
		embedding, err = s.embeddings.Embed(ctx, sandwich.Description)
		if err != nil {
			return fmt.Errorf("embed sandwich: %w", err)
		}
	}

	if err := s.corpus.SaveSandwich(ctx, sandwich, report, embedding); err != nil {
		return fmt.Errorf("save sandwich: %w", err)
	}
	return nil
}

// generateCuriosity tolerates prompt-generation failure: an undirected forage
// is still useful.
func (s *Session) generateCuriosity(ctx context.Context) string {
	if s.llm == nil {
		return ""
	}
	curiosity, err := s.forager.GenerateCuriosity(ctx, s.recentTopics)
	if err != nil {
		s.log().Warn("curiosity generation failed, foraging undirected", "error", err)
		return ""
	}
	return curiosity
}

func (s *Session) rememberTopic(topic string) {
	if topic == "" {
		return
	}
	s.recentTopics = append(s.recentTopics, topic)
	if len(s.recentTopics) > recentTopicWindow {
		s.recentTopics = s.recentTopics[len(s.recentTopics)-recentTopicWindow:]
	}
}

func (s *Session) publishSummary(ctx context.Context, summary Summary) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishSummary(ctx, formatSummary(summary)); err != nil {
		s.log().Warn("publish summary failed", "error", err)
	}
}

func (s *Session) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func verdictToEvent(verdict domain.ValidationVerdict) (agent.Event, bool) {
	switch verdict {
	case domain.VerdictAccepted:
		return agent.EventAccepted, true
	case domain.VerdictReview:
		return agent.EventReview, true
	case domain.VerdictRejected:
		return agent.EventRejected, true
	default:
		return agent.EventRejected, false
	}
}

func candidateText(cand domain.CandidateStructure) string {
	return fmt.Sprintf("%s | %s | %s", cand.BreadTop, cand.Filling, cand.BreadBottom)
}

func formatSummary(summary Summary) string {
	duration := summary.EndedAt.Sub(summary.StartedAt).Round(time.Second)
	return fmt.Sprintf("Session %s finished\nSandwiches made: %d\nForaging attempts: %d\nDuration: %s",
		summary.SessionID, summary.SandwichesMade, summary.ForagingAttempts, duration)
}

func payload(kv ...any) map[string]any {
	data := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		data[key] = kv[i+1]
	}
	return data
}
