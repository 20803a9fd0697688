package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CheckpointSink receives every appended checkpoint for durable storage.
// Append must be idempotent per checkpoint id; Latest resumes a session.
type CheckpointSink interface {
	Append(ctx context.Context, cp Checkpoint) error
	Latest(ctx context.Context, sessionID uuid.UUID) (*Checkpoint, error)
}

// PipelineState enumerates the stages of the sandwich-making pipeline.
type PipelineState string

const (
	StateIdle          PipelineState = "idle"
	StateForaging      PipelineState = "foraging"
	StatePreprocessing PipelineState = "preprocessing"
	StateIdentifying   PipelineState = "identifying"
	StateSelecting     PipelineState = "selecting"
	StateAssembling    PipelineState = "assembling"
	StateValidating    PipelineState = "validating"
	StateStoring       PipelineState = "storing"
	StateErrorRecovery PipelineState = "error_recovery"
	StateSessionEnd    PipelineState = "session_end"
)

// Event names a trigger for a state transition.
type Event string

const (
	EventStartForaging     Event = "start_foraging"
	EventEndSession        Event = "end_session"
	EventContentFound      Event = "content_found"
	EventForageFailed      Event = "forage_failed"
	EventContentAccepted   Event = "content_accepted"
	EventContentRejected   Event = "content_rejected"
	EventCandidatesFound   Event = "candidates_found"
	EventNoCandidates      Event = "no_candidates"
	EventCandidateSelected Event = "candidate_selected"
	EventNoneViable        Event = "none_viable"
	EventAssemblyComplete  Event = "assembly_complete"
	EventAccepted          Event = "accepted"
	EventReview            Event = "review"
	EventRejected          Event = "rejected"
	EventStored            Event = "stored"
	EventError             Event = "error"
	EventRecovered         Event = "recovered"
	EventFatal             Event = "fatal"
)

// transitions is the total transition table: any event missing from the
// current state's row is illegal. session_end has no row entries, making it
// terminal.
var transitions = map[PipelineState]map[Event]PipelineState{
	StateIdle: {
		EventStartForaging: StateForaging,
		EventEndSession:    StateSessionEnd,
	},
	StateForaging: {
		EventContentFound: StatePreprocessing,
		EventForageFailed: StateIdle,
		EventError:        StateErrorRecovery,
	},
	StatePreprocessing: {
		EventContentAccepted: StateIdentifying,
		EventContentRejected: StateIdle,
		EventError:           StateErrorRecovery,
	},
	StateIdentifying: {
		EventCandidatesFound: StateSelecting,
		EventNoCandidates:    StateIdle,
		EventError:           StateErrorRecovery,
	},
	StateSelecting: {
		EventCandidateSelected: StateAssembling,
		EventNoneViable:        StateIdle,
		EventError:             StateErrorRecovery,
	},
	StateAssembling: {
		EventAssemblyComplete: StateValidating,
		EventError:            StateErrorRecovery,
	},
	StateValidating: {
		EventAccepted: StateStoring,
		EventReview:   StateStoring,
		EventRejected: StateIdle,
		EventError:    StateErrorRecovery,
	},
	StateStoring: {
		EventStored: StateIdle,
		EventError:  StateErrorRecovery,
	},
	StateErrorRecovery: {
		EventRecovered: StateIdle,
		EventFatal:     StateSessionEnd,
	},
	StateSessionEnd: {},
}

// Checkpoint is an immutable record of one state transition, kept for
// observability and crash recovery.
type Checkpoint struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	State     PipelineState
	Timestamp time.Time
	Data      map[string]any
	Reason    string
}

// InvalidTransitionError reports an event that is illegal for the current state.
type InvalidTransitionError struct {
	CurrentState PipelineState
	Event        Event
	LegalEvents  []Event
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s + %q (valid events: %v)",
		e.CurrentState, e.Event, e.LegalEvents)
}

// Machine enforces the transition table and records every transition as a
// checkpoint. Safe for concurrent use; Transition is the sole state mutator.
type Machine struct {
	mu          sync.Mutex
	sessionID   uuid.UUID
	current     PipelineState
	checkpoints []Checkpoint
	sink        CheckpointSink
	logger      *slog.Logger
}

// MachineOption customizes a Machine at construction.
type MachineOption func(*Machine)

// WithSessionID pins the session identifier instead of generating one.
func WithSessionID(id uuid.UUID) MachineOption {
	return func(m *Machine) { m.sessionID = id }
}

// WithCheckpointSink mirrors every appended checkpoint into a durable sink.
func WithCheckpointSink(sink CheckpointSink) MachineOption {
	return func(m *Machine) { m.sink = sink }
}

// NewMachine builds a state machine in the idle state with a fresh session id.
func NewMachine(logger *slog.Logger, opts ...MachineOption) *Machine {
	m := &Machine{
		sessionID: uuid.New(),
		current:   StateIdle,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionID returns the identifier of the owning session.
func (m *Machine) SessionID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// CurrentState returns the state the machine is in right now.
func (m *Machine) CurrentState() PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CanTransition reports whether event is legal from the current state.
func (m *Machine) CanTransition(event Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := transitions[m.current][event]
	return ok
}

// Transition applies event atomically: it validates against the table,
// appends an immutable checkpoint carrying data, and advances the state.
// Illegal events return *InvalidTransitionError and leave the state untouched.
func (m *Machine) Transition(ctx context.Context, event Event, data map[string]any) (PipelineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[m.current][event]
	if !ok {
		return m.current, &InvalidTransitionError{
			CurrentState: m.current,
			Event:        event,
			LegalEvents:  legalEvents(m.current),
		}
	}

	from := m.current
	cp := Checkpoint{
		ID:        uuid.New(),
		SessionID: m.sessionID,
		State:     next,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Reason:    fmt.Sprintf("%s --[%s]--> %s", from, event, next),
	}
	m.checkpoints = append(m.checkpoints, cp)
	m.current = next

	m.log().Info("transition", "from", from, "event", event, "to", next, "session", m.sessionID)

	if m.sink != nil {
		// Durable persistence is best effort: a sink outage must not wedge the pipeline.
		if err := m.sink.Append(ctx, cp); err != nil {
			m.log().Warn("checkpoint sink append failed", "checkpoint", cp.ID, "error", err)
		}
	}

	return next, nil
}

// RecoverFromCheckpoint restores state and session id from a checkpoint taken
// before a crash. The transition table is deliberately not consulted; the
// restored checkpoint is appended so later recovery sees it too.
func (m *Machine) RecoverFromCheckpoint(cp Checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = cp.State
	m.sessionID = cp.SessionID
	m.checkpoints = append(m.checkpoints, cp)

	m.log().Info("recovered from checkpoint", "state", cp.State, "checkpoint", cp.ID, "session", cp.SessionID)
}

// LatestCheckpoint returns the most recent checkpoint, or nil if the session
// has never transitioned.
func (m *Machine) LatestCheckpoint() *Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.checkpoints) == 0 {
		return nil
	}
	cp := m.checkpoints[len(m.checkpoints)-1]
	return &cp
}

// CheckpointCount returns the length of the in-memory checkpoint log.
func (m *Machine) CheckpointCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkpoints)
}

func (m *Machine) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

func legalEvents(state PipelineState) []Event {
	row := transitions[state]
	events := make([]Event, 0, len(row))
	for event := range row {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}
