package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"SandwichAgent/internal/agent"
)

// PostgresCheckpoints is the durable checkpoint sink: append plus
// latest-by-session lookup, enough to resume a session after restart.
type PostgresCheckpoints struct {
	db *sql.DB
}

var _ agent.CheckpointSink = (*PostgresCheckpoints)(nil)

// NewPostgresCheckpoints wires a sql.DB implementation.
func NewPostgresCheckpoints(db *sql.DB) *PostgresCheckpoints {
	return &PostgresCheckpoints{db: db}
}

// Append inserts one checkpoint; replays of the same checkpoint id are no-ops.
func (r *PostgresCheckpoints) Append(ctx context.Context, cp agent.Checkpoint) error {
	if r.db == nil {
		return nil
	}

	payload, err := json.Marshal(cp.Data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query, args, err := psql.
		Insert("checkpoints").
		Columns("id", "session_id", "state", "created_at", "payload", "reason").
		Values(cp.ID, cp.SessionID, string(cp.State), cp.Timestamp, payload, cp.Reason).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	return nil
}

// Latest returns the session's most recent checkpoint, or nil when the
// session never transitioned.
func (r *PostgresCheckpoints) Latest(ctx context.Context, sessionID uuid.UUID) (*agent.Checkpoint, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := psql.
		Select("id", "session_id", "state", "created_at", "payload", "reason").
		From("checkpoints").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		cp      agent.Checkpoint
		state   string
		payload []byte
	)
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&cp.ID, &cp.SessionID, &state, &cp.Timestamp, &payload, &cp.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}

	cp.State = agent.PipelineState(state)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cp.Data); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	return &cp, nil
}
