package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"SandwichAgent/internal/agent"
)

// MemoryCheckpoints keeps per-session checkpoint logs in an expiring
// in-process cache. Useful for tests and single-process runs where a durable
// store is not configured.
type MemoryCheckpoints struct {
	cache *cache.Cache
}

var _ agent.CheckpointSink = (*MemoryCheckpoints)(nil)

// NewMemoryCheckpoints builds a sink whose sessions expire after ttl.
func NewMemoryCheckpoints(ttl time.Duration) *MemoryCheckpoints {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCheckpoints{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

// Append records the checkpoint under its session key.
func (r *MemoryCheckpoints) Append(_ context.Context, cp agent.Checkpoint) error {
	key := cp.SessionID.String()
	var log []agent.Checkpoint
	if x, found := r.cache.Get(key); found {
		log = x.([]agent.Checkpoint)
	}
	log = append(log, cp)
	r.cache.Set(key, log, cache.DefaultExpiration)
	return nil
}

// Latest returns the session's most recent checkpoint, or nil if none exists.
func (r *MemoryCheckpoints) Latest(_ context.Context, sessionID uuid.UUID) (*agent.Checkpoint, error) {
	x, found := r.cache.Get(sessionID.String())
	if !found {
		return nil, nil
	}
	log := x.([]agent.Checkpoint)
	if len(log) == 0 {
		return nil, nil
	}
	cp := log[len(log)-1]
	return &cp, nil
}
