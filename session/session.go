// Package session persists the turn log: one record per completed agent
// turn, grouped by conversation. The pipeline appends on release,
// release-safe and clarification; front ends read history for context
// display. Backends: in-memory, Redis, PostgreSQL and MongoDB.
package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Turn is one completed agent turn.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Citations []string  `json:"citations,omitempty"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists completed turns.
type Store interface {
	// Append records a completed turn.
	Append(ctx context.Context, turn Turn) error
	// History returns the session's turns, oldest first, up to limit
	// (limit <= 0 returns all).
	History(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	// Clear removes all turns for a session.
	Clear(ctx context.Context, sessionID string) error
	// Close releases backend resources.
	Close() error
}

// InMemoryStore keeps turns in process memory. Suitable for tests and
// single-process deployments.
type InMemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewInMemoryStore creates an empty in-memory turn log.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{turns: make(map[string][]Turn)}
}

func (s *InMemoryStore) Append(ctx context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

func (s *InMemoryStore) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.turns[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *InMemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, sessionID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
