package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWwei/rag-agent/errors"
)

// InMemoryStore keeps turns in process memory. Suitable for tests and
// single-process deployments without persistence requirements.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*Turn
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]*Turn)}
}

// AppendTurn records a completed turn.
func (s *InMemoryStore) AppendTurn(ctx context.Context, turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("turn cannot be nil: %w", errors.ErrInvalidInput)
	}
	if turn.SessionID == "" {
		return fmt.Errorf("turn session ID cannot be empty: %w", errors.ErrInvalidInput)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *turn
	s.sessions[turn.SessionID] = append(s.sessions[turn.SessionID], &copied)
	return nil
}

// Turns returns the most recent turns of a session in chronological order.
func (s *InMemoryStore) Turns(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]*Turn, len(turns))
	for i, t := range turns {
		copied := *t
		out[i] = &copied
	}
	return out, nil
}

// Clear removes all turns of a session.
func (s *InMemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close(ctx context.Context) error {
	return nil
}
