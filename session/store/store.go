// Package store persists completed question/answer turns so conversation
// statistics and multi-session continuity survive process restarts.
package store

import (
	"context"
	"time"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	SessionID  string    `json:"session_id" bson:"session_id"`
	Question   string    `json:"question" bson:"question"`
	Answer     string    `json:"answer" bson:"answer"`
	Mode       string    `json:"mode" bson:"mode"`
	Iterations int       `json:"iterations" bson:"iterations"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Store persists turns per session.
type Store interface {
	// AppendTurn records a completed turn.
	AppendTurn(ctx context.Context, turn *Turn) error

	// Turns returns the most recent turns of a session in chronological
	// order, up to limit (0 means all).
	Turns(ctx context.Context, sessionID string, limit int) ([]*Turn, error)

	// Clear removes all turns of a session.
	Clear(ctx context.Context, sessionID string) error

	// Close releases backing resources.
	Close(ctx context.Context) error
}
