package store

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/MrWwei/rag-agent/errors"
)

func TestInMemoryAppendAndTurns(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, q := range []string{"第一问", "第二问", "第三问"} {
		if err := s.AppendTurn(ctx, &Turn{SessionID: "s1", Question: q, Answer: "答", Mode: "rag"}); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	turns, err := s.Turns(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("Turns failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Question != "第一问" || turns[2].Question != "第三问" {
		t.Errorf("turns not in chronological order")
	}
	if turns[0].CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be stamped")
	}
}

func TestInMemoryTurnsLimit(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, q := range []string{"一", "二", "三"} {
		s.AppendTurn(ctx, &Turn{SessionID: "s1", Question: q})
	}

	turns, err := s.Turns(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Turns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	// Limit keeps the most recent turns.
	if turns[0].Question != "二" || turns[1].Question != "三" {
		t.Errorf("expected last two turns, got %q, %q", turns[0].Question, turns[1].Question)
	}
}

func TestInMemoryValidation(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.AppendTurn(ctx, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil turn, got %v", err)
	}
	if err := s.AppendTurn(ctx, &Turn{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty session, got %v", err)
	}
}

func TestInMemoryCloseThroughInterface(t *testing.T) {
	var s Store = NewInMemoryStore()
	ctx := context.Background()

	s.AppendTurn(ctx, &Turn{SessionID: "s1", Question: "问"})
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestInMemoryClearIsolatesSessions(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	s.AppendTurn(ctx, &Turn{SessionID: "a", Question: "甲"})
	s.AppendTurn(ctx, &Turn{SessionID: "b", Question: "乙"})

	if err := s.Clear(ctx, "a"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	turnsA, _ := s.Turns(ctx, "a", 0)
	turnsB, _ := s.Turns(ctx, "b", 0)
	if len(turnsA) != 0 {
		t.Errorf("session a not cleared")
	}
	if len(turnsB) != 1 {
		t.Errorf("session b affected by clearing a")
	}
}
