package inmemory

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/MrWwei/rag-agent/errors"
	"github.com/MrWwei/rag-agent/vector"
)

func TestAddAndGet(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	emb := &vector.Embedding{ID: "e1", Vector: []float32{1, 0}, Text: "高血压饮食", Source: "diet.txt"}
	if err := store.AddEmbedding(ctx, emb); err != nil {
		t.Fatalf("AddEmbedding failed: %v", err)
	}

	got, err := store.GetEmbedding(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEmbedding failed: %v", err)
	}
	if got.Text != "高血压饮食" || got.Source != "diet.txt" {
		t.Errorf("unexpected embedding: %+v", got)
	}

	if _, err := store.GetEmbedding(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddEmbeddingValidation(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	tests := []struct {
		name string
		emb  *vector.Embedding
	}{
		{"nil embedding", nil},
		{"empty id", &vector.Embedding{Vector: []float32{1}}},
		{"empty vector", &vector.Embedding{ID: "e1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.AddEmbedding(ctx, tt.emb); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSearchOrdering(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	embeddings := []*vector.Embedding{
		{ID: "exact", Vector: []float32{1, 0}},
		{ID: "close", Vector: []float32{0.9, 0.1}},
		{ID: "far", Vector: []float32{0, 1}},
	}
	for _, emb := range embeddings {
		if err := store.AddEmbedding(ctx, emb); err != nil {
			t.Fatalf("AddEmbedding failed: %v", err)
		}
	}

	matches, err := store.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Embedding.ID != "exact" || matches[1].Embedding.ID != "close" {
		t.Errorf("unexpected order: %s, %s", matches[0].Embedding.ID, matches[1].Embedding.ID)
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("scores not descending: %f < %f", matches[0].Score, matches[1].Score)
	}
	if matches[0].Score < 0.999 {
		t.Errorf("exact match score should be ~1, got %f", matches[0].Score)
	}
}

func TestSearchTieBreakInsertionOrder(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	// Identical vectors produce identical scores; insertion order decides.
	for _, id := range []string{"first", "second", "third"} {
		if err := store.AddEmbedding(ctx, &vector.Embedding{ID: id, Vector: []float32{1, 1}}); err != nil {
			t.Fatalf("AddEmbedding failed: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		matches, err := store.Search(ctx, []float32{1, 1}, 3)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if matches[0].Embedding.ID != "first" || matches[1].Embedding.ID != "second" || matches[2].Embedding.ID != "third" {
			t.Fatalf("unstable tie-break on run %d: %s, %s, %s",
				i, matches[0].Embedding.ID, matches[1].Embedding.ID, matches[2].Embedding.ID)
		}
	}
}

func TestSearchSkipsDimensionMismatch(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	store.AddEmbedding(ctx, &vector.Embedding{ID: "ok", Vector: []float32{1, 0}})
	store.AddEmbedding(ctx, &vector.Embedding{ID: "bad", Vector: []float32{1, 0, 0}})

	matches, err := store.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Embedding.ID != "ok" {
		t.Errorf("expected only matching dimension, got %d matches", len(matches))
	}
}

func TestDeleteAndClear(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	store.AddEmbedding(ctx, &vector.Embedding{ID: "e1", Vector: []float32{1}})
	store.AddEmbedding(ctx, &vector.Embedding{ID: "e2", Vector: []float32{1}})

	if err := store.DeleteEmbedding(ctx, "e1"); err != nil {
		t.Fatalf("DeleteEmbedding failed: %v", err)
	}
	if err := store.DeleteEmbedding(ctx, "e1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 embedding after delete, got %d", count)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	count, _ = store.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty store after clear, got %d", count)
	}
}
