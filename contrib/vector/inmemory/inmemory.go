package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWwei/rag-agent/errors"
	"github.com/MrWwei/rag-agent/vector"
)

// InMemoryVectorStore implements VectorStore using in-memory storage.
// Search ties are broken by insertion order, which keeps results stable
// across repeated queries on identical content.
type InMemoryVectorStore struct {
	embeddings map[string]*vector.Embedding
	order      []string
	mu         sync.RWMutex
}

// NewInMemoryVectorStore creates a new in-memory vector store
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{
		embeddings: make(map[string]*vector.Embedding),
	}
}

// AddEmbedding adds a new embedding to the store
func (s *InMemoryVectorStore) AddEmbedding(ctx context.Context, embedding *vector.Embedding) error {
	if embedding == nil {
		return fmt.Errorf("embedding cannot be nil: %w", errors.ErrInvalidInput)
	}
	if embedding.ID == "" {
		return fmt.Errorf("embedding ID cannot be empty: %w", errors.ErrInvalidInput)
	}
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("embedding vector cannot be empty: %w", errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.embeddings[embedding.ID]; !exists {
		s.order = append(s.order, embedding.ID)
	}
	s.embeddings[embedding.ID] = embedding
	return nil
}

// Search finds the topK embeddings most similar to the query vector,
// ordered by descending cosine similarity.
func (s *InMemoryVectorStore) Search(ctx context.Context, queryVector []float32, topK int) ([]vector.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty: %w", errors.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 10
	}

	matches := make([]vector.Match, 0, len(s.embeddings))
	for _, id := range s.order {
		emb := s.embeddings[id]
		if len(emb.Vector) != len(queryVector) {
			continue
		}
		matches = append(matches, vector.Match{
			Embedding: emb,
			Score:     vector.CosineSimilarity(queryVector, emb.Vector),
		})
	}

	// Stable sort preserves insertion order among equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteEmbedding removes an embedding by ID
func (s *InMemoryVectorStore) DeleteEmbedding(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.embeddings[id]; !exists {
		return fmt.Errorf("embedding %s: %w", id, errors.ErrNotFound)
	}

	delete(s.embeddings, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetEmbedding retrieves a specific embedding by ID
func (s *InMemoryVectorStore) GetEmbedding(ctx context.Context, id string) (*vector.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, exists := s.embeddings[id]
	if !exists {
		return nil, fmt.Errorf("embedding %s: %w", id, errors.ErrNotFound)
	}
	return emb, nil
}

// Clear removes all embeddings
func (s *InMemoryVectorStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.embeddings = make(map[string]*vector.Embedding)
	s.order = nil
	return nil
}

// Count returns the number of embeddings
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.embeddings), nil
}
