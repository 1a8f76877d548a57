package vector

import (
	"context"
	"math"
)

// Embedding is one stored vector with its originating text and source.
type Embedding struct {
	ID       string
	Vector   []float32
	Text     string
	Source   string
	Metadata map[string]string
}

// Match is a search hit. Score is cosine similarity in [-1, 1], higher is
// more similar. Results are ordered by descending score.
type Match struct {
	Embedding *Embedding
	Score     float32
}

// VectorStore defines the interface for vector storage and similarity search
type VectorStore interface {
	// AddEmbedding adds a new embedding to the store
	AddEmbedding(ctx context.Context, embedding *Embedding) error

	// Search finds the topK embeddings most similar to the query vector
	Search(ctx context.Context, queryVector []float32, topK int) ([]Match, error)

	// DeleteEmbedding removes an embedding by ID
	DeleteEmbedding(ctx context.Context, id string) error

	// GetEmbedding retrieves a specific embedding by ID
	GetEmbedding(ctx context.Context, id string) (*Embedding, error)

	// Clear removes all embeddings
	Clear(ctx context.Context) error

	// Count returns the number of embeddings
	Count(ctx context.Context) (int, error)
}

// Embedder defines the interface for creating embeddings from text
type Embedder interface {
	// Embed converts text to a vector embedding
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to embeddings
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension return number of embedding dimensions
	Dimension() int
}

// CosineSimilarity calculates the cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// EuclideanDistance calculates the Euclidean distance between two vectors
func EuclideanDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := 0; i < len(a); i++ {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return float32(math.Sqrt(sum))
}

// Normalize scales the vector to unit length (L2 norm).
func Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
