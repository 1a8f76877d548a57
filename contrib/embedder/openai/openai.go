// Package openai implements vector.Embedder on the OpenAI embeddings API.
// It also works against OpenAI-compatible endpoints via a custom base URL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/MrWwei/rag-agent/vector"
)

// maxBatchSize bounds one embeddings request. The knowledge-base indexer
// hands over every chunk of a document at once, which can exceed what the
// endpoint accepts per call, so larger batches are split into windows.
const maxBatchSize = 64

// OpenAIEmbedder implements vector.Embedder by using openai.
type OpenAIEmbedder struct {
	client    openaisdk.Client
	model     openaisdk.EmbeddingModel
	dimension int
}

// New create OpenAIEmbedder.
func New(apiKey, baseURL string, model openaisdk.EmbeddingModel, dimension int) vector.Embedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openaisdk.NewClient(opts...)
	return &OpenAIEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}
}

// Dimension return number of embedding dimensions
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// Embed converts text to a vector embedding
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedWindow(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts to embeddings, splitting oversized
// batches into windows of maxBatchSize. Order is preserved.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedWindow(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedWindow(ctx context.Context, texts []string) ([][]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Model: e.model,
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		out[i] = convertVector(emb.Embedding, e.dimension)
	}
	return out, nil
}

func convertVector(input []float64, expected int) []float32 {
	vec := make([]float32, expected)
	for i := 0; i < len(input) && i < expected; i++ {
		vec[i] = float32(input[i])
	}
	return vec
}
