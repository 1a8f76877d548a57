// Package retriever implements semantic retrieval over the medical
// knowledge base: indexing documents into the vector store and similarity
// search that returns scored passages.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWwei/rag-agent/pkg/logging"
	"github.com/MrWwei/rag-agent/pkg/telemetry"
	"github.com/MrWwei/rag-agent/rag/chunking"
	"github.com/MrWwei/rag-agent/rag/document"
	"github.com/MrWwei/rag-agent/vector"
)

// Passage is one retrieved chunk of reference text. Score is cosine
// similarity, higher is more relevant; this convention holds across every
// store implementation in this module.
type Passage struct {
	Content string
	Source  string
	Score   float32
}

// Config controls retrieval behaviour.
type Config struct {
	TopK           int
	ScoreThreshold float32
	Timeout        time.Duration
}

// Option customizes retriever config.
type Option func(*Config)

// WithTopK sets the default number of passages returned when the caller
// does not specify one.
func WithTopK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.TopK = k
		}
	}
}

// WithScoreThreshold drops passages scoring below the threshold.
func WithScoreThreshold(threshold float32) Option {
	return func(cfg *Config) {
		cfg.ScoreThreshold = threshold
	}
}

// WithTimeout bounds each backend call (embedding and vector search).
func WithTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.Timeout = d
		}
	}
}

// Retriever coordinates chunking, embedding, and similarity search.
type Retriever struct {
	store    vector.VectorStore
	embedder vector.Embedder
	chunker  chunking.Chunker
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer

	mu      sync.RWMutex
	lastErr error
}

// New creates a retriever.
func New(store vector.VectorStore, emb vector.Embedder, chunker chunking.Chunker, opts ...Option) *Retriever {
	cfg := Config{
		TopK:    3,
		Timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Retriever{
		store:    store,
		embedder: emb,
		chunker:  chunker,
		cfg:      cfg,
		logger:   logging.WithComponent("retriever"),
		tracer:   telemetry.Tracer("rag/retriever"),
	}
}

// IndexDocuments ingests documents: chunk, embed, store.
func (r *Retriever) IndexDocuments(ctx context.Context, docs ...document.Document) error {
	if r.store == nil || r.embedder == nil || r.chunker == nil {
		return fmt.Errorf("retriever not fully configured")
	}

	ctx, span := r.tracer.Start(ctx, "retriever.IndexDocuments",
		trace.WithAttributes(attribute.Int("documents", len(docs))))
	var err error
	defer func() { telemetry.End(span, err) }()

	total := 0
	for _, doc := range docs {
		document.EnsureDocumentID(&doc)
		var chunks []document.Chunk
		chunks, err = r.chunker.Chunk(ctx, doc)
		if err != nil {
			return fmt.Errorf("chunk document %s: %w", doc.ID, err)
		}

		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Content
		}

		var vectors [][]float32
		vectors, err = r.embedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}

		for i, chunk := range chunks {
			embedding := &vector.Embedding{
				ID:     chunk.ID,
				Vector: vectors[i],
				Text:   chunk.Content,
				Source: chunk.Source,
			}
			if err = r.addEmbedding(ctx, embedding); err != nil {
				return fmt.Errorf("store chunk %s: %w", chunk.ID, err)
			}
		}
		total += len(chunks)
	}

	span.SetAttributes(attribute.Int("chunks", total))
	r.logger.Info("indexed documents", "documents", len(docs), "chunks", total)
	return nil
}

// Search returns up to k passages ranked by descending similarity. It never
// returns an error: backend failures are logged, recorded for LastError,
// and yield an empty result so callers treat them like "no results".
func (r *Retriever) Search(ctx context.Context, query string, k int) []Passage {
	ctx, span := r.tracer.Start(ctx, "retriever.Search",
		trace.WithAttributes(attribute.Int("top_k", k)))
	defer span.End()

	if k <= 0 {
		k = r.cfg.TopK
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}

	queryVec, err := r.embedQuery(ctx, query)
	if err != nil {
		r.fail(span, "embed query failed", err)
		return nil
	}

	matches, err := r.searchStore(ctx, queryVec, k)
	if err != nil {
		r.fail(span, "vector search failed", err)
		return nil
	}

	passages := make([]Passage, 0, len(matches))
	for _, m := range matches {
		if m.Score < r.cfg.ScoreThreshold {
			continue
		}
		passages = append(passages, Passage{
			Content: m.Embedding.Text,
			Source:  baseSource(m.Embedding.Source),
			Score:   m.Score,
		})
	}

	r.setLastErr(nil)
	span.SetAttributes(attribute.Int("passages", len(passages)))
	return passages
}

// LastError reports the failure behind the most recent empty Search result,
// or nil if the last search succeeded.
func (r *Retriever) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Clear drops all indexed state.
func (r *Retriever) Clear(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Clear(ctx)
}

// Count returns number of chunks indexed.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	return r.store.Count(ctx)
}

func (r *Retriever) fail(span trace.Span, msg string, err error) {
	r.setLastErr(err)
	span.RecordError(err)
	r.logger.Error(msg, "error", err)
}

func (r *Retriever) setLastErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.embedder.Embed(ctx, query)
}

func (r *Retriever) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.embedder.EmbedBatch(ctx, texts)
}

func (r *Retriever) searchStore(ctx context.Context, queryVec []float32, k int) ([]vector.Match, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.store.Search(ctx, queryVec, k)
}

func (r *Retriever) addEmbedding(ctx context.Context, emb *vector.Embedding) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.store.AddEmbedding(ctx, emb)
}

func (r *Retriever) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

// baseSource reduces a slash-delimited source path to its last segment.
func baseSource(source string) string {
	if idx := strings.LastIndex(source, "/"); idx >= 0 {
		return source[idx+1:]
	}
	return source
}
