// Package assembler renders retrieved passages into the evidence block fed
// to the language model.
package assembler

import (
	"fmt"
	"strings"

	"github.com/MrWwei/rag-agent/rag/retriever"
)

// NoKnowledgeSentinel is returned when retrieval produced no passages. It is
// a valid outcome, not an error: generation degrades to model-only knowledge.
const NoKnowledgeSentinel = "未找到相关医疗知识。"

// banner separates retrieved evidence from the rest of the prompt.
var banner = strings.Repeat("=", 50)

const truncationMarker = "..."

// Config controls context assembly.
type Config struct {
	// MaxContextLength bounds the total evidence budget in runes. Each
	// passage gets MaxContextLength / k of it.
	MaxContextLength int
}

// Option customizes assembly config.
type Option func(*Config)

// WithMaxContextLength overrides the default context budget.
func WithMaxContextLength(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxContextLength = n
		}
	}
}

// Assembler builds the context block for the RAG prompt.
type Assembler struct {
	cfg Config
}

// New creates an assembler with a 4000-rune default budget.
func New(opts ...Option) *Assembler {
	cfg := Config{MaxContextLength: 4000}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Assembler{cfg: cfg}
}

// Assemble renders up to k passages into one context block. Each passage is
// budgeted MaxContextLength / k runes and hard-truncated with a marker when
// longer. Returns the rendered block and the passages actually used.
func (a *Assembler) Assemble(passages []retriever.Passage, k int) (string, []retriever.Passage) {
	if len(passages) == 0 {
		return NoKnowledgeSentinel, nil
	}
	if k <= 0 {
		k = 1
	}
	if len(passages) > k {
		passages = passages[:k]
	}

	budget := a.cfg.MaxContextLength / k
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		content := truncate(p.Content, budget)
		parts = append(parts, fmt.Sprintf("【来源: %s | 相似度: %.3f】\n%s", baseSource(p.Source), p.Score, content))
	}

	return "\n\n" + banner + "\n\n" + strings.Join(parts, "\n\n"), passages
}

// truncate hard-cuts content to limit runes, appending the marker.
func truncate(content string, limit int) string {
	if limit <= 0 {
		return truncationMarker
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + truncationMarker
}

// baseSource reduces a slash-delimited source to its last path segment.
// Retrieval already does this; kept here so the assembler is safe on
// passages built by other callers.
func baseSource(source string) string {
	if idx := strings.LastIndex(source, "/"); idx >= 0 {
		return source[idx+1:]
	}
	return source
}
