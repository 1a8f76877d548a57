package chunking

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MrWwei/rag-agent/rag/document"
)

func TestChunkSplitsOnSeparator(t *testing.T) {
	ch := NewSimpleChunker()

	doc := document.Document{
		ID:      "hypertension",
		Source:  "hypertension.txt",
		Content: "高血压的诊断标准。\n\n高血压的治疗方法。",
	}

	chunks, err := ch.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "高血压的诊断标准。" {
		t.Errorf("unexpected first chunk: %q", chunks[0].Content)
	}
	for i, c := range chunks {
		if c.DocumentID != "hypertension" {
			t.Errorf("chunk %d: wrong document ID %q", i, c.DocumentID)
		}
		if c.Source != "hypertension.txt" {
			t.Errorf("chunk %d: source not propagated: %q", i, c.Source)
		}
		if c.Ordinal != i+1 {
			t.Errorf("chunk %d: wrong ordinal %d", i, c.Ordinal)
		}
	}
}

func TestChunkWindowsLongParagraphByRunes(t *testing.T) {
	ch := NewSimpleChunker(WithChunkSize(100), WithOverlap(10))

	long := strings.Repeat("糖尿病患者应当控制饮食。", 30) // 360 runes, no separator
	doc := document.Document{ID: "diabetes", Content: long}

	chunks, err := ch.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected windowing into multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("chunk %d: invalid UTF-8, window split inside a rune", i)
		}
		if n := utf8.RuneCountInString(c.Content); n > 100 {
			t.Errorf("chunk %d: %d runes exceeds chunk size", i, n)
		}
	}
	// Overlap repeats the window tail at the head of the next chunk.
	tail := []rune(chunks[0].Content)
	if !strings.HasPrefix(chunks[1].Content, string(tail[len(tail)-10:])) {
		t.Errorf("expected 10-rune overlap between consecutive chunks")
	}
}

func TestChunkEmptyDocumentYieldsSingleChunk(t *testing.T) {
	ch := NewSimpleChunker()
	chunks, err := ch.Chunk(context.Background(), document.Document{ID: "empty", Content: "   "})
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for blank document, got %d", len(chunks))
	}
}

func TestChunkCopiesMetadata(t *testing.T) {
	ch := NewSimpleChunker()
	doc := document.Document{
		ID:       "m",
		Content:  "内容",
		Metadata: map[string]any{"category": "内科"},
	}
	chunks, err := ch.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if chunks[0].Metadata["category"] != "内科" {
		t.Errorf("expected metadata copied to chunk, got %#v", chunks[0].Metadata)
	}
}
