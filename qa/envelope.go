package qa

import (
	"github.com/MrWwei/rag-agent/agent"
	"github.com/MrWwei/rag-agent/rag/retriever"
)

// Envelope is the complete result of answering one question. Every field is
// always populated for the mode that produced it; callers never get a bare
// string or a panic.
type Envelope struct {
	Question   string                 `json:"question"`
	Answer     string                 `json:"answer"`
	Passages   []retriever.Passage    `json:"passages,omitempty"`
	Sources    []string               `json:"sources,omitempty"`
	Context    string                 `json:"context,omitempty"`
	Mode       string                 `json:"mode"`
	RAGEnabled bool                   `json:"rag_enabled"`
	ToolCalls  []agent.ToolInvocation `json:"tool_calls,omitempty"`
	Iterations int                    `json:"iterations,omitempty"`
	Err        string                 `json:"error,omitempty"`
}

// RetrievalSucceeded reports whether at least one passage backed the answer.
func (e *Envelope) RetrievalSucceeded() bool {
	return len(e.Passages) > 0
}

// ToolNames lists the tools the reasoning loop invoked, in call order.
func (e *Envelope) ToolNames() []string {
	if len(e.ToolCalls) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.ToolCalls))
	for _, tc := range e.ToolCalls {
		names = append(names, tc.Name)
	}
	return names
}

func sourcesOf(passages []retriever.Passage) []string {
	if len(passages) == 0 {
		return nil
	}
	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, p.Source)
	}
	return sources
}
