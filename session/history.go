// Package session holds conversation state across turns. The reasoning
// components are stateless between invocations; callers keep history here
// and pass it back in.
package session

import (
	"sync"

	"github.com/MrWwei/rag-agent/message"
)

// History is a sliding window over one conversation. When the window
// overflows, the oldest non-system messages are dropped first; system
// messages always survive trimming.
type History struct {
	mu       sync.Mutex
	limit    int
	messages []*message.Message
}

// NewHistory creates a history bounded to limit messages. limit <= 0 means
// unbounded.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Append adds messages and trims the window.
func (h *History) Append(msgs ...*message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msgs...)
	h.trim()
}

// Replace swaps the entire conversation state, trimming to the window.
func (h *History) Replace(msgs []*message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append([]*message.Message(nil), msgs...)
	h.trim()
}

// Messages returns a deep copy of the current window.
func (h *History) Messages() []*message.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	return message.CloneMessages(h.messages)
}

// Len returns the number of messages in the window.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.messages)
}

// Clear drops everything except system messages.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.messages[:0]
	for _, msg := range h.messages {
		if msg.Role == message.RoleSystem {
			kept = append(kept, msg)
		}
	}
	h.messages = kept
}

func (h *History) trim() {
	if h.limit <= 0 || len(h.messages) <= h.limit {
		return
	}

	overflow := len(h.messages) - h.limit
	kept := make([]*message.Message, 0, h.limit)
	for _, msg := range h.messages {
		if overflow > 0 && msg.Role != message.RoleSystem {
			overflow--
			continue
		}
		kept = append(kept, msg)
	}
	h.messages = kept
}
