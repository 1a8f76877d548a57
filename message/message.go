package message

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Role represents the role of the message sender
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message represents a single message in a conversation. A reasoning episode
// is an ordered slice of these; the slice only ever grows within one episode.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []ToolCall     `json:"tool_calls,omitempty"`
	ToolID    string         `json:"tool_id,omitempty"` // set on tool result messages
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// NewMessage creates a new message with the given role and content
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewToolResponseMessage creates the tool result message paired with callID.
func NewToolResponseMessage(callID, content string) *Message {
	m := NewMessage(RoleTool, content)
	m.ToolID = callID
	return m
}

// Text returns the message content.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return m.Content
}

// PendingToolCalls reports whether the message requests tool execution.
func (m *Message) PendingToolCalls() bool {
	return m != nil && len(m.ToolCalls) > 0
}

// Clone creates a deep copy of the message.
func Clone(msg *Message) *Message {
	if msg == nil {
		return nil
	}
	cloned := *msg
	if msg.Metadata != nil {
		cloned.Metadata = make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			cloned.Metadata[k] = v
		}
	}
	if len(msg.ToolCalls) > 0 {
		cloned.ToolCalls = make([]ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			cloned.ToolCalls[i] = cloneToolCall(tc)
		}
	}
	return &cloned
}

// CloneMessages copies a slice of messages.
func CloneMessages(msgs []*Message) []*Message {
	if len(msgs) == 0 {
		return nil
	}
	clones := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		clones = append(clones, Clone(msg))
	}
	return clones
}

func cloneToolCall(call ToolCall) ToolCall {
	cloned := ToolCall{ID: call.ID, Name: call.Name}
	if call.Args != nil {
		cloned.Args = make(map[string]any, len(call.Args))
		for k, v := range call.Args {
			cloned.Args[k] = v
		}
	}
	return cloned
}

var idCounter atomic.Int64

func generateID() string {
	return fmt.Sprintf("msg_%d_%d", time.Now().UnixNano(), idCounter.Add(1))
}
