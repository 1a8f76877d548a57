// Package provider hosts LLM backend implementations. Each subpackage
// adapts one vendor SDK to the agent.LLMClient contract.
package provider

import (
	"context"

	"github.com/MrWwei/rag-agent/message"
)

// Provider generates one assistant reply from a conversation and an
// optional tool schema.
type Provider interface {
	Generate(ctx context.Context, messages []*message.Message, tools []map[string]any) (*message.Message, error)
}
