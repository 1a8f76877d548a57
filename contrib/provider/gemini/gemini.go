// Package gemini adapts the Google generative-ai SDK to the agent.LLMClient
// contract. Gemini has no tool-call ids, so the provider synthesizes them
// and resolves tool results back to function names when encoding history.
package gemini

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/MrWwei/rag-agent/agent"
	"github.com/MrWwei/rag-agent/message"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "gemini-1.5-flash",
		MaxTokens:   1500,
		Temperature: 0.1,
	}
}

var _ agent.LLMClient = (*Provider)(nil)

// Provider implements the LLMClient interface for Google Gemini
type Provider struct {
	config *Config
	client *genai.Client
	callID atomic.Int64
}

// New creates a new Gemini provider
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Provider{
		config: config,
		client: client,
	}, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Generate implements agent.LLMClient interface
func (p *Provider) Generate(ctx context.Context, messages []*message.Message, tools []map[string]any) (*message.Message, error) {
	model := p.client.GenerativeModel(p.config.Model)
	if p.config.Temperature > 0 {
		model.SetTemperature(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(p.config.MaxTokens)
	}
	if len(tools) > 0 {
		model.Tools = encodeTools(tools)
	}

	system, contents, err := encodeMessages(messages)
	if err != nil {
		return nil, err
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	cs := model.StartChat()
	last := contents[len(contents)-1]
	cs.History = contents[:len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in response")
	}

	var responseText string
	var toolCalls []message.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			responseText += string(v)
		case genai.FunctionCall:
			toolCalls = append(toolCalls, message.ToolCall{
				ID:   fmt.Sprintf("gemini_call_%d", p.callID.Add(1)),
				Name: v.Name,
				Args: v.Args,
			})
		}
	}

	responseMsg := message.NewMessage(message.RoleAssistant, responseText)
	if len(toolCalls) > 0 {
		responseMsg.ToolCalls = toolCalls
	}
	return responseMsg, nil
}

// SetTemperature updates the temperature setting
func (p *Provider) SetTemperature(temp float64) {
	p.config.Temperature = float32(temp)
}

// SetMaxTokens updates the max tokens setting
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = int32(max)
}

// SetModel updates the model
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}

// encodeMessages maps the conversation to Gemini contents. System messages
// are pulled out as the system instruction; tool results become
// FunctionResponse parts resolved by call id to their function name.
func encodeMessages(messages []*message.Message) (string, []*genai.Content, error) {
	var system string
	callNames := make(map[string]string)
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += msg.Content

		case message.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})

		case message.RoleAssistant:
			parts := make([]genai.Part, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				callNames[tc.ID] = tc.Name
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Args})
			}
			if len(parts) == 0 {
				parts = append(parts, genai.Text(""))
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})

		case message.RoleTool:
			name, ok := callNames[msg.ToolID]
			if !ok {
				return "", nil, fmt.Errorf("tool result %s has no matching call", msg.ToolID)
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     name,
					Response: map[string]any{"result": msg.Content},
				}},
			})
		}
	}
	return system, contents, nil
}

// encodeTools converts registry schemas into Gemini function declarations.
func encodeTools(tools []map[string]any) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		decl := &genai.FunctionDeclaration{Name: name, Description: desc}
		if parameters, ok := fn["parameters"].(map[string]any); ok {
			decl.Parameters = encodeSchema(parameters)
		}
		decls = append(decls, decl)
	}
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func encodeSchema(spec map[string]any) *genai.Schema {
	schema := &genai.Schema{Type: schemaType(spec["type"])}
	if desc, ok := spec["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := spec["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for key, raw := range props {
			if propSpec, ok := raw.(map[string]any); ok {
				schema.Properties[key] = encodeSchema(propSpec)
			}
		}
	}
	if req, ok := spec["required"].([]string); ok {
		schema.Required = req
	}
	if items, ok := spec["items"].(map[string]any); ok {
		schema.Items = encodeSchema(items)
	}
	if enum, ok := spec["enum"].([]string); ok {
		schema.Enum = enum
	}
	return schema
}

func schemaType(t any) genai.Type {
	name, _ := t.(string)
	switch name {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
