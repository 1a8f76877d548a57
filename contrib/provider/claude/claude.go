// Package claude adapts the Anthropic SDK to the agent.LLMClient contract.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/MrWwei/rag-agent/agent"
	"github.com/MrWwei/rag-agent/message"
)

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey, baseURL string) *Config {
	return &Config{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       "claude-3-5-sonnet-20241022",
		MaxTokens:   1500,
		Temperature: 0.1,
	}
}

var _ agent.LLMClient = (*Provider)(nil)

// Provider implements the LLMClient interface for Claude
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a new Claude provider using official SDK
func New(config *Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(options...)

	return &Provider{
		config: config,
		client: client,
	}
}

// Generate implements agent.LLMClient interface
func (p *Provider) Generate(ctx context.Context, messages []*message.Message, tools []map[string]any) (*message.Message, error) {
	// Claude takes system text separately from the conversation.
	var systemPrompts []string
	conversationMessages := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		case message.RoleUser:
			conversationMessages = append(conversationMessages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case message.RoleAssistant:
			conversationMessages = append(conversationMessages, encodeAssistant(msg))
		case message.RoleTool:
			conversationMessages = append(conversationMessages,
				anthropic.NewUserMessage(encodeToolResult(msg)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		Messages:  conversationMessages,
		MaxTokens: p.config.MaxTokens,
	}
	if len(systemPrompts) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(systemPrompts, "\n")},
		}
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if len(tools) > 0 {
		params.Tools = encodeTools(tools)
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var responseText string
	toolCalls := make([]message.ToolCall, 0)

	for _, content := range apiMessage.Content {
		switch content.Type {
		case "text":
			responseText = content.Text
		case "tool_use":
			var args map[string]any
			if err := json.Unmarshal(content.Input, &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, message.ToolCall{
				ID:   content.ID,
				Name: content.Name,
				Args: args,
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
	p.config.Temperature = temp
}

// SetMaxTokens updates the max tokens setting
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = max
}

// SetModel updates the model
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}

// encodeAssistant renders an assistant turn, including any tool_use blocks
// so Claude can pair later tool results.
func encodeAssistant(msg *message.Message) anthropic.MessageParam {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
	if msg.Content != "" {
		blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		args := tc.Args
		if args == nil {
			args = map[string]any{}
		}
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    tc.ID,
				Name:  tc.Name,
				Input: args,
			},
		})
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(""))
	}
	return anthropic.NewAssistantMessage(blocks...)
}

func encodeToolResult(msg *message.Message) anthropic.ContentBlockParamUnion {
	return anthropic.ContentBlockParamUnion{
		OfToolResult: &anthropic.ToolResultBlockParam{
			ToolUseID: msg.ToolID,
			Content: []anthropic.ToolResultBlockParamContentUnion{
				{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
			},
		},
	}
}

// encodeTools converts registry schemas into Claude tool params: Claude
// wants {name, description, input_schema} rather than the OpenAI function
// wrapper.
func encodeTools(tools []map[string]any) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)

		toolParam := anthropic.ToolParam{Name: name}
		if desc != "" {
			toolParam.Description = param.NewOpt(desc)
		}
		if parameters, ok := fn["parameters"].(map[string]any); ok {
			if props, ok := parameters["properties"]; ok {
				toolParam.InputSchema.Properties = props
			}
			if req, ok := parameters["required"].([]string); ok {
				toolParam.InputSchema.Required = req
			}
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out
}
