// Package openai adapts the official OpenAI SDK to the agent.LLMClient
// contract. It also serves OpenAI-compatible endpoints (DeepSeek, Qwen and
// similar) through a custom base URL.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/MrWwei/rag-agent/agent"
	"github.com/MrWwei/rag-agent/message"
)

// Config holds OpenAI provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// WithBaseURL set BaseURL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithAPIKey set api key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithModel set model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// DefaultConfig returns defaults tuned for medical QA: low temperature,
// bounded output.
func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   1500,
		Temperature: 0.1,
	}
}

var _ agent.LLMClient = (*Provider)(nil)

// Provider implements the LLMClient interface for OpenAI
type Provider struct {
	config *Config
	client openai.Client
}

// New creates a new OpenAI provider using official SDK
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	client := openai.NewClient(options...)

	return &Provider{
		config: config,
		client: client,
	}
}

// Generate implements agent.LLMClient interface
func (p *Provider) Generate(ctx context.Context, messages []*message.Message, tools []map[string]any) (*message.Message, error) {
	openAIMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			openAIMessages = append(openAIMessages, openai.SystemMessage(msg.Text()))
		case message.RoleUser:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Text()))
		case message.RoleAssistant:
			assistantMsg := openai.AssistantMessage(msg.Text())
			if len(msg.ToolCalls) > 0 {
				toolCalls, err := encodeToolCalls(msg.ToolCalls)
				if err != nil {
					return nil, fmt.Errorf("failed to encode tool calls: %w", err)
				}
				if assistantMsg.OfAssistant != nil {
					assistantMsg.OfAssistant.ToolCalls = toolCalls
				}
			}
			openAIMessages = append(openAIMessages, assistantMsg)
		case message.RoleTool:
			openAIMessages = append(openAIMessages, openai.ToolMessage(msg.Text(), msg.ToolID))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: openAIMessages,
		Model:    openai.ChatModel(p.config.Model),
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(p.config.MaxTokens)
	}
	if len(tools) > 0 {
		params.Tools = encodeTools(tools)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	choice := completion.Choices[0]
	responseMsg := message.NewMessage(message.RoleAssistant, choice.Message.Content)

	if len(choice.Message.ToolCalls) > 0 {
		toolCalls := make([]message.ToolCall, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			var args map[string]any
			if raw := tc.Function.Arguments; raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
				}
			}
			toolCalls[i] = message.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			}
		}
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

// encodeTools converts registry schemas ({"type":"function","function":{...}})
// into SDK tool params.
func encodeTools(tools []map[string]any) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		parameters, _ := fn["parameters"].(map[string]any)

		def := shared.FunctionDefinitionParam{Name: name}
		if desc != "" {
			def.Description = param.NewOpt(desc)
		}
		if parameters != nil {
			def.Parameters = shared.FunctionParameters(parameters)
		}
		out = append(out, openai.ChatCompletionFunctionTool(def))
	}
	return out
}

func encodeToolCalls(calls []message.ToolCall) ([]openai.ChatCompletionMessageToolCallUnionParam, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	params := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, tc := range calls {
		args := tc.Args
		if args == nil {
			args = make(map[string]any)
		}
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		params = append(params, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: string(raw),
				},
			},
		})
	}
	return params, nil
}
