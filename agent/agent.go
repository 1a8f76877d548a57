// Package agent implements the ReAct reasoning loop of the medical QA
// system: the model alternates between thinking and acting through tools
// until it produces a final answer or runs out of iterations.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWwei/rag-agent/message"
	"github.com/MrWwei/rag-agent/middleware"
	"github.com/MrWwei/rag-agent/pkg/logging"
	"github.com/MrWwei/rag-agent/pkg/telemetry"
	"github.com/MrWwei/rag-agent/tool"
)

// LLMClient defines the interface for LLM providers
type LLMClient interface {
	// Generate generates a response from the LLM
	Generate(ctx context.Context, messages []*message.Message, tools []map[string]any) (*message.Message, error)

	// SetTemperature updates the temperature setting for generation
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation
	SetModel(model string)
}

// Terminal is the state the reasoning loop ended in.
type Terminal string

const (
	// TerminalDone means the model produced a final answer.
	TerminalDone Terminal = "done"

	// TerminalBudgetExceeded means the iteration budget ran out before a
	// final answer. Not an error; the answer is a user-facing message.
	TerminalBudgetExceeded Terminal = "budget_exceeded"

	// TerminalDegraded means the backend failed on the last allotted
	// iteration and the answer is a textual error message.
	TerminalDegraded Terminal = "degraded"
)

// BudgetExceededAnswer is returned when the loop hits its iteration budget.
const BudgetExceededAnswer = "抱歉，问题比较复杂，我需要更多时间来分析。请您简化问题或分步骤询问。"

// ToolInvocation records one executed tool call.
type ToolInvocation struct {
	CallID      string
	Name        string
	Args        map[string]any
	Observation string
}

// Result is the outcome of one reasoning episode.
type Result struct {
	Answer     string
	Terminal   Terminal
	Iterations int
	ToolTrace  []ToolInvocation

	// Messages is the full conversation state after the episode, including
	// any history passed in. The caller owns persistence across turns.
	Messages []*message.Message
}

// Agent runs the reasoning loop. It holds no conversation state between
// Run calls; multi-turn continuation happens through the history argument.
type Agent struct {
	name          string
	systemPrompt  string
	maxIterations int
	temperature   float64
	maxTokens     int64
	enableTools   bool
	llm           LLMClient
	tools         *tool.Registry
	middlewares   *middleware.Chain
	logger        *slog.Logger
	tracer        trace.Tracer
}

// Option is a function that configures an Agent
type Option func(*Agent)

// WithName sets the agent name
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithSystemPrompt sets the system prompt
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithMaxIterations sets the iteration budget of the reasoning loop
func WithMaxIterations(max int) Option {
	return func(a *Agent) {
		if max > 0 {
			a.maxIterations = max
		}
	}
}

// WithTemperature sets the sampling temperature for generation
func WithTemperature(temp float64) Option {
	return func(a *Agent) {
		a.temperature = temp
	}
}

// WithMaxTokens bounds the output length per generation
func WithMaxTokens(max int64) Option {
	return func(a *Agent) {
		if max > 0 {
			a.maxTokens = max
		}
	}
}

// WithTools enables or disables tool usage
func WithTools(enable bool) Option {
	return func(a *Agent) {
		a.enableTools = enable
	}
}

// WithProvider sets the LLM provider
func WithProvider(provider LLMClient) Option {
	return func(a *Agent) {
		a.llm = provider
	}
}

// WithRegistry sets the tool registry
func WithRegistry(reg *tool.Registry) Option {
	return func(a *Agent) {
		if reg != nil {
			a.tools = reg
		}
	}
}

// WithMiddleware adds a middleware to the agent
func WithMiddleware(m middleware.Middleware) Option {
	return func(a *Agent) {
		a.middlewares.Add(m)
	}
}

// WithMiddlewares sets the middleware chain
func WithMiddlewares(middlewares ...middleware.Middleware) Option {
	return func(a *Agent) {
		a.middlewares = middleware.NewChain(middlewares...)
	}
}

// New creates a new agent with the given options
func New(opts ...Option) *Agent {
	agent := &Agent{
		name:          "medical-agent",
		systemPrompt:  SystemPrompt,
		maxIterations: 5,
		temperature:   0.1,
		maxTokens:     1500,
		enableTools:   true,
		tools:         tool.NewRegistry(),
		middlewares:   middleware.NewChain(),
		logger:        logging.WithComponent("agent"),
		tracer:        telemetry.Tracer("agent"),
	}

	for _, opt := range opts {
		opt(agent)
	}

	if agent.llm != nil {
		agent.llm.SetTemperature(agent.temperature)
		agent.llm.SetMaxTokens(agent.maxTokens)
	}

	return agent
}

// RegisterTool registers a tool with the agent
func (a *Agent) RegisterTool(t *tool.Tool) error {
	return a.tools.Register(t)
}

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *tool.Registry {
	return a.tools
}

// Run executes one reasoning episode for the given question. history, when
// non-nil, is the conversation state of prior turns; it is not mutated.
func (a *Agent) Run(ctx context.Context, question string, history []*message.Message) (*Result, error) {
	if a.llm == nil {
		return nil, fmt.Errorf("agent has no LLM provider")
	}

	ctx, span := a.tracer.Start(ctx, "agent.Run",
		trace.WithAttributes(attribute.String("agent", a.name)))
	var runErr error
	defer func() { telemetry.End(span, runErr) }()

	mwCtx := middleware.NewContext(ctx)
	mwCtx.Input = question

	var result *Result
	runErr = a.middlewares.Execute(mwCtx, func(mwCtx *middleware.Context) error {
		var err error
		result, err = a.loop(mwCtx.Context(), question, history)
		if err != nil {
			mwCtx.Error = err
			return err
		}
		if n := len(result.Messages); n > 0 {
			mwCtx.Response = result.Messages[n-1]
		}
		mwCtx.Messages = result.Messages
		return nil
	})
	if runErr != nil {
		return nil, runErr
	}

	span.SetAttributes(
		attribute.Int("iterations", result.Iterations),
		attribute.String("terminal", string(result.Terminal)),
	)
	return result, nil
}

func (a *Agent) loop(ctx context.Context, question string, history []*message.Message) (*Result, error) {
	messages := a.seedMessages(question, history)

	var schemas []map[string]any
	if a.enableTools {
		schemas = a.tools.Schemas()
	}

	result := &Result{}
	for iteration := 0; iteration < a.maxIterations; iteration++ {
		// Cancellation is honored between iterations, never mid-call.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.Iterations = iteration + 1
		a.logger.Debug("reasoning iteration", "agent", a.name, "iteration", result.Iterations)

		response, err := a.llm.Generate(ctx, messages, schemas)
		if err != nil {
			a.logger.Warn("generation failed", "iteration", result.Iterations, "error", err)
			if iteration == a.maxIterations-1 {
				answer := fmt.Sprintf("抱歉，处理您的问题时遇到了错误: %v。请重新描述您的问题。", err)
				messages = append(messages, message.NewMessage(message.RoleAssistant, answer))
				result.Answer = answer
				result.Terminal = TerminalDegraded
				result.Messages = messages
				return result, nil
			}
			continue
		}

		messages = append(messages, response)

		calls := response.ToolCalls
		if !response.PendingToolCalls() {
			result.Answer = response.Content
			result.Terminal = TerminalDone
			result.Messages = messages
			return result, nil
		}

		// Execute every requested call, in request order, and append one
		// result message per call id. Registry failures are observations,
		// so no call is ever dropped.
		for _, call := range calls {
			res := a.tools.Execute(ctx, call.Name, call.Args)
			a.logger.Info("tool executed", "tool", call.Name, "ok", res.OK)
			messages = append(messages, message.NewToolResponseMessage(call.ID, res.Observation))
			result.ToolTrace = append(result.ToolTrace, ToolInvocation{
				CallID:      call.ID,
				Name:        call.Name,
				Args:        call.Args,
				Observation: res.Observation,
			})
		}
	}

	messages = append(messages, message.NewMessage(message.RoleAssistant, BudgetExceededAnswer))
	result.Answer = BudgetExceededAnswer
	result.Terminal = TerminalBudgetExceeded
	result.Messages = messages
	return result, nil
}

// seedMessages builds the initial conversation state: system prompt first,
// then prior history, then the new user question.
func (a *Agent) seedMessages(question string, history []*message.Message) []*message.Message {
	messages := make([]*message.Message, 0, len(history)+2)

	hasSystem := false
	for _, msg := range history {
		if msg.Role == message.RoleSystem {
			hasSystem = true
			break
		}
	}
	if !hasSystem && a.systemPrompt != "" {
		messages = append(messages, message.NewMessage(message.RoleSystem, a.systemPrompt))
	}
	messages = append(messages, message.CloneMessages(history)...)
	messages = append(messages, message.NewMessage(message.RoleUser, question))
	return messages
}
