package qa

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWwei/rag-agent/agent"
	"github.com/MrWwei/rag-agent/message"
	"github.com/MrWwei/rag-agent/pkg/logging"
	"github.com/MrWwei/rag-agent/pkg/telemetry"
	"github.com/MrWwei/rag-agent/prompt"
	"github.com/MrWwei/rag-agent/rag/tokenizer"
)

// Generation parameters are fixed low so repeated questions get stable,
// conservative answers.
const (
	generatorTemperature = 0.1
	generatorMaxTokens   = 1500
)

// degradedAnswerFormat falls back to the raw retrieved context when the
// backend call fails, so the user still sees the evidence.
const degradedAnswerFormat = "抱歉，生成答案时出现了错误。请稍后再试。\n\n基于检索到的信息，相关内容如下：\n%s"

// Generator produces one answer per question from a single system + user
// message pair. It never invokes tools.
type Generator struct {
	llm       agent.LLMClient
	prompts   *prompt.Manager
	tokenizer tokenizer.Tokenizer
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewGenerator builds a generator on top of an LLM backend. The backend's
// temperature and token limit are pinned to the answer-generation defaults.
// tok sizes the rendered prompt for logging and tracing; nil uses the
// mixed Chinese/English approximation.
func NewGenerator(llm agent.LLMClient, tok tokenizer.Tokenizer) (*Generator, error) {
	if llm == nil {
		return nil, fmt.Errorf("generator requires an LLM backend")
	}
	prompts, err := newPromptManager()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		tok = tokenizer.NewSimpleTokenizer()
	}
	llm.SetTemperature(generatorTemperature)
	llm.SetMaxTokens(generatorMaxTokens)
	return &Generator{
		llm:       llm,
		prompts:   prompts,
		tokenizer: tok,
		logger:    logging.WithComponent("qa.generator"),
		tracer:    telemetry.Tracer("qa/generator"),
	}, nil
}

// Generate answers the question. A non-empty knowledge context selects the
// grounded prompt; otherwise the model answers from its own knowledge. On
// backend failure it returns a degraded answer carrying the raw context
// along with the underlying error.
func (g *Generator) Generate(ctx context.Context, systemPrompt, question, knowledgeContext string, ragEnabled bool) (string, error) {
	ctx, span := g.tracer.Start(ctx, "generator.generate", trace.WithAttributes(
		attribute.Bool("rag_enabled", ragEnabled),
		attribute.Int("context_length", len(knowledgeContext)),
	))
	defer span.End()

	userMessage, err := g.userMessage(question, knowledgeContext, ragEnabled)
	if err != nil {
		telemetry.End(span, err)
		return "", err
	}

	promptTokens := g.tokenizer.CountTokens(systemPrompt) + g.tokenizer.CountTokens(userMessage)
	g.logger.Debug("generating answer", "prompt_tokens", promptTokens, "rag_enabled", ragEnabled)
	span.SetAttributes(attribute.Int("prompt_tokens", promptTokens))

	messages := []*message.Message{
		message.NewMessage(message.RoleSystem, systemPrompt),
		message.NewMessage(message.RoleUser, userMessage),
	}

	resp, err := g.llm.Generate(ctx, messages, nil)
	if err != nil {
		g.logger.Error("answer generation failed", "error", err)
		telemetry.End(span, err)
		return fmt.Sprintf(degradedAnswerFormat, knowledgeContext), fmt.Errorf("generate answer: %w", err)
	}

	return resp.Text(), nil
}

func (g *Generator) userMessage(question, knowledgeContext string, ragEnabled bool) (string, error) {
	if ragEnabled && knowledgeContext != "" {
		return g.prompts.Render(templateUserWithContext, map[string]any{
			"question": question,
			"context":  knowledgeContext,
		})
	}
	return g.prompts.Render(templateUserWithoutContext, map[string]any{
		"question": question,
	})
}
