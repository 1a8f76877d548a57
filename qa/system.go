package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWwei/rag-agent/agent"
	"github.com/MrWwei/rag-agent/config"
	"github.com/MrWwei/rag-agent/pkg/logging"
	"github.com/MrWwei/rag-agent/pkg/telemetry"
	"github.com/MrWwei/rag-agent/rag/assembler"
	"github.com/MrWwei/rag-agent/rag/retriever"
	"github.com/MrWwei/rag-agent/rag/tokenizer"
	"github.com/MrWwei/rag-agent/session"
	"github.com/MrWwei/rag-agent/tool"
	"github.com/MrWwei/rag-agent/tool/medical"
)

const (
	defaultTopK         = 3
	defaultHistoryLimit = 50
)

// Option configures a System.
type Option func(*System)

// WithMode selects the answering mode. Invalid modes fail at construction.
func WithMode(mode string) Option {
	return func(s *System) {
		s.mode = Mode(strings.ToLower(mode))
	}
}

// WithRAG enables knowledge base retrieval. Retrieval is forced off in llm
// mode regardless of this setting.
func WithRAG(enabled bool) Option {
	return func(s *System) {
		s.ragRequested = enabled
	}
}

// WithTopK sets how many passages each question retrieves.
func WithTopK(k int) Option {
	return func(s *System) {
		s.topK = k
	}
}

// WithMaxContextLength bounds the assembled knowledge context in runes.
func WithMaxContextLength(n int) Option {
	return func(s *System) {
		s.maxContextLength = n
	}
}

// WithProvider sets the LLM backend. Required.
func WithProvider(provider agent.LLMClient) Option {
	return func(s *System) {
		s.provider = provider
	}
}

// WithRetriever sets the knowledge base searcher used in rag and agent modes.
func WithRetriever(searcher medical.Searcher) Option {
	return func(s *System) {
		s.searcher = searcher
	}
}

// WithHistoryLimit bounds the agent-mode conversation window.
func WithHistoryLimit(limit int) Option {
	return func(s *System) {
		s.historyLimit = limit
	}
}

// WithTokenizer sets the tokenizer used for prompt budgeting. Defaults to
// the mixed Chinese/English approximation.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(s *System) {
		s.tokenizer = tok
	}
}

// System answers medical questions in one of three modes: plain model
// knowledge (llm), retrieval-grounded generation (rag), or the tool-calling
// reasoning loop (agent). Mode and retrieval can be switched at runtime;
// switching discards agent conversation state.
type System struct {
	mu sync.Mutex

	mode         Mode
	ragRequested bool
	ragEnabled   bool

	topK             int
	maxContextLength int
	historyLimit     int

	provider  agent.LLMClient
	searcher  medical.Searcher
	tokenizer tokenizer.Tokenizer

	systemPrompt string
	generator    *Generator
	assembler    *assembler.Assembler
	loop         *agent.Agent
	history      *session.History

	logger *slog.Logger
	tracer trace.Tracer
}

// New builds a System. The mode must be llm, rag, or agent and a provider
// must be set; everything wrong is reported at once.
func New(opts ...Option) (*System, error) {
	s := &System{
		mode:         ModeRAG,
		ragRequested: true,
		topK:         defaultTopK,
		historyLimit: defaultHistoryLimit,
		logger:       logging.WithComponent("qa.system"),
		tracer:       telemetry.Tracer("qa/system"),
	}
	for _, opt := range opts {
		opt(s)
	}

	v := config.NewValidator()
	v.ValidateOneOf("mode", string(s.mode), string(ModeLLM), string(ModeRAG), string(ModeAgent))
	v.RequirePositive("top_k", s.topK)
	if s.provider == nil {
		return nil, fmt.Errorf("qa system requires an LLM provider")
	}
	if err := v.Error(); err != nil {
		return nil, err
	}

	gen, err := NewGenerator(s.provider, s.tokenizer)
	if err != nil {
		return nil, err
	}
	s.generator = gen

	asmOpts := []assembler.Option{}
	if s.maxContextLength > 0 {
		asmOpts = append(asmOpts, assembler.WithMaxContextLength(s.maxContextLength))
	}
	s.assembler = assembler.New(asmOpts...)

	if err := s.configureMode(); err != nil {
		return nil, err
	}
	return s, nil
}

// configureMode derives the effective RAG flag, the system prompt, and the
// agent loop from the current mode. Callers hold the lock or are in New.
func (s *System) configureMode() error {
	s.ragEnabled = s.ragRequested && (s.mode == ModeRAG || s.mode == ModeAgent)
	s.systemPrompt = systemPromptFor(s.mode, s.ragEnabled)
	s.loop = nil
	s.history = nil

	if s.mode != ModeAgent {
		return nil
	}

	reg := tool.NewRegistry()
	var searcher medical.Searcher
	if s.ragEnabled {
		searcher = s.searcher
	}
	if err := medical.Register(reg, searcher); err != nil {
		return fmt.Errorf("register medical tools: %w", err)
	}
	s.loop = agent.New(
		agent.WithProvider(s.provider),
		agent.WithRegistry(reg),
	)
	s.history = session.NewHistory(s.historyLimit)
	return nil
}

// Mode returns the current answering mode.
func (s *System) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// RAGEnabled reports whether retrieval is effective in the current mode.
func (s *System) RAGEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ragEnabled
}

// ModeLabel renders the current mode the way the interactive frontend
// displays it, e.g. "RAG模式(RAG增强)".
func (s *System) ModeLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	label := strings.ToUpper(string(s.mode)) + "模式"
	if s.ragEnabled {
		label += "(RAG增强)"
	}
	return label
}

// SwitchMode changes the answering mode at runtime. Any agent conversation
// state is discarded; switching into agent mode builds a fresh loop.
func (s *System) SwitchMode(mode string, enableRAG bool) error {
	newMode := Mode(strings.ToLower(mode))
	v := config.NewValidator()
	v.ValidateOneOf("mode", string(newMode), string(ModeLLM), string(ModeRAG), string(ModeAgent))
	if err := v.Error(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.mode
	s.mode = newMode
	s.ragRequested = enableRAG
	if err := s.configureMode(); err != nil {
		return err
	}
	s.logger.Info("mode switched", "from", old, "to", s.mode, "rag_enabled", s.ragEnabled)
	return nil
}

// ToggleRAG turns retrieval on or off in rag and llm modes. Agent-mode
// retrieval is fixed at loop construction and can only change via SwitchMode.
func (s *System) ToggleRAG(enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeAgent {
		return fmt.Errorf("agent mode retrieval is fixed at construction, switch modes to change it")
	}
	s.ragRequested = enable
	return s.configureMode()
}

// ClearHistory drops the agent-mode conversation window.
func (s *System) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history != nil {
		s.history.Clear()
	}
}

// Answer answers one question. k bounds retrieval for this question; k <= 0
// uses the configured default. The envelope is always complete, including on
// backend failure.
func (s *System) Answer(ctx context.Context, question string, k int) *Envelope {
	s.mu.Lock()
	mode := s.mode
	ragEnabled := s.ragEnabled
	systemPrompt := s.systemPrompt
	loop := s.loop
	history := s.history
	searcher := s.searcher
	if k <= 0 {
		k = s.topK
	}
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "qa.answer", trace.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.Bool("rag_enabled", ragEnabled),
		attribute.Int("top_k", k),
	))
	defer span.End()

	if mode == ModeAgent {
		return s.answerWithAgent(ctx, question, loop, history, ragEnabled)
	}
	return s.answerWithGenerator(ctx, question, k, systemPrompt, searcher, ragEnabled)
}

func (s *System) answerWithAgent(ctx context.Context, question string, loop *agent.Agent, history *session.History, ragEnabled bool) *Envelope {
	env := &Envelope{
		Question:   question,
		Mode:       agentModeLabel(ragEnabled),
		RAGEnabled: ragEnabled,
	}

	result, err := loop.Run(ctx, question, history.Messages())
	if err != nil {
		env.Answer = fmt.Sprintf("智能体处理过程中出现错误: %v", err)
		env.Err = err.Error()
		s.logger.Error("agent episode failed", "error", err)
		return env
	}

	history.Replace(result.Messages)
	env.Answer = result.Answer
	env.ToolCalls = result.ToolTrace
	env.Iterations = result.Iterations
	return env
}

func (s *System) answerWithGenerator(ctx context.Context, question string, k int, systemPrompt string, searcher medical.Searcher, ragEnabled bool) *Envelope {
	env := &Envelope{
		Question:   question,
		RAGEnabled: ragEnabled,
	}
	if ragEnabled {
		env.Mode = "RAG模式"
	} else {
		env.Mode = "LLM模式"
	}

	var knowledgeContext string
	if ragEnabled && searcher != nil {
		passages := searcher.Search(ctx, question, k)
		knowledgeContext, env.Passages = s.assembler.Assemble(passages, k)
		env.Sources = sourcesOf(env.Passages)
		env.Context = knowledgeContext
	}

	answer, err := s.generator.Generate(ctx, systemPrompt, question, knowledgeContext, ragEnabled)
	env.Answer = answer
	if err != nil {
		env.Err = err.Error()
	}
	return env
}

// BatchAnswer answers questions sequentially with the same retrieval bound.
func (s *System) BatchAnswer(ctx context.Context, questions []string, k int) []*Envelope {
	results := make([]*Envelope, 0, len(questions))
	for _, q := range questions {
		results = append(results, s.Answer(ctx, q, k))
	}
	return results
}

// EvaluateAnswer scores an already produced envelope.
func (s *System) EvaluateAnswer(env *Envelope) Evaluation {
	return Evaluate(env.Question, env.Answer, env.Passages)
}

func agentModeLabel(ragEnabled bool) string {
	if ragEnabled {
		return "Agent模式(RAG增强)"
	}
	return "Agent模式"
}

// RetrieverSearcher adapts the document retriever to the searcher the tool
// set and the answering path share.
func RetrieverSearcher(r *retriever.Retriever) medical.Searcher {
	return r
}
