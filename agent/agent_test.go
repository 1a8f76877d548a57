package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWwei/rag-agent/message"
	"github.com/MrWwei/rag-agent/middleware"
	"github.com/MrWwei/rag-agent/tool"
)

// scriptedLLM replays a fixed sequence of responses or errors, one per
// Generate call.
type scriptedLLM struct {
	steps []scriptStep
	calls int
	seen  [][]*message.Message
}

type scriptStep struct {
	response *message.Message
	err      error
}

func (s *scriptedLLM) Generate(ctx context.Context, messages []*message.Message, tools []map[string]any) (*message.Message, error) {
	s.seen = append(s.seen, message.CloneMessages(messages))
	if s.calls >= len(s.steps) {
		return nil, errors.New("script exhausted")
	}
	step := s.steps[s.calls]
	s.calls++
	if step.err != nil {
		return nil, step.err
	}
	return step.response, nil
}

func (s *scriptedLLM) SetTemperature(temp float64) {}
func (s *scriptedLLM) SetMaxTokens(max int64)      {}
func (s *scriptedLLM) SetModel(model string)       {}

func assistantReply(content string) *message.Message {
	return message.NewMessage(message.RoleAssistant, content)
}

func assistantToolCall(id, name string, args map[string]any) *message.Message {
	msg := message.NewMessage(message.RoleAssistant, "")
	msg.ToolCalls = []message.ToolCall{{ID: id, Name: name, Args: args}}
	return msg
}

func echoTool(name string) *tool.Tool {
	return &tool.Tool{
		Name:        name,
		Description: "echo",
		Parameters:  []tool.Parameter{{Name: "q", Type: "string", Required: true}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			q, _ := args["q"].(string)
			return "observed: " + q, nil
		},
	}
}

func TestRunDirectAnswer(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		{response: assistantReply("多喝水，注意休息。")},
	}}
	a := New(WithProvider(llm))

	result, err := a.Run(context.Background(), "感冒了怎么办", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Terminal != TerminalDone {
		t.Errorf("expected done terminal, got %s", result.Terminal)
	}
	if result.Answer != "多喝水，注意休息。" {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if result.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", result.Iterations)
	}

	// Conversation seeded with exactly one system and one user message.
	first := llm.seen[0]
	if first[0].Role != message.RoleSystem || !strings.Contains(first[0].Content, "医疗智能助手") {
		t.Errorf("missing system prompt in seeded conversation")
	}
	if first[1].Role != message.RoleUser || first[1].Content != "感冒了怎么办" {
		t.Errorf("missing user question in seeded conversation")
	}
}

func TestRunToolCallLoop(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		{response: assistantToolCall("call_1", "echo", map[string]any{"q": "高血压"})},
		{response: assistantReply("根据查询结果，建议低盐饮食。")},
	}}
	a := New(WithProvider(llm))
	if err := a.RegisterTool(echoTool("echo")); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	result, err := a.Run(context.Background(), "高血压怎么办", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Terminal != TerminalDone {
		t.Errorf("expected done terminal, got %s", result.Terminal)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
	if len(result.ToolTrace) != 1 {
		t.Fatalf("expected 1 tool invocation, got %d", len(result.ToolTrace))
	}
	if result.ToolTrace[0].Observation != "observed: 高血压" {
		t.Errorf("unexpected observation: %q", result.ToolTrace[0].Observation)
	}

	// The tool result message is paired to the requested call id.
	second := llm.seen[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Role != message.RoleTool || toolMsg.ToolID != "call_1" {
		t.Errorf("tool result not paired to call id: role=%s tool_id=%s", toolMsg.Role, toolMsg.ToolID)
	}
}

func TestRunMultipleToolCallsAllAnswered(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		{response: func() *message.Message {
			msg := message.NewMessage(message.RoleAssistant, "")
			msg.ToolCalls = []message.ToolCall{
				{ID: "c1", Name: "echo", Args: map[string]any{"q": "一"}},
				{ID: "c2", Name: "echo", Args: map[string]any{"q": "二"}},
			}
			return msg
		}()},
		{response: assistantReply("完成")},
	}}
	a := New(WithProvider(llm))
	a.RegisterTool(echoTool("echo"))

	result, err := a.Run(context.Background(), "问题", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ids := map[string]bool{}
	for _, msg := range result.Messages {
		if msg.Role == message.RoleTool {
			ids[msg.ToolID] = true
		}
	}
	if !ids["c1"] || !ids["c2"] {
		t.Errorf("expected tool results for both call ids, got %v", ids)
	}
	if len(result.ToolTrace) != 2 {
		t.Errorf("expected 2 tool invocations, got %d", len(result.ToolTrace))
	}
	// Trace preserves request order.
	if result.ToolTrace[0].CallID != "c1" || result.ToolTrace[1].CallID != "c2" {
		t.Errorf("tool trace out of request order")
	}
}

func TestRunUnknownToolBecomesObservation(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		{response: assistantToolCall("c1", "nonexistent", nil)},
		{response: assistantReply("done")},
	}}
	a := New(WithProvider(llm))

	result, err := a.Run(context.Background(), "问题", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Terminal != TerminalDone {
		t.Errorf("expected done, got %s", result.Terminal)
	}
	if !strings.Contains(result.ToolTrace[0].Observation, "不存在") {
		t.Errorf("expected tool-not-found observation, got %q", result.ToolTrace[0].Observation)
	}
}

func TestRunRetriesBackendFailure(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		{err: errors.New("rate limited")},
		{response: assistantReply("恢复后的回答")},
	}}
	a := New(WithProvider(llm))

	result, err := a.Run(context.Background(), "问题", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Terminal != TerminalDone {
		t.Errorf("expected done after retry, got %s", result.Terminal)
	}
	if result.Answer != "恢复后的回答" {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
}

func TestRunDegradesOnFinalIterationFailure(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		{err: errors.New("backend down")},
		{err: errors.New("backend down")},
	}}
	a := New(WithProvider(llm), WithMaxIterations(2))

	result, err := a.Run(context.Background(), "问题", nil)
	if err != nil {
		t.Fatalf("expected degraded result, not error: %v", err)
	}
	if result.Terminal != TerminalDegraded {
		t.Errorf("expected degraded terminal, got %s", result.Terminal)
	}
	if !strings.Contains(result.Answer, "抱歉，处理您的问题时遇到了错误") {
		t.Errorf("unexpected degraded answer: %q", result.Answer)
	}
}

func TestRunBudgetExceeded(t *testing.T) {
	// The model keeps requesting tools and never produces a final answer.
	steps := make([]scriptStep, 3)
	for i := range steps {
		steps[i] = scriptStep{response: assistantToolCall("c", "echo", map[string]any{"q": "再查一次"})}
	}
	llm := &scriptedLLM{steps: steps}
	a := New(WithProvider(llm), WithMaxIterations(3))
	a.RegisterTool(echoTool("echo"))

	result, err := a.Run(context.Background(), "复杂问题", nil)
	if err != nil {
		t.Fatalf("budget exhaustion must not be an error: %v", err)
	}
	if result.Terminal != TerminalBudgetExceeded {
		t.Errorf("expected budget_exceeded terminal, got %s", result.Terminal)
	}
	if result.Answer != BudgetExceededAnswer {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if result.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", result.Iterations)
	}
}

func TestRunContinuesFromHistory(t *testing.T) {
	history := []*message.Message{
		message.NewMessage(message.RoleSystem, "自定义系统提示"),
		message.NewMessage(message.RoleUser, "我最近头痛"),
		message.NewMessage(message.RoleAssistant, "头痛可能与休息不足有关。"),
	}

	llm := &scriptedLLM{steps: []scriptStep{
		{response: assistantReply("结合您之前提到的头痛，建议尽早就诊。")},
	}}
	a := New(WithProvider(llm))

	result, err := a.Run(context.Background(), "需要做什么检查？", history)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	seen := llm.seen[0]
	// History system prompt wins; the default is not prepended.
	if seen[0].Content != "自定义系统提示" {
		t.Errorf("expected history system prompt first, got %q", seen[0].Content)
	}
	if len(seen) != len(history)+1 {
		t.Errorf("expected history plus new question, got %d messages", len(seen))
	}

	// The input history slice itself is not mutated.
	if len(history) != 3 {
		t.Errorf("history mutated: %d messages", len(history))
	}
	if len(result.Messages) != len(history)+2 {
		t.Errorf("expected full conversation in result, got %d messages", len(result.Messages))
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &scriptedLLM{steps: []scriptStep{{response: assistantReply("不应到达")}}}
	a := New(WithProvider(llm))

	if _, err := a.Run(ctx, "问题", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if llm.calls != 0 {
		t.Errorf("expected no backend calls after cancellation, got %d", llm.calls)
	}
}

func TestRunNoProvider(t *testing.T) {
	a := New()
	if _, err := a.Run(context.Background(), "问题", nil); err == nil {
		t.Fatal("expected error when no provider configured")
	}
}

func TestRunEmptyInputRejectedByValidator(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{{response: assistantReply("x")}}}
	a := New(WithProvider(llm), WithMiddlewares(middleware.NewInputValidator(nil)))

	if _, err := a.Run(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected validation error for blank question")
	}
	if llm.calls != 0 {
		t.Errorf("backend called despite invalid input")
	}
}
