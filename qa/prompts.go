package qa

import (
	"fmt"

	"github.com/MrWwei/rag-agent/prompt"
)

// Mode selects how a question is answered.
type Mode string

const (
	// ModeLLM answers from model knowledge only.
	ModeLLM Mode = "llm"
	// ModeRAG grounds the answer on retrieved knowledge base passages.
	ModeRAG Mode = "rag"
	// ModeAgent runs the tool-calling reasoning loop.
	ModeAgent Mode = "agent"
)

// agentModePrompt is the short system prompt used when the reasoning loop
// owns the conversation. The loop carries its own capability prompt.
const agentModePrompt = `你是一位专业的医疗智能助手，具有工具调用和推理能力。
请基于提供的信息回答用户问题，并始终提醒用户咨询专业医生。`

const ragModePrompt = `你是一位专业的医疗知识问答助手。请遵循以下原则：

1. **专业性**：基于提供的医疗知识库内容回答问题，确保信息准确性
2. **安全性**：不提供具体的诊断或治疗建议，建议用户咨询专业医生
3. **结构化**：回答要条理清晰，分点说明
4. **完整性**：尽量提供全面的信息，包括相关的背景知识
5. **谨慎性**：对于不确定的信息，明确说明并建议进一步咨询

回答格式要求：
- 首先基于知识库内容提供准确信息
- 如果涉及诊断或治疗，提醒用户咨询专业医生
- 提供相关的预防措施或注意事项
- 如果知识库中没有相关信息，诚实说明并建议咨询专业人士

请注意：你的回答仅供参考，不能替代专业医疗建议。`

const llmModePrompt = `你是一位专业的医疗知识问答助手。请遵循以下原则：

1. **专业性**：基于你的医疗知识回答问题，确保信息准确性
2. **安全性**：不提供具体的诊断或治疗建议，强烈建议用户咨询专业医生
3. **结构化**：回答要条理清晰，分点说明
4. **完整性**：尽量提供全面的信息，包括相关的背景知识
5. **谨慎性**：对于不确定的信息，明确说明并建议进一步咨询专业医生

重要提醒：
- 你的回答基于一般医疗知识，不能替代专业医疗建议
- 任何健康问题都应咨询专业医生进行个性化诊断和治疗
- 不要提供具体的药物剂量或治疗方案
- 如遇紧急情况，建议立即就医

请注意：你的回答仅供参考，不能替代专业医疗建议。`

const (
	userPromptWithContext = `基于以下医疗知识库内容，回答用户的问题。

知识库内容:
{{.context}}

用户问题: {{.question}}

请基于上述知识库内容，提供专业、准确、安全的回答。`

	userPromptWithoutContext = `请回答以下医疗相关问题，基于你的医疗知识提供专业、准确、安全的回答。

用户问题: {{.question}}

请提供详细的回答，并强调需要咨询专业医生的重要性。`
)

const (
	templateUserWithContext    = "user_with_context"
	templateUserWithoutContext = "user_without_context"
)

// newPromptManager registers the user message templates used by the
// generation path.
func newPromptManager() (*prompt.Manager, error) {
	mgr := prompt.NewManager()
	if err := mgr.RegisterString(templateUserWithContext, userPromptWithContext); err != nil {
		return nil, fmt.Errorf("register %s: %w", templateUserWithContext, err)
	}
	if err := mgr.RegisterString(templateUserWithoutContext, userPromptWithoutContext); err != nil {
		return nil, fmt.Errorf("register %s: %w", templateUserWithoutContext, err)
	}
	return mgr, nil
}

// systemPromptFor returns the system prompt for a mode. The RAG prompt is
// only meaningful when retrieval is on; without it the model-knowledge
// variant adds an explicit dosage refusal.
func systemPromptFor(mode Mode, ragEnabled bool) string {
	switch {
	case mode == ModeAgent:
		return agentModePrompt
	case ragEnabled:
		return ragModePrompt
	default:
		return llmModePrompt
	}
}
