// Package medical provides the built-in tool set of the medical QA agent:
// knowledge-base search plus five offline tools backed by static reference
// tables. All tools return human-readable Chinese text; failures surface as
// textual observations through the registry, never as transport errors.
package medical

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MrWwei/rag-agent/rag/retriever"
	"github.com/MrWwei/rag-agent/tool"
)

// Searcher is the retrieval capability medical_knowledge_search depends on.
// *retriever.Retriever satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, k int) []retriever.Passage
}

const defaultSearchTopK = 3

// Tools builds the full medical tool set. searcher may be nil, in which case
// medical_knowledge_search reports that the knowledge base is unavailable.
func Tools(searcher Searcher) []*tool.Tool {
	return []*tool.Tool{
		KnowledgeSearchTool(searcher),
		SymptomAnalysisTool(),
		DrugInformationTool(),
		HealthAdviceTool(),
		EmergencyAssessmentTool(),
		DepartmentRecommendationTool(),
	}
}

// Register registers the full medical tool set on reg.
func Register(reg *tool.Registry, searcher Searcher) error {
	for _, t := range Tools(searcher) {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// KnowledgeSearchTool searches the medical knowledge base through the
// injected searcher and renders the passages as numbered results.
func KnowledgeSearchTool(searcher Searcher) *tool.Tool {
	return &tool.Tool{
		Name:        "medical_knowledge_search",
		Description: "搜索医疗知识库，获取相关医疗信息",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Description: "搜索查询词", Required: true},
			{Name: "top_k", Type: "integer", Description: "返回结果数量", Default: defaultSearchTopK},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query := stringArg(args, "query")
			topK := intArg(args, "top_k", defaultSearchTopK)
			if searcher == nil {
				return "搜索医疗知识时出错: 知识库未初始化", nil
			}

			passages := searcher.Search(ctx, query, topK)
			if len(passages) == 0 {
				return "未找到相关医疗信息", nil
			}

			results := make([]string, 0, len(passages))
			for i, p := range passages {
				results = append(results, fmt.Sprintf("结果%d: 来源: %s\n%s", i+1, p.Source, p.Content))
			}
			return strings.Join(results, "\n\n"), nil
		},
	}
}

// SymptomAnalysisTool matches reported symptoms against the condition table
// and emits a preliminary analysis report.
func SymptomAnalysisTool() *tool.Tool {
	return &tool.Tool{
		Name:        "symptom_analysis",
		Description: "分析症状，提供初步诊断建议",
		Parameters: []tool.Parameter{
			{Name: "symptoms", Type: "array", Description: "症状列表", Required: true, Items: "string"},
			{Name: "patient_info", Type: "object", Description: "患者基本信息（可选）"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			symptoms := stringSliceArg(args, "symptoms")

			var b strings.Builder
			b.WriteString("症状分析报告:\n")
			fmt.Fprintf(&b, "主要症状: %s\n\n", strings.Join(symptoms, "、"))

			if info := mapArg(args, "patient_info"); len(info) > 0 {
				b.WriteString("患者信息:\n")
				if age, ok := info["age"]; ok {
					fmt.Fprintf(&b, "- 年龄: %v岁\n", age)
				}
				if gender, ok := info["gender"]; ok {
					fmt.Fprintf(&b, "- 性别: %v\n", gender)
				}
				if history := stringSliceArg(info, "medical_history"); len(history) > 0 {
					fmt.Fprintf(&b, "- 既往病史: %s\n", strings.Join(history, "、"))
				}
				b.WriteString("\n")
			}

			conditions := make(map[string]struct{})
			for _, symptom := range symptoms {
				for key, list := range symptomConditions {
					if strings.Contains(symptom, key) {
						for _, c := range list {
							conditions[c] = struct{}{}
						}
					}
				}
			}
			if len(conditions) > 0 {
				names := make([]string, 0, len(conditions))
				for c := range conditions {
					names = append(names, c)
				}
				sort.Strings(names)
				fmt.Fprintf(&b, "可能的疾病: %s\n\n", strings.Join(names, ", "))
			}

			b.WriteString("注意: 此分析仅供参考，请及时就医获得专业诊断。")
			return b.String(), nil
		},
	}
}

// DrugInformationTool looks up a drug in the reference table. Unknown drugs
// produce a "not found" observation rather than an error.
func DrugInformationTool() *tool.Tool {
	return &tool.Tool{
		Name:        "drug_information",
		Description: "查询药物信息，包括用法用量、副作用等",
		Parameters: []tool.Parameter{
			{Name: "drug_name", Type: "string", Description: "药物名称", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name := strings.TrimSpace(stringArg(args, "drug_name"))
			info, ok := lookupDrug(name)
			if !ok {
				return fmt.Sprintf("未找到药物 '%s' 的信息。建议咨询医生或药师获取详细信息。", name), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "药物: %s\n\n", name)
			fmt.Fprintf(&b, "作用: %s\n", info.Effect)
			fmt.Fprintf(&b, "用法用量: %s\n", info.Dosage)
			fmt.Fprintf(&b, "副作用: %s\n", info.SideEffects)
			fmt.Fprintf(&b, "注意事项: %s\n\n", info.Precautions)
			b.WriteString("警告: 请在医生指导下使用药物，不要自行调整剂量。")
			return b.String(), nil
		},
	}
}

// HealthAdviceTool returns lifestyle advice for a condition, falling back to
// generic advice when the condition is not in the table.
func HealthAdviceTool() *tool.Tool {
	return &tool.Tool{
		Name:        "health_advice",
		Description: "根据病症提供健康生活建议",
		Parameters: []tool.Parameter{
			{Name: "condition", Type: "string", Description: "疾病或健康状况", Required: true},
			{Name: "lifestyle_factors", Type: "array", Description: "生活方式因素（可选）", Items: "string"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			condition := stringArg(args, "condition")
			factors := stringSliceArg(args, "lifestyle_factors")

			var b strings.Builder
			fmt.Fprintf(&b, "针对 '%s' 的健康建议:\n\n", condition)

			if advice, ok := adviceTable[condition]; ok {
				fmt.Fprintf(&b, "饮食建议: %s\n", advice.Diet)
				fmt.Fprintf(&b, "运动建议: %s\n", advice.Exercise)
				fmt.Fprintf(&b, "生活建议: %s\n\n", advice.Living)
			} else {
				b.WriteString("一般健康建议:\n")
				b.WriteString("- 保持均衡饮食\n")
				b.WriteString("- 适量运动\n")
				b.WriteString("- 规律作息\n")
				b.WriteString("- 定期体检\n\n")
			}

			if len(factors) > 0 {
				fmt.Fprintf(&b, "基于您的生活方式因素 (%s)，建议进一步咨询医生制定个性化健康方案。\n\n", strings.Join(factors, ", "))
			}

			b.WriteString("重要提醒: 以上建议仅供参考，具体治疗方案请遵医嘱。")
			return b.String(), nil
		},
	}
}

// EmergencyAssessmentTool classifies symptoms into three urgency tiers.
// An emergency keyword or severe severity always yields the top tier.
func EmergencyAssessmentTool() *tool.Tool {
	return &tool.Tool{
		Name:        "emergency_assessment",
		Description: "评估症状的紧急程度，判断是否需要立即就医",
		Parameters: []tool.Parameter{
			{Name: "symptoms", Type: "array", Description: "当前症状", Required: true, Items: "string"},
			{Name: "severity", Type: "string", Description: "症状严重程度", Enum: []string{"mild", "moderate", "severe"}},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			symptoms := stringSliceArg(args, "symptoms")
			severity := stringArg(args, "severity")
			if severity == "" {
				severity = "moderate"
			}

			var b strings.Builder
			b.WriteString("紧急程度评估:\n\n")
			fmt.Fprintf(&b, "症状: %s\n", strings.Join(symptoms, ", "))
			fmt.Fprintf(&b, "严重程度: %s\n\n", severity)

			var level, recommendation, marker string
			switch {
			case matchesAny(symptoms, emergencyKeywords) || severity == "severe":
				level, marker = "紧急", "🔴"
				recommendation = "建议立即就医或拨打急救电话120"
			case matchesAny(symptoms, urgentKeywords) || severity == "moderate":
				level, marker = "较急", "🟡"
				recommendation = "建议24小时内就医"
			default:
				level, marker = "一般", "🟢"
				recommendation = "可预约门诊就医，注意观察症状变化"
			}

			fmt.Fprintf(&b, "评估结果: %s %s\n", marker, level)
			fmt.Fprintf(&b, "建议: %s\n\n", recommendation)
			b.WriteString("注意: 此评估仅供参考，如有疑虑请及时就医。")
			return b.String(), nil
		},
	}
}

// DepartmentRecommendationTool maps symptom keywords to hospital departments,
// defaulting to general internal medicine when nothing matches.
func DepartmentRecommendationTool() *tool.Tool {
	return &tool.Tool{
		Name:        "department_recommendation",
		Description: "根据症状推荐合适的医院科室",
		Parameters: []tool.Parameter{
			{Name: "symptoms", Type: "array", Description: "症状描述", Required: true, Items: "string"},
			{Name: "suspected_condition", Type: "string", Description: "疑似疾病（可选）"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			symptoms := stringSliceArg(args, "symptoms")
			suspected := stringArg(args, "suspected_condition")

			var b strings.Builder
			b.WriteString("科室推荐:\n\n")
			fmt.Fprintf(&b, "症状: %s\n", strings.Join(symptoms, ", "))
			if suspected != "" {
				fmt.Fprintf(&b, "疑似疾病: %s\n", suspected)
			}
			b.WriteString("\n推荐科室:\n")

			departments := make(map[string]struct{})
			for _, symptom := range symptoms {
				for key, dept := range departmentMap {
					if strings.Contains(symptom, key) {
						departments[dept] = struct{}{}
					}
				}
			}
			if suspected != "" {
				for key, dept := range departmentMap {
					if strings.Contains(suspected, key) {
						departments[dept] = struct{}{}
					}
				}
			}

			if len(departments) > 0 {
				names := make([]string, 0, len(departments))
				for d := range departments {
					names = append(names, d)
				}
				sort.Strings(names)
				for _, d := range names {
					fmt.Fprintf(&b, "- %s\n", d)
				}
			} else {
				fmt.Fprintf(&b, "- %s\n", defaultDepartment)
			}

			b.WriteString("\n提醒: 如不确定，可先挂号内科，由医生进一步转诊。")
			return b.String(), nil
		},
	}
}

func matchesAny(symptoms, keywords []string) bool {
	for _, symptom := range symptoms {
		for _, kw := range keywords {
			if strings.Contains(symptom, kw) {
				return true
			}
		}
	}
	return false
}

// Argument helpers tolerate the loose typing of decoded JSON arguments.

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return fallback
}

func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapArg(args map[string]any, key string) map[string]any {
	if v, ok := args[key].(map[string]any); ok {
		return v
	}
	return nil
}
