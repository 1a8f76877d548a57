package medical

import (
	"context"
	"strings"
	"testing"

	"github.com/MrWwei/rag-agent/rag/retriever"
	"github.com/MrWwei/rag-agent/tool"
)

type fakeSearcher struct {
	passages []retriever.Passage
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) []retriever.Passage {
	if k < len(f.passages) {
		return f.passages[:k]
	}
	return f.passages
}

func TestRegisterAllTools(t *testing.T) {
	reg := tool.NewRegistry()
	if err := Register(reg, nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	want := []string{
		"department_recommendation",
		"drug_information",
		"emergency_assessment",
		"health_advice",
		"medical_knowledge_search",
		"symptom_analysis",
	}
	got := reg.List()
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %d: %v", len(want), len(got), got)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("tool %d: expected %q, got %q", i, name, got[i].Name)
		}
	}
}

func TestArrayParametersDeclareStringItems(t *testing.T) {
	for _, def := range Tools(nil) {
		for _, param := range def.Parameters {
			if param.Type != "array" {
				continue
			}
			if param.Items != "string" {
				t.Errorf("%s.%s: expected string items, got %q", def.Name, param.Name, param.Items)
			}
			schema := def.ToJSONSchema()
			params := schema["function"].(map[string]any)["parameters"].(map[string]any)
			prop := params["properties"].(map[string]any)[param.Name].(map[string]any)
			items, ok := prop["items"].(map[string]any)
			if !ok || items["type"] != "string" {
				t.Errorf("%s.%s: schema items not rendered: %v", def.Name, param.Name, prop["items"])
			}
		}
	}
}

func TestKnowledgeSearch(t *testing.T) {
	searcher := &fakeSearcher{passages: []retriever.Passage{
		{Content: "高血压是常见慢性病", Source: "hypertension.txt", Score: 0.91},
		{Content: "每日监测血压", Source: "hypertension.txt", Score: 0.85},
	}}

	out, err := KnowledgeSearchTool(searcher).Execute(context.Background(), map[string]any{"query": "高血压"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.HasPrefix(out, "结果1: 来源: hypertension.txt\n高血压是常见慢性病") {
		t.Errorf("unexpected first result: %q", out)
	}
	if !strings.Contains(out, "结果2:") {
		t.Errorf("expected second result in output: %q", out)
	}
}

func TestKnowledgeSearchNoResults(t *testing.T) {
	out, err := KnowledgeSearchTool(&fakeSearcher{}).Execute(context.Background(), map[string]any{"query": "量子力学"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "未找到相关医疗信息" {
		t.Errorf("expected no-result sentinel, got %q", out)
	}
}

func TestKnowledgeSearchNilSearcher(t *testing.T) {
	out, err := KnowledgeSearchTool(nil).Execute(context.Background(), map[string]any{"query": "高血压"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "知识库未初始化") {
		t.Errorf("expected unavailable message, got %q", out)
	}
}

func TestKnowledgeSearchTopK(t *testing.T) {
	searcher := &fakeSearcher{passages: []retriever.Passage{
		{Content: "a", Source: "s"},
		{Content: "b", Source: "s"},
		{Content: "c", Source: "s"},
	}}
	out, err := KnowledgeSearchTool(searcher).Execute(context.Background(), map[string]any{
		"query": "q",
		"top_k": float64(1), // decoded JSON numbers arrive as float64
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.Contains(out, "结果2") {
		t.Errorf("expected a single result, got %q", out)
	}
}

func TestDrugInformationKnown(t *testing.T) {
	args := map[string]any{"drug_name": "阿司匹林"}
	first, err := DrugInformationTool().Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, want := range []string{"药物: 阿司匹林", "作用: 解热镇痛、抗血小板聚集", "用法用量:", "警告:"} {
		if !strings.Contains(first, want) {
			t.Errorf("expected %q in output: %q", want, first)
		}
	}

	// Pure table lookup, repeated calls must agree.
	second, err := DrugInformationTool().Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	if first != second {
		t.Errorf("drug lookup is not idempotent")
	}
}

func TestDrugInformationUnknown(t *testing.T) {
	out, err := DrugInformationTool().Execute(context.Background(), map[string]any{"drug_name": "青霉素"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "未找到药物 '青霉素' 的信息") {
		t.Errorf("expected not-found message, got %q", out)
	}
}

func TestDrugInformationTrimsWhitespace(t *testing.T) {
	out, err := DrugInformationTool().Execute(context.Background(), map[string]any{"drug_name": " 布洛芬 "})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "药物: 布洛芬") {
		t.Errorf("expected trimmed lookup to succeed, got %q", out)
	}
}

func TestSymptomAnalysis(t *testing.T) {
	out, err := SymptomAnalysisTool().Execute(context.Background(), map[string]any{
		"symptoms": []any{"发热", "咳嗽"},
		"patient_info": map[string]any{
			"age":             float64(35),
			"gender":          "男",
			"medical_history": []any{"高血压"},
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, want := range []string{
		"主要症状: 发热、咳嗽",
		"- 年龄: 35岁",
		"- 性别: 男",
		"- 既往病史: 高血压",
		"可能的疾病:",
		"感冒",
		"仅供参考",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSymptomAnalysisNoMatch(t *testing.T) {
	out, err := SymptomAnalysisTool().Execute(context.Background(), map[string]any{
		"symptoms": []any{"打喷嚏"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.Contains(out, "可能的疾病") {
		t.Errorf("expected no condition section for unmatched symptom: %q", out)
	}
	if !strings.Contains(out, "请及时就医") {
		t.Errorf("expected referral reminder: %q", out)
	}
}

func TestEmergencyAssessmentTiers(t *testing.T) {
	tests := []struct {
		name     string
		symptoms []any
		severity string
		level    string
	}{
		{"emergency keyword overrides mild severity", []any{"剧烈头痛"}, "mild", "紧急"},
		{"severe severity alone escalates", []any{"乏力"}, "severe", "紧急"},
		{"urgent keyword", []any{"持续发热"}, "mild", "较急"},
		{"moderate default", []any{"乏力"}, "moderate", "较急"},
		{"mild unmatched", []any{"乏力"}, "mild", "一般"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{"symptoms": tt.symptoms}
			if tt.severity != "" {
				args["severity"] = tt.severity
			}
			out, err := EmergencyAssessmentTool().Execute(context.Background(), args)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if !strings.Contains(out, "评估结果: ") || !strings.Contains(out, tt.level) {
				t.Errorf("expected level %q in output:\n%s", tt.level, out)
			}
		})
	}
}

func TestEmergencyAssessmentDefaultSeverity(t *testing.T) {
	out, err := EmergencyAssessmentTool().Execute(context.Background(), map[string]any{
		"symptoms": []any{"乏力"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "严重程度: moderate") {
		t.Errorf("expected moderate default, got %q", out)
	}
}

func TestDepartmentRecommendation(t *testing.T) {
	out, err := DepartmentRecommendationTool().Execute(context.Background(), map[string]any{
		"symptoms":            []any{"咳嗽", "胸闷"},
		"suspected_condition": "胃炎",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, want := range []string{"- 呼吸科", "- 心内科", "- 消化科"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestDepartmentRecommendationFallback(t *testing.T) {
	out, err := DepartmentRecommendationTool().Execute(context.Background(), map[string]any{
		"symptoms": []any{"乏力"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "内科（建议先到内科初诊）") {
		t.Errorf("expected internal medicine fallback: %q", out)
	}
}

func TestHealthAdvice(t *testing.T) {
	out, err := HealthAdviceTool().Execute(context.Background(), map[string]any{
		"condition":         "高血压",
		"lifestyle_factors": []any{"吸烟", "久坐"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, want := range []string{"饮食建议: 低盐饮食", "运动建议:", "生活建议:", "(吸烟, 久坐)", "遵医嘱"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHealthAdviceUnknownCondition(t *testing.T) {
	out, err := HealthAdviceTool().Execute(context.Background(), map[string]any{"condition": "偏头痛"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "一般健康建议:") {
		t.Errorf("expected generic advice fallback: %q", out)
	}
}
