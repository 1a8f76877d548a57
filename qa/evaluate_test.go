package qa

import (
	"testing"

	"github.com/MrWwei/rag-agent/rag/retriever"
)

func TestEvaluateWithPassages(t *testing.T) {
	passages := []retriever.Passage{
		{Content: "高血压基础知识", Source: "hypertension.txt", Score: 0.9},
		{Content: "血压测量方法", Source: "measure.txt", Score: 0.7},
	}

	eval := Evaluate("什么是 高血压", "高血压 是一种常见慢性病，请咨询医生。", passages)

	if !eval.HasResults {
		t.Errorf("expected HasResults with passages")
	}
	if eval.NumSources != 2 {
		t.Errorf("expected 2 sources, got %d", eval.NumSources)
	}
	if eval.AvgScore < 0.79 || eval.AvgScore > 0.81 {
		t.Errorf("expected avg score 0.8, got %f", eval.AvgScore)
	}
	if !eval.HasSafetyDisclaimer {
		t.Errorf("expected disclaimer detected for 咨询医生")
	}
	if eval.CoverageScore < 0 || eval.CoverageScore > 1 {
		t.Errorf("coverage out of range: %f", eval.CoverageScore)
	}
	if eval.CoverageScore == 0 {
		t.Errorf("expected nonzero coverage, question token 高血压 appears in answer")
	}
}

func TestEvaluateCoverageZeroWithoutPassages(t *testing.T) {
	eval := Evaluate("什么是高血压", "高血压是一种慢性病", nil)
	if eval.CoverageScore != 0 {
		t.Errorf("expected zero coverage without passages, got %f", eval.CoverageScore)
	}
	if eval.HasResults || eval.NumSources != 0 || eval.AvgScore != 0 {
		t.Errorf("expected empty retrieval stats, got %+v", eval)
	}
}

func TestEvaluateCoverageZeroForEmptyQuestion(t *testing.T) {
	passages := []retriever.Passage{{Content: "x", Source: "s", Score: 1}}
	eval := Evaluate("   ", "一些回答", passages)
	if eval.CoverageScore != 0 {
		t.Errorf("expected zero coverage for blank question, got %f", eval.CoverageScore)
	}
}

func TestEvaluateDisclaimerDetection(t *testing.T) {
	cases := []struct {
		answer string
		want   bool
	}{
		{"建议您咨询医生后用药。", true},
		{"以上内容来自专业医疗资料。", true},
		{"本回答仅供参考。", true},
		{"多喝水，注意休息。", false},
	}
	for _, tc := range cases {
		if got := hasSafetyDisclaimer(tc.answer); got != tc.want {
			t.Errorf("hasSafetyDisclaimer(%q) = %v, want %v", tc.answer, got, tc.want)
		}
	}
}

func TestEvaluateAnswerLengthInRunes(t *testing.T) {
	eval := Evaluate("q", "五个中文字符", nil)
	if eval.AnswerLength != 6 {
		t.Errorf("expected rune length 6, got %d", eval.AnswerLength)
	}
}
