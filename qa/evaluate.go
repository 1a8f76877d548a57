package qa

import (
	"strings"

	"github.com/MrWwei/rag-agent/rag/retriever"
)

// safetyPhrases are the disclaimer markers a safe medical answer carries.
var safetyPhrases = []string{"咨询医生", "专业医疗", "仅供参考"}

// Evaluation is a cheap heuristic quality report for one answered question.
type Evaluation struct {
	HasResults          bool    `json:"has_retrieval_results"`
	NumSources          int     `json:"num_sources"`
	AvgScore            float64 `json:"avg_similarity"`
	AnswerLength        int     `json:"answer_length"`
	HasSafetyDisclaimer bool    `json:"has_safety_disclaimer"`
	CoverageScore       float64 `json:"coverage_score"`
}

// Evaluate scores an answer against the question and the passages that
// backed it. Coverage is the fraction of question tokens that reappear in
// the answer, clamped to [0, 1]; it is 0 whenever no passages were retrieved
// or the question has no tokens.
func Evaluate(question, answer string, passages []retriever.Passage) Evaluation {
	eval := Evaluation{
		HasResults:          len(passages) > 0,
		NumSources:          len(passages),
		AnswerLength:        len([]rune(answer)),
		HasSafetyDisclaimer: hasSafetyDisclaimer(answer),
		CoverageScore:       coverageScore(question, answer, passages),
	}
	if len(passages) > 0 {
		var sum float64
		for _, p := range passages {
			sum += float64(p.Score)
		}
		eval.AvgScore = sum / float64(len(passages))
	}
	return eval
}

func hasSafetyDisclaimer(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, phrase := range safetyPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func coverageScore(question, answer string, passages []retriever.Passage) float64 {
	if len(passages) == 0 {
		return 0
	}
	questionTokens := tokenSet(question)
	if len(questionTokens) == 0 {
		return 0
	}
	answerTokens := tokenSet(answer)
	covered := 0
	for tok := range questionTokens {
		if _, ok := answerTokens[tok]; ok {
			covered++
		}
	}
	coverage := float64(covered) / float64(len(questionTokens))
	if coverage > 1 {
		coverage = 1
	}
	return coverage
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
