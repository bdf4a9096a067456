package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	replies []string
	err     error
	calls   []ChatRequest
}

func (s *stubCompleter) Complete(_ context.Context, req ChatRequest) (string, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", ErrNoContent
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r, nil
}

func TestParseEvaluationPositional(t *testing.T) {
	ev, out := ParseEvaluation("理由：R\n総計：1+5+3+4+3-4 = 12\npoint: 12")

	assert.Equal(t, parseModePositional, ev.ParseMode)
	assert.Equal(t, 1, ev.FamousAuthorScore)
	assert.Equal(t, 5, ev.FirstAuthorScore)
	assert.Equal(t, 3, ev.InnovationScore)
	assert.Equal(t, 4, ev.ApplicabilityScore)
	assert.Equal(t, 13, ev.BaseTotal)
	assert.Equal(t, 0, ev.LearningExperimentBonus)
	assert.Equal(t, 3, ev.TrendyTopicBonus)
	assert.Equal(t, 0, ev.SoftwareEngineeringPenalty)
	assert.Equal(t, -4, ev.LogicPenalty)
	assert.Equal(t, 12, ev.FinalScore)
	assert.Empty(t, ev.Missing)

	assert.Equal(t, "R", out.Reasoning)
	assert.Equal(t, "1+5+3+4+3-4 = 12", out.Calculation)
	assert.Equal(t, 12, out.Point)
}

func TestParseEvaluationStructured(t *testing.T) {
	content := "理由：著者は無名\n総計：2+1+3+3+3+3 = 15\n" +
		"内訳：famous=2, first=1, innovation=3, applicability=3, learning=3, trendy=3, se=0, logic=0\n" +
		"point: 15"

	ev, out := ParseEvaluation(content)

	assert.Equal(t, parseModeStructured, ev.ParseMode)
	assert.Equal(t, 2, ev.FamousAuthorScore)
	assert.Equal(t, 1, ev.FirstAuthorScore)
	assert.Equal(t, 9, ev.BaseTotal)
	assert.Equal(t, 3, ev.LearningExperimentBonus)
	assert.Equal(t, 3, ev.TrendyTopicBonus)
	assert.Equal(t, 15, ev.FinalScore)
	assert.Equal(t, "著者は無名", out.Reasoning)
}

func TestParseEvaluationIncompleteBreakdownFallsBack(t *testing.T) {
	content := "理由：x\n総計：1+1+1+1-5 = -1\n内訳：famous=1, first=1\npoint: -1"

	ev, _ := ParseEvaluation(content)

	assert.Equal(t, parseModePositional, ev.ParseMode)
	assert.Equal(t, -5, ev.SoftwareEngineeringPenalty)
	assert.Equal(t, -1, ev.FinalScore)
}

func TestParseEvaluationMissingFields(t *testing.T) {
	ev, out := ParseEvaluation("the model ignored the format")

	assert.Equal(t, 1, ev.FamousAuthorScore)
	assert.Equal(t, 1, ev.FirstAuthorScore)
	assert.Equal(t, 1, ev.InnovationScore)
	assert.Equal(t, 1, ev.ApplicabilityScore)
	assert.Equal(t, 0, ev.FinalScore)
	assert.Equal(t, "the model ignored the format", out.Reasoning)
	assert.Contains(t, ev.Missing, "reasoning")
	assert.Contains(t, ev.Missing, "finalScore")
	assert.Contains(t, ev.Missing, "famousAuthorScore")
	assert.Contains(t, ev.Missing, "applicabilityScore")
}

func TestParseEvaluationIsDeterministic(t *testing.T) {
	content := "理由：R\n総計：1+5+3+4+3-4 = 12\npoint: 12"
	ev1, out1 := ParseEvaluation(content)
	ev2, out2 := ParseEvaluation(content)
	assert.Equal(t, ev1, ev2)
	assert.Equal(t, out1, out2)
}

func TestScorerEvaluate(t *testing.T) {
	llm := &stubCompleter{replies: []string{"理由：R\n総計：1+5+3+4 = 13\npoint: 13"}}
	s := NewScorer(llm, OpenAIConfig{ScoreModel: "gpt-test", ScoreMaxTokens: 100})

	p := PaperInfo{ArxivID: "2501.00001", Title: "T", Authors: []string{"A", "B"}, Abstract: "abs"}
	res, err := s.Evaluate(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, p, res.Paper)
	assert.Equal(t, 13, res.FormattedOutput.Point)
	require.Len(t, llm.calls, 1)
	assert.Equal(t, "gpt-test", llm.calls[0].Model)
	assert.Contains(t, llm.calls[0].Messages[0].Content, "タイトル: T")
	assert.Contains(t, llm.calls[0].Messages[0].Content, "著者: A, B")
}

func TestScorerEvaluateError(t *testing.T) {
	s := NewScorer(&stubCompleter{err: errors.New("boom")}, OpenAIConfig{})
	_, err := s.Evaluate(context.Background(), PaperInfo{ArxivID: "2501.00001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2501.00001")
}
