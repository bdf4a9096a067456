// =============================================================================
// scorer.go - 論文の採点
// =============================================================================
//
// LLMに採点ルーブリックを送り、応答テキストから EvaluationResult を組み立てます。
//
// 【応答フォーマット】
//
//	理由：{各観点の説明}
//	総計：1+5+3+4+3-4 = 12
//	内訳：famous=1, first=5, innovation=3, applicability=4, learning=0, trendy=3, se=0, logic=-4
//	point: 12
//
// 【解析の優先順位】
//
// 優先度1: 内訳行（key=value）★4つのサブスコアが揃っていれば採用★
//     ↓
// 優先度2: 総計の計算式（"=" の左側の整数を位置で解釈）
//     ↓
// 見つからない項目: サブスコアは1（ルーブリックの最低点）、点数は0
//                   どちらも Missing に記録される
//
// 【計算式の位置解釈】
//   1〜4番目の整数: 著名著者 / 筆頭著者 / 革新性 / 応用可能性
//   5番目以降:
//     -5 → ソフトウェア工学ペナルティ
//     -4 → ロジックペナルティ
//      3 → 式全体で最初に現れた "3" なら学習実験ボーナス、
//          それ以外はトレンドボーナス（埋まっていれば学習実験ボーナス）
//
// 解析は入力文字列だけで決まる純粋関数です（同じ入力なら同じ結果）。
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	parseModeStructured = "structured"
	parseModePositional = "positional"
)

var (
	reReasoning   = regexp.MustCompile(`理由[：:]([\s\S]*?)総計[：:]`)
	reCalculation = regexp.MustCompile(`総計[：:]([^\n]*)`)
	rePoint       = regexp.MustCompile(`(?i)point\s*[:：]\s*(-?\d+)`)
	reBreakdown   = regexp.MustCompile(`内訳[：:]([^\n]*)`)
	reBreakdownKV = regexp.MustCompile(`([A-Za-z_]+)\s*=\s*([+-]?\d+)`)
	reSignedInt   = regexp.MustCompile(`[+-]?\d+`)
	rePointTail   = regexp.MustCompile(`(?i)\s*point\s*[:：].*$`)
)

// BuildRubricPrompt は採点プロンプトを組み立てる
func BuildRubricPrompt(p PaperInfo) string {
	var sb strings.Builder
	sb.WriteString(`Arxiv search toolを使って、次のことを調査してほしい。
1. 著名な研究者が著者の中に含まれているか
2. 著名な研究者が1st Authorであるか
3. タイトルやAbstractより、革新的な論文であるかどうか。
4. タイトルやAbstractより、機械学習の一般の研究者からビジネス活用を考える一般のビジネスマンまで応用可能性の広い論文であるかどうか。
上記をそれぞれ1~5の5段階で評価してほしい。
ただし、1については、非常に有名な著者（Jeffery Hintonなど）であれば5をつける。一般に知られていない著者であれば1をつける。満点ではない場合、名は知られていないが精華大学など著名な大学に所属していれば1点を加点して良い（例；名は知られていないが東京大学所属の場合、2点とする)。
また、2については、5段階ではなく1 or 5でよい。
3については、既存概念を覆すレベルであれば満点を、それほどではないが産業活用がすぐに進む見込みのある内容であれば3点をつける。すぐに淘汰されそうな内容であれば1点をつける。
4については、内容が明瞭であり、一般のビジネスマンにも理解できそうなレベルで産業応用性の高い内容であれば満点をつける。理解できるレベルではあるが適用できる産業が限られる場合（医療限定、など）であれば3点。応用可能性が低く、中長期的にも一部の研究者にしか読まれなそうな内容であれば1点をつける。

1−4の総合点を算出してほしい。

それを踏まえて、以下の場合+3点加点する。
・論文において学習を伴う実験が実施されていること
・GenAIやAIエージェント、画像生成、LLMなど、キャッチーなトピックに関するものである場合

以下の場合、カッコに書いている点数分を減点する。
・学術的な先進性を示す論文ではなく、新しいGUIに関するWhitePaperなど、Software Engineeringに関する内容である場合。(-5点)
・論理展開が不透明でエビデンスに乏しい内容の場合 (-4点)

上記を踏まえた最終的な点数を以下フォーマットで出力してほしい。
理由：{各観点について箇条書きで説明。Total 300字程度で。}
総計：{各観点の点数を足し算した結果を表示。例：1+2+1+4-3 = 5}
内訳：famous={1の点数}, first={2の点数}, innovation={3の点数}, applicability={4の点数}, learning={学習実験の加点、なければ0}, trendy={トピックの加点、なければ0}, se={Software Engineeringの減点、なければ0}, logic={論理展開の減点、なければ0}
point: {点数。総計で算出される点数}

対象論文：
`)
	fmt.Fprintf(&sb, "タイトル: %s\n", p.Title)
	fmt.Fprintf(&sb, "著者: %s\n", strings.Join(p.Authors, ", "))
	fmt.Fprintf(&sb, "Abstract: %s", p.Abstract)
	return sb.String()
}

// ParseEvaluation はLLM応答から評価結果と表示用出力を作る
func ParseEvaluation(content string) (EvaluationResult, FormattedOutput) {
	var ev EvaluationResult

	reasoning := strings.TrimSpace(content)
	if m := reReasoning.FindStringSubmatch(content); m != nil {
		reasoning = strings.TrimSpace(m[1])
	} else {
		ev.Missing = append(ev.Missing, "reasoning")
	}
	ev.Reasoning = reasoning

	calculation := ""
	if m := reCalculation.FindStringSubmatch(content); m != nil {
		calculation = strings.TrimSpace(rePointTail.ReplaceAllString(m[1], ""))
	}

	if m := rePoint.FindStringSubmatch(content); m != nil {
		ev.FinalScore, _ = strconv.Atoi(m[1])
	} else {
		ev.Missing = append(ev.Missing, "finalScore")
	}

	if !applyBreakdown(&ev, content) {
		applyCalculation(&ev, calculation)
	}

	ev.BaseTotal = ev.FamousAuthorScore + ev.FirstAuthorScore + ev.InnovationScore + ev.ApplicabilityScore

	return ev, FormattedOutput{
		Reasoning:   reasoning,
		Calculation: calculation,
		Point:       ev.FinalScore,
	}
}

// applyBreakdown は内訳行を解釈する。4つのサブスコアが揃わなければ false。
func applyBreakdown(ev *EvaluationResult, content string) bool {
	m := reBreakdown.FindStringSubmatch(content)
	if m == nil {
		return false
	}

	values := map[string]int{}
	for _, kv := range reBreakdownKV.FindAllStringSubmatch(m[1], -1) {
		n, err := strconv.Atoi(kv[2])
		if err != nil {
			continue
		}
		values[strings.ToLower(kv[1])] = n
	}
	for _, k := range []string{"famous", "first", "innovation", "applicability"} {
		if _, ok := values[k]; !ok {
			return false
		}
	}

	ev.ParseMode = parseModeStructured
	ev.FamousAuthorScore = values["famous"]
	ev.FirstAuthorScore = values["first"]
	ev.InnovationScore = values["innovation"]
	ev.ApplicabilityScore = values["applicability"]
	ev.LearningExperimentBonus = values["learning"]
	ev.TrendyTopicBonus = values["trendy"]
	ev.SoftwareEngineeringPenalty = values["se"]
	ev.LogicPenalty = values["logic"]
	return true
}

// applyCalculation は計算式 "1+5+3+4+3-4 = 12" を位置で解釈する
func applyCalculation(ev *EvaluationResult, calculation string) {
	ev.ParseMode = parseModePositional

	expr := calculation
	if i := strings.Index(expr, "="); i >= 0 {
		expr = expr[:i]
	}
	// "- 4" を "-4" として読むため空白を除去
	expr = strings.Join(strings.Fields(expr), "")

	var nums []int
	for _, s := range reSignedInt.FindAllString(expr, -1) {
		if n, err := strconv.Atoi(s); err == nil {
			nums = append(nums, n)
		}
	}

	subScores := []struct {
		name string
		dst  *int
	}{
		{"famousAuthorScore", &ev.FamousAuthorScore},
		{"firstAuthorScore", &ev.FirstAuthorScore},
		{"innovationScore", &ev.InnovationScore},
		{"applicabilityScore", &ev.ApplicabilityScore},
	}
	for i, s := range subScores {
		if i < len(nums) {
			*s.dst = nums[i]
			continue
		}
		*s.dst = 1
		ev.Missing = append(ev.Missing, s.name)
	}

	firstThree := -1
	for i, n := range nums {
		if n == 3 {
			firstThree = i
			break
		}
	}

	for i := 4; i < len(nums); i++ {
		switch nums[i] {
		case 3:
			if i == firstThree && ev.LearningExperimentBonus == 0 {
				ev.LearningExperimentBonus = 3
			} else if ev.TrendyTopicBonus == 0 {
				ev.TrendyTopicBonus = 3
			} else {
				ev.LearningExperimentBonus = 3
			}
		case -5:
			ev.SoftwareEngineeringPenalty = -5
		case -4:
			ev.LogicPenalty = -4
		}
	}
}

// Scorer はLLMで論文を採点する
type Scorer struct {
	llm Completer
	cfg OpenAIConfig
}

// NewScorer は採点器を作成する
func NewScorer(llm Completer, cfg OpenAIConfig) *Scorer {
	return &Scorer{llm: llm, cfg: cfg}
}

// Evaluate は1件の論文を採点する。LLMのエラーはそのまま返す。
func (s *Scorer) Evaluate(ctx context.Context, p PaperInfo) (PaperEvaluationResult, error) {
	content, err := s.llm.Complete(ctx, ChatRequest{
		Model:       s.cfg.ScoreModel,
		Messages:    []ChatMessage{{Role: "user", Content: BuildRubricPrompt(p)}},
		Temperature: s.cfg.ScoreTemperature,
		MaxTokens:   s.cfg.ScoreMaxTokens,
	})
	if err != nil {
		return PaperEvaluationResult{}, fmt.Errorf("failed to evaluate paper %s: %w", p.ArxivID, err)
	}

	ev, out := ParseEvaluation(content)
	if len(ev.Missing) > 0 {
		warnf("evaluation of %s defaulted fields: %s", p.ArxivID, strings.Join(ev.Missing, ", "))
	}
	return PaperEvaluationResult{Paper: p, Evaluation: ev, FormattedOutput: out}, nil
}
