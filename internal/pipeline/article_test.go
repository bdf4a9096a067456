package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArticle = `## TL;DR
短い要約

## 背景・目的
背景の説明

## この論文の良いところ
良い点

## 論文の内容
### 手法
手法の説明

## 考察
考察本文

## 結論・まとめ
まとめ本文
`

func TestParseArticleAllSections(t *testing.T) {
	a := ParseArticle(sampleArticle, PaperInfo{ArxivID: "2501.00001", Title: "Paper"})

	assert.Equal(t, "2501.00001", a.PaperID)
	assert.Equal(t, "【論文解説】Paper", a.Title)
	assert.Equal(t, "短い要約", a.TLDR)
	assert.Equal(t, "背景の説明", a.Background)
	assert.Equal(t, "良い点", a.GoodPoints)
	assert.Equal(t, "### 手法\n手法の説明", a.Content)
	assert.Equal(t, "考察本文", a.Consideration)
	assert.Equal(t, "まとめ本文", a.Conclusion)
	assert.Empty(t, a.Missing)
}

func TestParseArticlePlaceholders(t *testing.T) {
	a := ParseArticle("## TL;DR\n要約だけ\n", PaperInfo{ArxivID: "x"})

	assert.Equal(t, "要約だけ", a.TLDR)
	assert.Equal(t, "内容セクションの抽出に失敗しました。", a.Content)
	assert.Equal(t, []string{"background", "goodPoints", "content", "consideration", "conclusion"}, a.Missing)
}

func TestSplitSectionsFirstWins(t *testing.T) {
	sections := splitSections("## 考察\n一回目\n## 考察（続き）\n二回目\n")
	assert.Equal(t, "一回目", sections["consideration"])
}

func TestEmbedFigures(t *testing.T) {
	text := "導入の段落\n\nFigure 2 に全体像を示す\n\n図1の詳細"
	figures := []Figure{
		{Number: "Figure 1", Caption: "Overview", ImageURL: "https://arxiv.org/html/x/1.png"},
		{Number: "Figure 2", Caption: "Pipeline", ImageURL: "https://arxiv.org/html/x/2.png"},
		{Number: "Figure 3", Caption: "No image"},
		{Number: "Figure 4", Caption: "Never cited", ImageURL: "https://arxiv.org/html/x/4.png"},
	}

	out, embedded := EmbedFigures(text, figures)

	assert.ElementsMatch(t, []string{"Figure 1", "Figure 2"}, embedded)
	paragraphs := strings.Split(out, "\n\n")
	require.Len(t, paragraphs, 5)
	assert.Equal(t, "Figure 2 に全体像を示す", paragraphs[1])
	assert.Contains(t, paragraphs[2], `src="https://arxiv.org/html/x/2.png"`)
	assert.Contains(t, paragraphs[2], "<figcaption>Figure 2: Pipeline</figcaption>")
	assert.Equal(t, "図1の詳細", paragraphs[3])
	assert.Contains(t, paragraphs[4], "Figure 1: Overview")
	assert.NotContains(t, out, "4.png")
}

func TestEmbedFiguresNoMatch(t *testing.T) {
	text := "Figure 10 only"
	out, embedded := EmbedFigures(text, []Figure{{Number: "Figure 1", ImageURL: "u"}})
	assert.Equal(t, text, out)
	assert.Nil(t, embedded)
}

func TestGenerateArticle(t *testing.T) {
	llm := &stubCompleter{replies: []string{sampleArticle}}
	g := NewGenerator(llm, OpenAIConfig{ArticleModel: "gpt-article"}, nil)
	fixed := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	a, err := g.GenerateArticle(context.Background(), PaperInfo{ArxivID: "2501.00001", Title: "P"}, EvaluationResult{FinalScore: 12}, nil)
	require.NoError(t, err)
	assert.Equal(t, fixed, a.GeneratedAt)
	assert.Equal(t, "短い要約", a.TLDR)
	require.Len(t, llm.calls, 1)
	assert.Equal(t, "gpt-article", llm.calls[0].Model)
}

func TestGenerateArticlesSkipsFailures(t *testing.T) {
	g := NewGenerator(&stubCompleter{}, OpenAIConfig{}, nil)
	out := g.GenerateArticlesForPapers(context.Background(), []PaperEvaluationResult{{Paper: PaperInfo{ArxivID: "a"}}})
	assert.Empty(t, out)
}

func TestConvertToBlogPost(t *testing.T) {
	r := ArticleGenerationResult{
		Paper:      PaperInfo{ArxivID: "2501.00001", Title: "P", Authors: []string{"A"}, Subjects: []string{"cs.AI"}},
		Article:    PaperArticle{Title: "【論文解説】P", TLDR: "要約"},
		Evaluation: EvaluationResult{FinalScore: 12},
	}
	now := time.UnixMilli(1700000000000)

	post := ConvertToBlogPost(r, now)

	assert.Equal(t, "paper-2501.00001-1700000000000", post.ID)
	assert.Equal(t, "draft", post.Status)
	assert.Equal(t, "要約", post.Excerpt)
	assert.Equal(t, []string{"論文解説", "cs.AI", "score-12"}, post.Tags)
	assert.Contains(t, post.Content, "- 評価スコア: 12点")
}

func TestMapSubjectsToCategories(t *testing.T) {
	cats := MapSubjectsToCategories([]string{"cs.AI", "cs.LG", "q-bio.NC", "econ.GN"})
	assert.Equal(t, []string{"論文解説", "AI・機械学習", "機械学習", "その他"}, cats)
}

func TestFormatContentKatex(t *testing.T) {
	out := FormatContent("損失は $L_{total} = a*b$ です\n\n$$\\sum_i x_i$$")
	assert.Contains(t, out, "[katex]L_{total} = a*b[/katex]")
	assert.Contains(t, out, "[katex display]\\sum_i x_i[/katex]")
	assert.NotContains(t, out, "PRKATEX")
}
