// =============================================================================
// article.go - 解説記事の生成
// =============================================================================
//
// 採点済みの論文から、日本語の解説記事（6セクション）を生成します。
//
// 【処理の流れ】
//  1. 基本プロンプト（論文情報 + 評価情報 + 6セクション構成）でLLMを呼ぶ
//  2. 応答を `## 見出し` で6セクションに分割（ParseArticle）
//  3. 本文抽出が有効で何か抽出できていれば、詳細プロンプトで「論文の内容」を再生成
//  4. 「論文の内容」中の最初の "Figure N" / "図N" の段落の後に図を埋め込む
//
// 【セクション】
//   ## TL;DR / ## 背景・目的 / ## この論文の良いところ
//   ## 論文の内容 / ## 考察 / ## 結論・まとめ
//
// 見出しが見つからないセクションは固定のプレースホルダーになり、
// PaperArticle.Missing に記録されます。
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// articleSection は1セクションの定義
type articleSection struct {
	key         string // Missing に記録する名前
	heading     string // プロンプトに書く見出し
	match       string // 応答の見出しに含まれていれば一致
	instruction string
	placeholder string
}

var articleSections = []articleSection{
	{"tldr", "TL;DR", "TL;DR", "論文の要点を2-3行で簡潔にまとめる", "TL;DRセクションの抽出に失敗しました。"},
	{"background", "背景・目的", "背景", "この研究が行われた背景と目的を300字程度で説明", "背景・目的セクションの抽出に失敗しました。"},
	{"goodPoints", "この論文の良いところ", "良いところ", "論文の革新性や貢献度について200字程度で説明", "良いところセクションの抽出に失敗しました。"},
	{"content", "論文の内容", "内容", "論文の手法や実験結果について400字程度で詳しく説明", "内容セクションの抽出に失敗しました。"},
	{"consideration", "考察", "考察", "論文の意義や限界、今後の展望について300字程度で考察", "考察セクションの抽出に失敗しました。"},
	{"conclusion", "結論・まとめ", "結論", "論文の重要性と実用性について200字程度でまとめ", "結論セクションの抽出に失敗しました。"},
}

// ContentExtractor は論文IDから本文を抽出する（*Extractor が実装）
type ContentExtractor interface {
	Enabled() bool
	Extract(ctx context.Context, arxivID string) ExtractedContent
}

// =============================================================================
// プロンプト
// =============================================================================

// BuildArticlePrompt は基本の記事生成プロンプトを組み立てる
//
// content が nil でなければ、抽出した図表の一覧を参考情報として添える。
func BuildArticlePrompt(p PaperInfo, ev EvaluationResult, content *ExtractedContent) string {
	var sb strings.Builder
	sb.WriteString("以下の論文について、一般読者にも理解しやすい解説記事を生成してください。\n\n")
	writePaperInfo(&sb, p)
	sb.WriteString("\n評価情報:\n")
	fmt.Fprintf(&sb, "最終スコア: %d点\n", ev.FinalScore)
	fmt.Fprintf(&sb, "評価理由: %s\n", ev.Reasoning)

	if content != nil && !content.IsEmpty() {
		sb.WriteString("\n論文から抽出した参考情報:\n")
		writeFigureList(&sb, content.Figures, 10)
		for i, t := range content.Tables {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&sb, "- %s: %s\n", t.Label(), t.Caption)
		}
		for i, a := range content.Algorithms {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&sb, "- %s: %s\n", a.Number, a.Title)
		}
		if content.Methodology != "" {
			fmt.Fprintf(&sb, "手法の抜粋: %s\n", firstRunes(content.Methodology, 800))
		}
	}

	sb.WriteString("\n以下の構成で記事を生成してください:\n\n")
	for _, s := range articleSections {
		fmt.Fprintf(&sb, "## %s\n(%s)\n\n", s.heading, s.instruction)
	}
	sb.WriteString("各セクションは明確に区切り、技術的な内容も一般の読者が理解できるよう平易な言葉で説明してください。")
	return sb.String()
}

// BuildDetailPrompt は「論文の内容」セクションを詳しく書き直すプロンプトを組み立てる
func BuildDetailPrompt(p PaperInfo, content ExtractedContent) string {
	var sb strings.Builder
	sb.WriteString("以下の論文について、本文から抽出した情報をもとに「論文の内容」セクションを詳しく書いてください。\n\n")
	writePaperInfo(&sb, p)

	if len(content.Figures) > 0 {
		sb.WriteString("\n図:\n")
		writeFigureList(&sb, content.Figures, 15)
	}
	for i, t := range content.Tables {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&sb, "\n%s: %s\n%s\n", t.Label(), t.Caption, firstRunes(RenderTableMarkdown(t), 1500))
	}
	if len(content.Equations) > 0 {
		sb.WriteString("\n主な数式:\n")
		for i, e := range content.Equations {
			if i >= 10 {
				break
			}
			if e.IsDisplayMode {
				fmt.Fprintf(&sb, "$$%s$$\n", e.LaTeX)
			} else {
				fmt.Fprintf(&sb, "$%s$\n", e.LaTeX)
			}
		}
	}
	for i, a := range content.Algorithms {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&sb, "\n%s: %s\n%s\n", a.Number, a.Title, firstRunes(a.Content, 800))
	}
	if content.Methodology != "" {
		fmt.Fprintf(&sb, "\n手法:\n%s\n", firstRunes(content.Methodology, 1500))
	}
	if content.Results != "" {
		fmt.Fprintf(&sb, "\n結果:\n%s\n", firstRunes(content.Results, 1000))
	}

	sb.WriteString(`
以下の形式で出力してください:

## 論文の内容
(手法・実験・結果を2000〜3000字程度で詳しく説明する。図や表に触れるときは "Figure 1" や "Table 2" のように番号で参照する。数式は $...$ または $$...$$ で書く)`)
	return sb.String()
}

func writePaperInfo(sb *strings.Builder, p PaperInfo) {
	sb.WriteString("論文情報:\n")
	fmt.Fprintf(sb, "タイトル: %s\n", p.Title)
	fmt.Fprintf(sb, "著者: %s\n", strings.Join(p.Authors, ", "))
	fmt.Fprintf(sb, "arXiv ID: %s\n", p.ArxivID)
	fmt.Fprintf(sb, "カテゴリ: %s\n", strings.Join(p.Subjects, ", "))
	fmt.Fprintf(sb, "Abstract: %s\n", p.Abstract)
}

func writeFigureList(sb *strings.Builder, figures []Figure, limit int) {
	for i, f := range figures {
		if i >= limit {
			break
		}
		fmt.Fprintf(sb, "- %s: %s\n", f.Number, f.Caption)
	}
}

// =============================================================================
// 応答の解析
// =============================================================================

// ParseArticle はLLM応答を6セクションに分割する
func ParseArticle(content string, p PaperInfo) PaperArticle {
	sections := splitSections(content)

	a := PaperArticle{
		PaperID: p.ArxivID,
		Title:   "【論文解説】" + p.Title,
	}
	targets := map[string]*string{
		"tldr":          &a.TLDR,
		"background":    &a.Background,
		"goodPoints":    &a.GoodPoints,
		"content":       &a.Content,
		"consideration": &a.Consideration,
		"conclusion":    &a.Conclusion,
	}
	for _, s := range articleSections {
		if body, ok := sections[s.key]; ok && body != "" {
			*targets[s.key] = body
			continue
		}
		*targets[s.key] = s.placeholder
		a.Missing = append(a.Missing, s.key)
	}
	return a
}

// splitSections は "## 見出し" 行で区切り、セクションキーごとの本文を返す
//
// "###" 以下の小見出しは本文の一部として扱う。同じキーは最初のみ採用。
func splitSections(content string) map[string]string {
	out := map[string]string{}
	current := ""
	var buf []string

	flush := func() {
		if current != "" {
			if _, ok := out[current]; !ok {
				out[current] = strings.TrimSpace(strings.Join(buf, "\n"))
			}
		}
		buf = nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "##") && !strings.HasPrefix(trimmed, "###") {
			flush()
			current = sectionKey(strings.TrimSpace(strings.TrimPrefix(trimmed, "##")))
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return out
}

func sectionKey(heading string) string {
	lower := strings.ToLower(heading)
	for _, s := range articleSections {
		if strings.Contains(lower, strings.ToLower(s.match)) {
			return s.key
		}
	}
	return ""
}

// =============================================================================
// 図の埋め込み
// =============================================================================

// EmbedFigures は本文中で最初に参照された段落の後に図を挿入する
//
// 画像URLのない図、本文で参照されていない図は挿入しない。
// 戻り値は挿入後の本文と、挿入した図番号。
func EmbedFigures(text string, figures []Figure) (string, []string) {
	paragraphs := strings.Split(text, "\n\n")
	after := make([][]string, len(paragraphs))
	var embedded []string
	seen := map[string]bool{}

	for _, f := range figures {
		n := reNumber.FindString(f.Number)
		if f.ImageURL == "" || n == "" || seen[n] {
			continue
		}
		ref := regexp.MustCompile(`(?:Figure|Fig\.)\s*` + n + `(?:\D|$)|図\s*` + n + `(?:\D|$)`)
		for i, para := range paragraphs {
			if !ref.MatchString(para) {
				continue
			}
			after[i] = append(after[i], figureBlock(f))
			embedded = append(embedded, f.Number)
			seen[n] = true
			break
		}
	}

	if len(embedded) == 0 {
		return text, nil
	}

	out := make([]string, 0, len(paragraphs)+len(embedded))
	for i, para := range paragraphs {
		out = append(out, para)
		out = append(out, after[i]...)
	}
	return strings.Join(out, "\n\n"), embedded
}

func figureBlock(f Figure) string {
	caption := strings.TrimSpace(f.Number + ": " + f.Caption)
	return fmt.Sprintf(`<figure class="wp-block-image"><img src="%s" alt="%s" /><figcaption>%s</figcaption></figure>`,
		html.EscapeString(f.ImageURL), html.EscapeString(f.Number), html.EscapeString(caption))
}

// =============================================================================
// 生成
// =============================================================================

// Generator はLLMで解説記事を生成する
type Generator struct {
	llm       Completer
	cfg       OpenAIConfig
	extractor ContentExtractor
	now       func() time.Time
}

// NewGenerator は記事生成器を作成する（extractor は nil 可）
func NewGenerator(llm Completer, cfg OpenAIConfig, extractor ContentExtractor) *Generator {
	return &Generator{llm: llm, cfg: cfg, extractor: extractor, now: time.Now}
}

// GenerateArticle は1件の記事を生成する
//
// content が nil の場合、抽出器が有効なら本文抽出を行う。
func (g *Generator) GenerateArticle(ctx context.Context, p PaperInfo, ev EvaluationResult, content *ExtractedContent) (PaperArticle, error) {
	if content == nil && g.extractor != nil && g.extractor.Enabled() {
		c := g.extractor.Extract(ctx, p.ArxivID)
		content = &c
	}

	text, err := g.llm.Complete(ctx, ChatRequest{
		Model:       g.cfg.ArticleModel,
		Messages:    []ChatMessage{{Role: "user", Content: BuildArticlePrompt(p, ev, content)}},
		Temperature: g.cfg.ArticleTemperature,
		MaxTokens:   g.cfg.ArticleMaxTokens,
	})
	if err != nil {
		return PaperArticle{}, fmt.Errorf("failed to generate article for %s: %w", p.ArxivID, err)
	}

	article := ParseArticle(text, p)
	article.GeneratedAt = g.now()

	if content != nil && !content.IsEmpty() {
		article.Figures = content.Figures
		article.Tables = content.Tables
		if g.cfg.DetailEnabled {
			if detail, err := g.generateDetail(ctx, p, *content); err != nil {
				warnf("detail generation failed for %s, keeping basic content: %v", p.ArxivID, err)
			} else {
				article.Content = detail
				article.Missing = removeString(article.Missing, "content")
			}
		}
		var embedded []string
		article.Content, embedded = EmbedFigures(article.Content, content.Figures)
		if len(embedded) > 0 {
			debugf("embedded %d figures into %s", len(embedded), p.ArxivID)
		}
	}

	if len(article.Missing) > 0 {
		warnf("article for %s has placeholder sections: %s", p.ArxivID, strings.Join(article.Missing, ", "))
	}
	return article, nil
}

func (g *Generator) generateDetail(ctx context.Context, p PaperInfo, content ExtractedContent) (string, error) {
	text, err := g.llm.Complete(ctx, ChatRequest{
		Model:       g.cfg.ArticleModel,
		Messages:    []ChatMessage{{Role: "user", Content: BuildDetailPrompt(p, content)}},
		Temperature: g.cfg.ArticleTemperature,
		MaxTokens:   g.cfg.DetailMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if body := splitSections(text)["content"]; body != "" {
		return body, nil
	}
	if body := strings.TrimSpace(text); body != "" {
		return body, nil
	}
	return "", ErrNoContent
}

// GenerateArticlesForPapers は評価済み論文の記事を順に生成する
//
// 個別の失敗はログに残してスキップする。LLM呼び出しの間隔はLLM用スロットルで制御。
func (g *Generator) GenerateArticlesForPapers(ctx context.Context, results []PaperEvaluationResult) []ArticleGenerationResult {
	out := make([]ArticleGenerationResult, 0, len(results))
	for _, r := range results {
		if ctx.Err() != nil {
			warnf("article generation interrupted: %v", ctx.Err())
			break
		}
		start := time.Now()
		article, err := g.GenerateArticle(ctx, r.Paper, r.Evaluation, nil)
		if err != nil {
			warnf("skipping article for %s: %v", r.Paper.ArxivID, err)
			continue
		}
		infof("generated article for %s in %s", r.Paper.ArxivID, time.Since(start).Round(time.Millisecond))
		out = append(out, ArticleGenerationResult{Paper: r.Paper, Article: article, Evaluation: r.Evaluation})
	}
	return out
}

// ConvertToBlogPost は記事をMarkdown本文の投稿データにする
func ConvertToBlogPost(r ArticleGenerationResult, now time.Time) BlogPost {
	p, a, ev := r.Paper, r.Article, r.Evaluation

	var sb strings.Builder
	sb.WriteString(a.TLDR + "\n\n")
	fmt.Fprintf(&sb, "## 背景・目的\n%s\n\n", a.Background)
	fmt.Fprintf(&sb, "## この論文の良いところ\n%s\n\n", a.GoodPoints)
	fmt.Fprintf(&sb, "## 論文の内容\n%s\n\n", a.Content)
	fmt.Fprintf(&sb, "## 考察\n%s\n\n", a.Consideration)
	fmt.Fprintf(&sb, "## 結論・まとめ\n%s\n\n", a.Conclusion)
	sb.WriteString("---\n**論文情報**\n")
	fmt.Fprintf(&sb, "- タイトル: %s\n", p.Title)
	fmt.Fprintf(&sb, "- 著者: %s\n", strings.Join(p.Authors, ", "))
	fmt.Fprintf(&sb, "- arXiv ID: %s\n", p.ArxivID)
	fmt.Fprintf(&sb, "- 評価スコア: %d点", ev.FinalScore)

	tags := append([]string{"論文解説"}, p.Subjects...)
	tags = append(tags, "score-"+strconv.Itoa(ev.FinalScore))

	return BlogPost{
		ID:       fmt.Sprintf("paper-%s-%d", p.ArxivID, now.UnixMilli()),
		Title:    a.Title,
		Content:  sb.String(),
		Tags:     tags,
		Status:   "draft",
		Excerpt:  a.TLDR,
		Metadata: BlogMetadata{PaperInfo: p, EvaluationScore: ev.FinalScore},
	}
}

func removeString(in []string, s string) []string {
	out := in[:0:0]
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
