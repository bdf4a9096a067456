package pipeline

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	reDisplayKatex = regexp.MustCompile(`\$\$([^$]+)\$\$`)
	reInlineKatex  = regexp.MustCompile(`\$([^$\n]+)\$`)
	reKatexToken   = regexp.MustCompile(`PRKATEX(D|I)(\d+)X`)
)

// subjectCategories maps arXiv subjects to blog categories.
var subjectCategories = map[string]string{
	"cs.AI":           "AI・機械学習",
	"cs.LG":           "機械学習",
	"cs.CV":           "コンピュータビジョン",
	"cs.CL":           "自然言語処理",
	"cs.NE":           "ニューラルネットワーク",
	"cs.RO":           "ロボティクス",
	"cs.DC":           "分散システム",
	"cs.CR":           "セキュリティ",
	"cs.DB":           "データベース",
	"cs.HC":           "ヒューマンコンピュータインタラクション",
	"stat.ML":         "統計的機械学習",
	"math.OC":         "最適化",
	"physics.data-an": "データ解析",
}

// MapSubjectsToCategories returns 論文解説 followed by the mapped categories,
// deduplicated; unknown subjects map to その他.
func MapSubjectsToCategories(subjects []string) []string {
	cats := []string{"論文解説"}
	for _, s := range subjects {
		c, ok := subjectCategories[s]
		if !ok {
			c = "その他"
		}
		cats = append(cats, c)
	}
	return uniqStrings(cats)
}

// BuildTags returns the post tags for a paper.
func BuildTags(p PaperInfo, ev EvaluationResult) []string {
	tags := []string{"論文解説", "arXiv", "AI研究"}
	for _, s := range p.Subjects {
		tags = append(tags, strings.TrimPrefix(s, "cs."))
	}
	tags = append(tags, "評価"+strconv.Itoa(ev.FinalScore)+"点")
	return uniqStrings(tags)
}

// FormatContent converts section markdown to HTML. Math is rewritten to
// KaTeX shortcodes: $$x$$ becomes [katex display]x[/katex] and $x$ becomes
// [katex]x[/katex]. Math is kept out of the markdown renderer so that
// underscores and asterisks inside formulas survive.
func FormatContent(md string) string {
	var display, inline []string

	md = reDisplayKatex.ReplaceAllStringFunc(md, func(s string) string {
		display = append(display, reDisplayKatex.FindStringSubmatch(s)[1])
		return "PRKATEXD" + strconv.Itoa(len(display)-1) + "X"
	})
	md = reInlineKatex.ReplaceAllStringFunc(md, func(s string) string {
		inline = append(inline, reInlineKatex.FindStringSubmatch(s)[1])
		return "PRKATEXI" + strconv.Itoa(len(inline)-1) + "X"
	})

	out := string(blackfriday.Run([]byte(md)))

	out = reKatexToken.ReplaceAllStringFunc(out, func(tok string) string {
		m := reKatexToken.FindStringSubmatch(tok)
		i, _ := strconv.Atoi(m[2])
		if m[1] == "D" && i < len(display) {
			return "[katex display]" + display[i] + "[/katex]"
		}
		if m[1] == "I" && i < len(inline) {
			return "[katex]" + inline[i] + "[/katex]"
		}
		return tok
	})
	return strings.TrimSpace(out)
}

type htmlSection struct {
	class string
	title string
	body  string
	style string
}

// BuildPostHTML renders the article as WordPress block HTML.
func BuildPostHTML(r ArticleGenerationResult) string {
	a, p, ev := r.Article, r.Paper, r.Evaluation

	sections := []htmlSection{
		{"tldr-section", "🚀 TL;DR", a.TLDR, "background-color: #f0f9ff; padding: 20px; border-radius: 8px; margin-bottom: 30px;"},
		{"background-section", "🎯 背景・目的", a.Background, "margin-bottom: 30px;"},
		{"good-points-section", "✨ この論文の良いところ", a.GoodPoints, "background-color: #f0fdf4; padding: 20px; border-radius: 8px; margin-bottom: 30px;"},
		{"content-section", "📖 論文の内容", a.Content, "margin-bottom: 30px;"},
		{"consideration-section", "🤔 考察", a.Consideration, "margin-bottom: 30px;"},
		{"conclusion-section", "🎉 結論・まとめ", a.Conclusion, "background-color: #fefce8; padding: 20px; border-radius: 8px; margin-bottom: 30px;"},
	}

	var sb strings.Builder
	sb.WriteString(`<div class="paper-article">` + "\n")
	for _, s := range sections {
		fmt.Fprintf(&sb, `  <div class="wp-block-group %s" style="%s">`+"\n", s.class, s.style)
		fmt.Fprintf(&sb, `    <h2 class="wp-block-heading">%s</h2>`+"\n", s.title)
		sb.WriteString(`    <div class="wp-block-group__inner-container">` + "\n")
		sb.WriteString(FormatContent(s.body) + "\n")
		sb.WriteString("    </div>\n  </div>\n\n")
	}

	if len(a.Tables) > 0 {
		sb.WriteString(`  <div class="wp-block-group tables-section" style="margin-bottom: 30px;">` + "\n")
		sb.WriteString(`    <h2 class="wp-block-heading">📊 図表</h2>` + "\n")
		for i, t := range a.Tables {
			if i >= 5 {
				break
			}
			sb.WriteString(RenderTableHTML(t) + "\n")
		}
		sb.WriteString("  </div>\n\n")
	}

	esc := html.EscapeString
	sb.WriteString(`  <div class="wp-block-group paper-info-section" style="background-color: #f8fafc; padding: 20px; border-radius: 8px; border-left: 4px solid #3b82f6;">` + "\n")
	sb.WriteString(`    <h3 class="wp-block-heading">📋 論文情報</h3>` + "\n")
	sb.WriteString(`    <ul class="wp-block-list">` + "\n")
	fmt.Fprintf(&sb, "      <li><strong>タイトル:</strong> %s</li>\n", esc(p.Title))
	fmt.Fprintf(&sb, "      <li><strong>著者:</strong> %s</li>\n", esc(strings.Join(p.Authors, ", ")))
	fmt.Fprintf(&sb, `      <li><strong>arXiv ID:</strong> <a href="https://arxiv.org/abs/%s" target="_blank" rel="noopener">%s</a></li>`+"\n", esc(p.ArxivID), esc(p.ArxivID))
	fmt.Fprintf(&sb, "      <li><strong>カテゴリ:</strong> %s</li>\n", esc(strings.Join(p.Subjects, ", ")))
	fmt.Fprintf(&sb, `      <li><strong>評価スコア:</strong> <span style="background-color: #3b82f6; color: white; padding: 2px 8px; border-radius: 4px;">%d点</span></li>`+"\n", ev.FinalScore)
	sb.WriteString("    </ul>\n  </div>\n</div>")
	return sb.String()
}
