// =============================================================================
// extract.go - HTML本文抽出
// =============================================================================
//
// arXiv HTML（LaTeXML出力）/ ar5iv のページから、論文の構造化データを抽出します。
//
// 【抽出パス】（各パスは独立に実行）
//   - セクション:   見出し（h1〜h4, .ltx_title_section 等）から次の見出しまで
//   - 図:           4つの戦略を優先度順に実行し、図番号で重複排除
//   - 表:           3つの戦略を優先度順に実行し、表番号で重複排除
//   - 数式:         .ltx_Math / .MathJax / .katex / math
//   - アルゴリズム: .ltx_theorem_algorithm / .algorithm / "Algorithm" を含むdiv
//   - アブストラクト
//
// 【図の抽出戦略】（優先度順、先に見つかったものが優先）
//
// 優先度1: <figure> + <figcaption>（"Figure N: ..." 形式）
//     ↓
// 優先度2: div.figure / .ltx_figure コンテナのテキスト
//     ↓
// 優先度3: "Figure" を含む div / p のテキスト
//     ↓
// 優先度4: img の alt 属性（"Fig. N" は "Figure N" に正規化）
//
// 【表の抽出戦略】
//
// 優先度1: <table>（caption / 親のキャプション / 直前の兄弟要素）
//         .ltx_equation などの数式レイアウト用 table は除外。番号のない表は末尾に回す
//     ↓
// 優先度2: div.table / .ltx_table コンテナ
//     ↓
// 優先度3: <pre> 内のASCII表（直前の兄弟に "Table N" が必須）
//
// 抽出は純粋関数（goquery.Document → ExtractedContent）なので、
// ネットワークなしでテストできます。
//
// =============================================================================
package pipeline

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultImageBase = "https://arxiv.org/"
	maxCaptionRunes  = 500
	equationContext  = 200

	equationTableSelector = ".ltx_equation, .ltx_equationgroup, .ltx_eqn_table"
)

var (
	reFigcaption     = regexp.MustCompile(`(?i)^(Figure\s+\d+)[:.]?\s*(.*)`)
	reFigureBlock    = regexp.MustCompile(`(Figure\s+\d+)[:.]?\s*([^\n]+)`)
	reFigureMention  = regexp.MustCompile(`(Figure\s+\d+)[:.]?\s*([^\n.]{10,})`)
	reFigureAlt      = regexp.MustCompile(`(Figure\s+\d+|Fig\.\s*\d+)[:.]?\s*(.*)`)
	reTableCaption   = regexp.MustCompile(`(Table\s+\d+)[:.]?\s*(.*)`)
	reTableBlock     = regexp.MustCompile(`(Table\s+\d+)[:.]?\s*([^\n]+)`)
	reTableMention   = regexp.MustCompile(`Table\s+\d+`)
	reAlgorithmBlock = regexp.MustCompile(`(Algorithm\s+\d+)[:.]?\s*([^\n]*)`)
	reSectionHeading = regexp.MustCompile(`^\d*\.?\s*(Introduction|Related Work|Background|Methodology|Method|Approach|Experiments?|Results?|Discussion|Conclusion|Future Work|Acknowledgments?)`)
	reAbstractPrefix = regexp.MustCompile(`^(?i)Abstract\s*[:.]?\s*`)
	reNumber         = regexp.MustCompile(`\d+`)
)

const headingSelector = "h1, h2, h3, h4, .ltx_title_section, .ltx_title_subsection"

// figureStrategy は図抽出の1戦略
type figureStrategy func(doc *goquery.Document, imageBase string) []Figure

// tableStrategy は表抽出の1戦略
type tableStrategy func(doc *goquery.Document) []Table

// 優先度順
var (
	figureStrategies = []figureStrategy{figuresFromFigcaption, figuresFromContainers, figuresFromMentions, figuresFromImageAlt}
	tableStrategies  = []tableStrategy{tablesFromTableElements, tablesFromContainers, tablesFromPreformatted}
)

// ParseHTMLContent は論文ページのDOMから ExtractedContent を作る
//
// pageURL は相対画像URLの解決に使う（<base href> があればそちらを優先）。
func ParseHTMLContent(doc *goquery.Document, pageURL string) ExtractedContent {
	imageBase := imageBaseURL(doc, pageURL)

	figurePasses := make([][]Figure, 0, len(figureStrategies))
	for _, s := range figureStrategies {
		figurePasses = append(figurePasses, s(doc, imageBase))
	}
	tablePasses := make([][]Table, 0, len(tableStrategies))
	for _, s := range tableStrategies {
		tablePasses = append(tablePasses, s(doc))
	}

	sections := extractSections(doc)
	content := ExtractedContent{
		FullText:   cleanExtractedText(doc.Find("body").Text()),
		Abstract:   extractAbstract(doc),
		Sections:   sections,
		Figures:    MergeFigures(figurePasses...),
		Tables:     MergeTables(tablePasses...),
		Equations:  extractEquations(doc),
		Algorithms: extractAlgorithms(doc),
	}
	deriveSectionFields(&content)
	return content
}

// deriveSectionFields はセクションから手法・実験・結果を埋める
func deriveSectionFields(c *ExtractedContent) {
	c.Methodology = firstSection(c.Sections, "Methodology", "Method", "Approach")
	c.Experiments = firstSection(c.Sections, "Experiments", "Experiment")
	c.Results = firstSection(c.Sections, "Results", "Result")
}

func firstSection(sections map[string]string, names ...string) string {
	for _, n := range names {
		if s := sections[n]; s != "" {
			return s
		}
	}
	return ""
}

// -----------------------------------------------------------------------------
// マージ（番号キーで先勝ち）
// -----------------------------------------------------------------------------

// MergeFigures は複数パスの結果を図番号で重複排除して結合する
//
// 同じ番号が複数パスに現れた場合、先のパス（優先度が高い方）を残す。
// 番号のない図は捨てる。
func MergeFigures(passes ...[]Figure) []Figure {
	seen := map[string]bool{}
	var out []Figure
	for _, pass := range passes {
		for _, f := range pass {
			key := canonicalNumber("Figure", f.Number)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			f.Number = key
			out = append(out, f)
		}
	}
	return out
}

// MergeTables は複数パスの結果を表番号で重複排除して結合する
//
// 番号のない表は番号キーの重複排除に参加せず、本文で重複排除して末尾に並べる。
func MergeTables(passes ...[]Table) []Table {
	seen := map[string]bool{}
	seenContent := map[string]bool{}
	var out, unnumbered []Table
	for _, pass := range passes {
		for _, t := range pass {
			key := canonicalNumber("Table", t.Number)
			if key == "" {
				if t.Content == "" || seenContent[t.Content] {
					continue
				}
				seenContent[t.Content] = true
				t.Number = ""
				unnumbered = append(unnumbered, t)
				continue
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			t.Number = key
			out = append(out, t)
		}
	}
	return append(out, unnumbered...)
}

// canonicalNumber は "Fig. 3" / "figure  3" を "Figure 3" に揃える
func canonicalNumber(kind, raw string) string {
	n := reNumber.FindString(raw)
	if n == "" {
		return ""
	}
	return kind + " " + n
}

// -----------------------------------------------------------------------------
// 図の抽出戦略
// -----------------------------------------------------------------------------

func figuresFromFigcaption(doc *goquery.Document, imageBase string) []Figure {
	var out []Figure
	doc.Find("figure").Each(func(_ int, fig *goquery.Selection) {
		caption := normalizeWhitespace(fig.ChildrenFiltered("figcaption").First().Text())
		if caption == "" {
			caption = normalizeWhitespace(fig.Find("figcaption").First().Text())
		}
		m := reFigcaption.FindStringSubmatch(caption)
		if m == nil {
			return
		}
		out = append(out, Figure{
			Number:   m[1],
			Caption:  truncateString(strings.TrimSpace(m[2]), maxCaptionRunes),
			ImageURL: imageURL(fig.Find("img").First(), imageBase),
		})
	})
	return out
}

func figuresFromContainers(doc *goquery.Document, imageBase string) []Figure {
	var out []Figure
	doc.Find("div.figure, div.ltx_figure, .ltx_figure").Each(func(_ int, s *goquery.Selection) {
		m := reFigureBlock.FindStringSubmatch(s.Text())
		if m == nil {
			return
		}
		out = append(out, Figure{
			Number:   m[1],
			Caption:  truncateString(normalizeWhitespace(m[2]), maxCaptionRunes),
			ImageURL: imageURL(s.Find("img").First(), imageBase),
		})
	})
	return out
}

func figuresFromMentions(doc *goquery.Document, _ string) []Figure {
	var out []Figure
	doc.Find(`div:contains("Figure"), p:contains("Figure")`).Each(func(_ int, s *goquery.Selection) {
		// 図本体は優先度1・2で扱う
		if s.Find("figure, div").Length() > 0 {
			return
		}
		m := reFigureMention.FindStringSubmatch(s.Text())
		if m == nil {
			return
		}
		out = append(out, Figure{
			Number:  m[1],
			Caption: truncateString(normalizeWhitespace(m[2]), maxCaptionRunes),
		})
	})
	return out
}

func figuresFromImageAlt(doc *goquery.Document, imageBase string) []Figure {
	var out []Figure
	doc.Find(`img[alt*="Figure"], img[alt*="Fig"]`).Each(func(_ int, img *goquery.Selection) {
		alt, _ := img.Attr("alt")
		m := reFigureAlt.FindStringSubmatch(alt)
		if m == nil {
			return
		}
		out = append(out, Figure{
			Number:   canonicalNumber("Figure", m[1]),
			Caption:  truncateString(normalizeWhitespace(m[2]), maxCaptionRunes),
			ImageURL: imageURL(img, imageBase),
		})
	})
	return out
}

// imageBaseURL は <base href> → ページURL → arxiv.org の順で基準URLを決める
func imageBaseURL(doc *goquery.Document, pageURL string) string {
	base := pageURL
	if base == "" {
		base = defaultImageBase
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved := resolveURL(base, href); resolved != "" {
			return resolved
		}
	}
	return base
}

func imageURL(img *goquery.Selection, base string) string {
	src, ok := img.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return ""
	}
	return resolveURL(base, src)
}

// -----------------------------------------------------------------------------
// 表の抽出戦略
// -----------------------------------------------------------------------------

func tablesFromTableElements(doc *goquery.Document) []Table {
	var out []Table
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		// 入れ子の表は外側の表で扱う
		if table.ParentsFiltered("table").Length() > 0 {
			return
		}
		// LaTeXML は数式番号のレイアウトに table を使う
		if table.Is(equationTableSelector) || table.ParentsFiltered(equationTableSelector).Length() > 0 {
			return
		}

		number, caption := splitTableCaption(tableCaption(table))
		structured := tableStructure(table)
		if caption == "" && number == "" && structured == nil {
			return
		}
		out = append(out, Table{
			Number:     number,
			Caption:    caption,
			Content:    cleanExtractedText(table.Text()),
			Structured: structured,
		})
	})
	return out
}

// tableCaption は表のキャプションを探す
//
//	<caption> → 囲む<figure>の<figcaption> → 親の直前キャプション → 直前の兄弟（最大3つ）
func tableCaption(table *goquery.Selection) string {
	if c := normalizeWhitespace(table.Find("caption").First().Text()); c != "" {
		return c
	}
	if c := normalizeWhitespace(table.Closest("figure").Find("figcaption").First().Text()); c != "" {
		return c
	}
	if c := normalizeWhitespace(table.Parent().PrevAllFiltered(".ltx_caption, .caption").First().Text()); c != "" {
		return c
	}

	prev := table.Prev()
	for i := 0; i < 3 && prev.Length() > 0; i++ {
		text := normalizeWhitespace(prev.Text())
		if reTableMention.MatchString(text) {
			return text
		}
		prev = prev.Prev()
	}
	return ""
}

// splitTableCaption は "Table 2: Results on X" を番号と本文に分ける
func splitTableCaption(caption string) (number, text string) {
	if m := reTableCaption.FindStringSubmatch(caption); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return "", caption
}

func tablesFromContainers(doc *goquery.Document) []Table {
	var out []Table
	doc.Find(`div.table, .ltx_table, div:contains("Table")`).Each(func(_ int, s *goquery.Selection) {
		m := reTableBlock.FindStringSubmatch(s.Text())
		if m == nil {
			return
		}
		t := Table{
			Number:  m[1],
			Caption: truncateString(normalizeWhitespace(m[2]), maxCaptionRunes),
			Content: cleanExtractedText(s.Text()),
		}
		if inner := s.Find("table").First(); inner.Length() > 0 {
			t.Structured = tableStructure(inner)
		}
		out = append(out, t)
	})
	return out
}

func tablesFromPreformatted(doc *goquery.Document) []Table {
	var out []Table
	doc.Find("pre").Each(func(_ int, pre *goquery.Selection) {
		text := pre.Text()
		if !isASCIITable(text) {
			return
		}
		number, caption := splitTableCaption(normalizeWhitespace(pre.Prev().Text()))
		if number == "" {
			return
		}
		out = append(out, Table{
			Number:     number,
			Caption:    caption,
			Content:    strings.TrimSpace(text),
			Structured: ParseASCIITable(text),
		})
	})
	return out
}

// -----------------------------------------------------------------------------
// 数式・アルゴリズム・セクション・アブストラクト
// -----------------------------------------------------------------------------

func extractEquations(doc *goquery.Document) []Equation {
	var out []Equation
	seen := map[string]bool{}
	doc.Find(".ltx_Math, .MathJax, .katex, math").Each(func(_ int, s *goquery.Selection) {
		latex, ok := s.Attr("alttext")
		if !ok || strings.TrimSpace(latex) == "" {
			latex, ok = s.Attr("alt")
		}
		if !ok || strings.TrimSpace(latex) == "" {
			latex = s.Text()
		}
		latex = strings.TrimSpace(latex)
		if len([]rune(latex)) <= 2 || seen[latex] {
			return
		}
		seen[latex] = true

		display, _ := s.Attr("display")
		out = append(out, Equation{
			LaTeX:         latex,
			Context:       firstRunes(normalizeWhitespace(s.Closest("p, div, section").Text()), equationContext),
			IsDisplayMode: s.HasClass("ltx_Math_display") || display == "block" || s.Closest(".ltx_equation, .equation").Length() > 0,
		})
	})
	return out
}

func extractAlgorithms(doc *goquery.Document) []Algorithm {
	var out []Algorithm
	seen := map[string]bool{}
	doc.Find(`.ltx_theorem_algorithm, .algorithm, div:contains("Algorithm")`).Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		m := reAlgorithmBlock.FindStringSubmatch(text)
		if m == nil {
			return
		}
		number := canonicalNumber("Algorithm", m[1])
		if seen[number] {
			return
		}
		seen[number] = true
		out = append(out, Algorithm{
			Number:  number,
			Title:   normalizeWhitespace(m[2]),
			Content: cleanExtractedText(text),
		})
	})
	return out
}

// extractSections は既知の見出し名ごとに本文を集める（同名は最初のみ）
func extractSections(doc *goquery.Document) map[string]string {
	sections := map[string]string{}
	doc.Find(headingSelector).Each(func(_ int, h *goquery.Selection) {
		m := reSectionHeading.FindStringSubmatch(normalizeWhitespace(h.Text()))
		if m == nil {
			return
		}
		name := m[1]
		if _, ok := sections[name]; ok {
			return
		}
		var parts []string
		h.NextUntil(headingSelector).Each(func(_ int, s *goquery.Selection) {
			if t := cleanExtractedText(s.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) > 0 {
			sections[name] = strings.Join(parts, "\n")
		}
	})
	return sections
}

func extractAbstract(doc *goquery.Document) string {
	if s := doc.Find(".ltx_abstract, .abstract").First(); s.Length() > 0 {
		return stripAbstractPrefix(s.Text())
	}

	// "Abstract" を含む要素のうち、最も内側（テキストが最短）のもの
	best := ""
	doc.Find(`div:contains("Abstract"), section:contains("Abstract")`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if best == "" || len(text) < len(best) {
			best = text
		}
	})
	return stripAbstractPrefix(best)
}

func stripAbstractPrefix(s string) string {
	return reAbstractPrefix.ReplaceAllString(normalizeWhitespace(s), "")
}
