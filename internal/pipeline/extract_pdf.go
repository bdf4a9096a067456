package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	rePDFFigure       = regexp.MustCompile(`Figure\s+(\d+)[:.]?\s*([^\n]+)`)
	rePDFTable        = regexp.MustCompile(`Table\s+(\d+)[:.]?\s*([^\n]+)`)
	rePDFAlgorithm    = regexp.MustCompile(`Algorithm\s+(\d+)[:.]?\s*([^\n]*)`)
	rePDFDisplayMath  = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	rePDFInlineMath   = regexp.MustCompile(`\$([^$\n]{3,})\$`)
	rePDFEnvironment  = regexp.MustCompile(`(?s)\\begin\{(equation|align)\*?\}(.+?)\\end\{(?:equation|align)\*?\}`)
	rePDFHeading      = regexp.MustCompile(`(?m)^\s*(?:\d+\.?\s+)?(Introduction|Related Work|Background|Methodology|Method|Approach|Experiments?|Results?|Discussion|Conclusion|Future Work|Acknowledgments?)\s*$`)
	rePDFAbstractHead = regexp.MustCompile(`(?i)\bAbstract\b`)
)

// pdfText extracts plain text from every readable page of a PDF.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ParsePDFText builds ExtractedContent from the plain text of a paper.
// Figures and tables carry captions only; there is no structured table data.
func ParsePDFText(text string) ExtractedContent {
	content := ExtractedContent{
		FullText: strings.TrimSpace(text),
		Sections: pdfSections(text),
	}

	for _, m := range rePDFFigure.FindAllStringSubmatch(text, -1) {
		content.Figures = append(content.Figures, Figure{
			Number:  "Figure " + m[1],
			Caption: truncateString(strings.TrimSpace(m[2]), maxCaptionRunes),
		})
	}
	content.Figures = MergeFigures(content.Figures)

	for _, m := range rePDFTable.FindAllStringSubmatch(text, -1) {
		content.Tables = append(content.Tables, Table{
			Number:  "Table " + m[1],
			Caption: truncateString(strings.TrimSpace(m[2]), maxCaptionRunes),
			Content: strings.TrimSpace(m[0]),
		})
	}
	content.Tables = MergeTables(content.Tables)

	seenAlg := map[string]bool{}
	for _, m := range rePDFAlgorithm.FindAllStringSubmatch(text, -1) {
		number := "Algorithm " + m[1]
		if seenAlg[number] {
			continue
		}
		seenAlg[number] = true
		content.Algorithms = append(content.Algorithms, Algorithm{
			Number:  number,
			Title:   strings.TrimSpace(m[2]),
			Content: strings.TrimSpace(m[0]),
		})
	}

	content.Equations = pdfEquations(text)
	content.Abstract = pdfAbstract(text)
	deriveSectionFields(&content)
	return content
}

func pdfEquations(text string) []Equation {
	var out []Equation
	seen := map[string]bool{}
	add := func(latex string, start, end int, display bool) {
		latex = strings.TrimSpace(latex)
		if len([]rune(latex)) <= 2 || seen[latex] {
			return
		}
		seen[latex] = true
		out = append(out, Equation{
			LaTeX:         latex,
			Context:       surrounding(text, start, end, equationContext),
			IsDisplayMode: display,
		})
	}

	for _, loc := range rePDFDisplayMath.FindAllStringSubmatchIndex(text, -1) {
		add(text[loc[2]:loc[3]], loc[0], loc[1], true)
	}
	for _, loc := range rePDFEnvironment.FindAllStringSubmatchIndex(text, -1) {
		add(text[loc[4]:loc[5]], loc[0], loc[1], true)
	}
	// $$..$$ の内側を拾わないよう、表示数式を除いたテキストで探す
	inlineText := rePDFDisplayMath.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
	for _, loc := range rePDFInlineMath.FindAllStringSubmatchIndex(inlineText, -1) {
		add(inlineText[loc[2]:loc[3]], loc[0], loc[1], false)
	}
	return out
}

// surrounding returns up to n bytes of text on each side of [start, end),
// trimmed to valid rune boundaries.
func surrounding(text string, start, end, n int) string {
	from := start - n
	if from < 0 {
		from = 0
	}
	to := end + n
	if to > len(text) {
		to = len(text)
	}
	return normalizeWhitespace(strings.ToValidUTF8(text[from:to], ""))
}

func pdfSections(text string) map[string]string {
	sections := map[string]string{}
	locs := rePDFHeading.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		name := text[loc[2]:loc[3]]
		if _, ok := sections[name]; ok {
			continue
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if body := cleanExtractedText(text[loc[1]:end]); body != "" {
			sections[name] = body
		}
	}
	return sections
}

// pdfAbstract returns the text between "Abstract" and the first section heading.
func pdfAbstract(text string) string {
	loc := rePDFAbstractHead.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if h := rePDFHeading.FindStringIndex(rest); h != nil {
		rest = rest[:h[0]]
	}
	return normalizeWhitespace(strings.TrimLeft(rest, " :.\n"))
}
