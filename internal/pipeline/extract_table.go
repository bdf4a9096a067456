package pipeline

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mattn/go-runewidth"
)

var (
	reASCIISeparator = regexp.MustCompile(`[-=]{3,}`)
	reASCIIWideGap   = regexp.MustCompile(`\s{3,}`)
	reASCIICellSplit = regexp.MustCompile(`\s{2,}`)
	reASCIIOnlyRule  = regexp.MustCompile(`^[\s\-=+|:]+$`)
)

// tableStructure reads headers and rows from an HTML table. The header row
// comes from thead when present, otherwise from the first row; it is never
// repeated in Rows. Returns nil for a table without rows.
func tableStructure(table *goquery.Selection) *TableData {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil
	}

	headerRow := table.Find("thead tr").First()
	if headerRow.Length() == 0 {
		headerRow = rows.First()
	}

	data := &TableData{Headers: rowCells(headerRow)}
	headerNode := headerRow.Get(0)

	rows.Each(func(_ int, tr *goquery.Selection) {
		if tr.Get(0) == headerNode {
			return
		}
		cells := rowCells(tr)
		if len(cells) > 0 {
			data.Rows = append(data.Rows, cells)
		}
	})

	if len(data.Headers) == 0 && len(data.Rows) == 0 {
		return nil
	}
	return data
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.Find("th, td").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, normalizeWhitespace(td.Text()))
	})
	return cells
}

// isASCIITable reports whether preformatted text looks like a table: more
// than two non-empty lines, a column delimiter and a rule line.
func isASCIITable(text string) bool {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) <= 2 {
		return false
	}

	hasColumns, hasRule := false, false
	for _, l := range lines {
		if strings.Contains(l, "|") || reASCIIWideGap.MatchString(strings.TrimSpace(l)) {
			hasColumns = true
		}
		if reASCIISeparator.MatchString(l) {
			hasRule = true
		}
	}
	return hasColumns && hasRule
}

// ParseASCIITable splits a plain-text table. The header is the line before
// the first rule line; every later non-rule line is a row. Cells are split on
// pipes when present, otherwise on runs of two or more spaces.
func ParseASCIITable(text string) *TableData {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	sep := -1
	for i, l := range lines {
		if reASCIISeparator.MatchString(l) && reASCIIOnlyRule.MatchString(l) {
			sep = i
			break
		}
	}
	if sep < 1 {
		return nil
	}

	data := &TableData{Headers: splitASCIIRow(lines[sep-1])}
	for _, l := range lines[sep+1:] {
		if reASCIIOnlyRule.MatchString(l) {
			continue
		}
		if cells := splitASCIIRow(l); len(cells) > 0 {
			data.Rows = append(data.Rows, cells)
		}
	}
	return data
}

func splitASCIIRow(line string) []string {
	line = strings.TrimSpace(line)
	var parts []string
	if strings.Contains(line, "|") {
		parts = strings.Split(strings.Trim(line, "|"), "|")
	} else {
		parts = reASCIICellSplit.Split(line, -1)
	}

	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

// RenderTableMarkdown renders a table as a padded markdown table, or returns
// the raw text content when no structured data is available.
func RenderTableMarkdown(t Table) string {
	if t.Structured == nil || len(t.Structured.Headers) == 0 {
		return strings.TrimSpace(t.Content)
	}

	colCount := len(t.Structured.Headers)
	for _, r := range t.Structured.Rows {
		if len(r) > colCount {
			colCount = len(r)
		}
	}

	widths := make([]int, colCount)
	measure := func(row []string) {
		for i := 0; i < len(row) && i < colCount; i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.Structured.Headers)
	for _, r := range t.Structured.Rows {
		measure(r)
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	var lines []string
	lines = append(lines, markdownRow(t.Structured.Headers, widths))

	var sep strings.Builder
	sep.WriteString("|")
	for _, w := range widths {
		sep.WriteString(" " + strings.Repeat("-", w) + " |")
	}
	lines = append(lines, sep.String())

	for _, r := range t.Structured.Rows {
		lines = append(lines, markdownRow(r, widths))
	}
	return strings.Join(lines, "\n")
}

func markdownRow(row []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for j, w := range widths {
		cell := ""
		if j < len(row) {
			cell = strings.ReplaceAll(row[j], "|", `\|`)
		}
		sb.WriteString(" " + cell)
		if pad := w - runewidth.StringWidth(cell); pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(" |")
	}
	return sb.String()
}

// RenderTableHTML renders a table as an HTML table. Without structured data
// it falls back to the escaped raw text in a <pre> block.
func RenderTableHTML(t Table) string {
	var sb strings.Builder
	sb.WriteString(`<figure class="wp-block-table">`)

	if t.Structured == nil || (len(t.Structured.Headers) == 0 && len(t.Structured.Rows) == 0) {
		sb.WriteString("<pre>" + html.EscapeString(strings.TrimSpace(t.Content)) + "</pre>")
	} else {
		sb.WriteString("<table>")
		if len(t.Structured.Headers) > 0 {
			sb.WriteString("<thead><tr>")
			for _, h := range t.Structured.Headers {
				sb.WriteString("<th>" + html.EscapeString(h) + "</th>")
			}
			sb.WriteString("</tr></thead>")
		}
		sb.WriteString("<tbody>")
		for _, r := range t.Structured.Rows {
			sb.WriteString("<tr>")
			for _, c := range r {
				sb.WriteString("<td>" + html.EscapeString(c) + "</td>")
			}
			sb.WriteString("</tr>")
		}
		sb.WriteString("</tbody></table>")
	}

	if caption := strings.TrimSpace(t.Number + " " + t.Caption); caption != "" {
		sb.WriteString("<figcaption>" + html.EscapeString(caption) + "</figcaption>")
	}
	sb.WriteString("</figure>")
	return sb.String()
}
