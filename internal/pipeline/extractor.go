// =============================================================================
// extractor.go - 論文本文の取得元フォールバック
// =============================================================================
//
// 論文IDから本文を取得し、ExtractedContent を返します。
//
// 【取得元の優先順位】
//
// 優先度1: arXiv HTML（https://arxiv.org/html/<id>v1）
//     ↓ 取得失敗 or 何も抽出できない
// 優先度2: ar5iv（https://ar5iv.labs.arxiv.org/html/<id>）
//     ↓
// 優先度3: PDF（https://arxiv.org/pdf/<id>.pdf）
//     ↓
// 全て失敗: 空の ExtractedContent（エラーは返さない）
//
// 【その他】
//   - SKIP_HTML_PARSING=true で抽出自体を無効化
//   - redis キャッシュが設定されていれば結果を再利用
//   - 同じ論文への同時リクエストは singleflight で1回にまとめる
//
// =============================================================================
package pipeline

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"
)

// contentSource は1つの取得元
type contentSource struct {
	name  string
	fetch func(ctx context.Context, arxivID string) (ExtractedContent, error)
}

// Extractor は取得元を順に試して本文を抽出する
type Extractor struct {
	cfg      ExtractConfig
	fetch    FetchConfig
	throttle *Throttle
	cache    ContentCache
	sources  []contentSource
	group    singleflight.Group
}

// NewExtractor は設定から抽出器を作成する（cache は nil 可）
func NewExtractor(cfg ExtractConfig, throttle *Throttle, cache ContentCache) *Extractor {
	if cache == nil {
		cache = noopCache{}
	}
	e := &Extractor{
		cfg:      cfg,
		fetch:    NewFetchConfig(cfg.UserAgent, cfg.Timeout),
		throttle: throttle,
		cache:    cache,
	}
	e.sources = []contentSource{
		{name: "arxiv-html", fetch: e.htmlSource(func(id string) string { return joinURL(cfg.HTMLBaseURL, id+"v1") })},
		{name: "ar5iv", fetch: e.htmlSource(func(id string) string { return joinURL(cfg.Ar5ivBaseURL, id) })},
	}
	if cfg.PDFEnabled {
		e.sources = append(e.sources, contentSource{name: "pdf", fetch: e.fetchPDF})
	}
	return e
}

// Enabled は抽出が有効かどうかを返す
func (e *Extractor) Enabled() bool {
	return e != nil && !e.cfg.Skip
}

// Extract は論文本文を抽出する。失敗しても空の結果を返す。
func (e *Extractor) Extract(ctx context.Context, arxivID string) ExtractedContent {
	if !e.Enabled() {
		debugf("extraction skipped for %s (SKIP_HTML_PARSING)", arxivID)
		return ExtractedContent{}
	}

	// 束ねられた他の呼び出し元がいるため、最初の呼び出し元のキャンセルは伝播させない
	v, _, _ := e.group.Do(arxivID, func() (interface{}, error) {
		return e.extract(context.WithoutCancel(ctx), arxivID), nil
	})
	return v.(ExtractedContent)
}

func (e *Extractor) extract(ctx context.Context, arxivID string) ExtractedContent {
	if cached, ok, err := e.cache.Get(ctx, arxivID); err != nil {
		warnf("content cache read failed for %s: %v", arxivID, err)
	} else if ok {
		debugf("content cache hit for %s", arxivID)
		return cached
	}

	for _, src := range e.sources {
		content, err := src.fetch(ctx, arxivID)
		if err != nil {
			warnf("%s extraction failed for %s: %v", src.name, arxivID, err)
			continue
		}
		if !hasUsableContent(content) {
			infof("%s returned no usable content for %s", src.name, arxivID)
			continue
		}

		content.Source = src.name
		infof("extracted %s via %s: %d figures, %d tables, %d equations, %d sections",
			arxivID, src.name, len(content.Figures), len(content.Tables), len(content.Equations), len(content.Sections))

		if err := e.cache.Set(ctx, arxivID, content); err != nil {
			warnf("content cache write failed for %s: %v", arxivID, err)
		}
		return content
	}

	warnf("all extraction sources failed for %s", arxivID)
	return ExtractedContent{}
}

// hasUsableContent は図・表・セクション・アブストラクトのいずれかがあるか
func hasUsableContent(c ExtractedContent) bool {
	return len(c.Figures) > 0 || len(c.Tables) > 0 || len(c.Sections) > 0 || c.Abstract != ""
}

func (e *Extractor) htmlSource(pageURL func(id string) string) func(context.Context, string) (ExtractedContent, error) {
	return func(ctx context.Context, arxivID string) (ExtractedContent, error) {
		if err := e.throttle.Wait(ctx); err != nil {
			return ExtractedContent{}, err
		}
		doc, finalURL, err := fetchDoc(ctx, pageURL(arxivID), e.fetch)
		if err != nil {
			return ExtractedContent{}, err
		}
		return ParseHTMLContent(doc, directoryURL(finalURL)), nil
	}
}

func (e *Extractor) fetchPDF(ctx context.Context, arxivID string) (ExtractedContent, error) {
	if err := e.throttle.Wait(ctx); err != nil {
		return ExtractedContent{}, err
	}
	data, err := fetchBytes(ctx, joinURL(e.cfg.PDFBaseURL, arxivID+".pdf"), "application/pdf", e.fetch)
	if err != nil {
		return ExtractedContent{}, err
	}
	text, err := pdfText(data)
	if err != nil {
		return ExtractedContent{}, err
	}
	return ParsePDFText(text), nil
}

// ParseHTMLString は HTML 文字列を解析する（テスト・CLI用）
func ParseHTMLString(htmlText, pageURL string) (ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return ExtractedContent{}, err
	}
	return ParseHTMLContent(doc, pageURL), nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// =============================================================================
// 抽出結果のサマリー（/api/test-extraction 用）
// =============================================================================

// ExtractionInfo は抽出結果の概要
type ExtractionInfo struct {
	FiguresWithImages []FigureSummary `json:"figuresWithImages"`
	StructuredTables  []TableSummary  `json:"structuredTables"`
	Stats             ExtractionStats `json:"extractionStats"`
}

// FigureSummary は図1件の概要
type FigureSummary struct {
	FigureNumber string `json:"figureNumber"`
	Caption      string `json:"caption"`
	ImageURL     string `json:"imageUrl,omitempty"`
	HasImage     bool   `json:"hasImage"`
}

// TableSummary は構造化できた表1件の概要
type TableSummary struct {
	TableNumber string     `json:"tableNumber"`
	Caption     string     `json:"caption"`
	Headers     []string   `json:"headers"`
	RowCount    int        `json:"rowCount"`
	ColumnCount int        `json:"columnCount"`
	SampleData  [][]string `json:"sampleData"`
}

// ExtractionStats は件数の集計
type ExtractionStats struct {
	TotalFigures        int `json:"totalFigures"`
	FiguresWithImages   int `json:"figuresWithImages"`
	TotalTables         int `json:"totalTables"`
	TablesWithStructure int `json:"tablesWithStructure"`
	TotalEquations      int `json:"totalEquations"`
	TotalAlgorithms     int `json:"totalAlgorithms"`
}

// DescribeExtraction は抽出結果から概要を作る
func DescribeExtraction(c ExtractedContent) ExtractionInfo {
	info := ExtractionInfo{
		FiguresWithImages: []FigureSummary{},
		StructuredTables:  []TableSummary{},
		Stats: ExtractionStats{
			TotalFigures:    len(c.Figures),
			TotalTables:     len(c.Tables),
			TotalEquations:  len(c.Equations),
			TotalAlgorithms: len(c.Algorithms),
		},
	}

	for _, f := range c.Figures {
		if f.ImageURL == "" {
			continue
		}
		info.Stats.FiguresWithImages++
		info.FiguresWithImages = append(info.FiguresWithImages, FigureSummary{
			FigureNumber: f.Number,
			Caption:      f.Caption,
			ImageURL:     f.ImageURL,
			HasImage:     true,
		})
	}

	for _, t := range c.Tables {
		if t.Structured == nil {
			continue
		}
		info.Stats.TablesWithStructure++
		cols := len(t.Structured.Headers)
		for _, r := range t.Structured.Rows {
			if len(r) > cols {
				cols = len(r)
			}
		}
		sample := t.Structured.Rows
		if len(sample) > 3 {
			sample = sample[:3]
		}
		info.StructuredTables = append(info.StructuredTables, TableSummary{
			TableNumber: t.Number,
			Caption:     t.Caption,
			Headers:     t.Structured.Headers,
			RowCount:    len(t.Structured.Rows),
			ColumnCount: cols,
			SampleData:  sample,
		})
	}
	return info
}
