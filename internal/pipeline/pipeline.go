// =============================================================================
// pipeline.go - 処理全体の組み立て
// =============================================================================
//
// 各コンポーネントを接続し、HTTP・CLI・Lambdaから呼ばれる操作を提供します。
//
// 【日次処理の流れ】（EvaluatePapersWithArticles）
//
//	1. arXivから指定日の論文を取得（カテゴリごと、ページング）
//	2. 1件ずつLLMで採点（失敗した論文はスキップ）
//	3. スコア降順に並べて上位N件を選ぶ
//	4. 上位論文の本文を抽出し、解説記事を生成
//	5. （指定時）WordPressに投稿
//	6. （設定時）Notionに評価結果をクリップ、S3に実行結果を保存
//
// 【省略可能な部品】
//   台帳・キャッシュ・Notion・S3 は設定がなければ nil のまま動作します。
//
// =============================================================================
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Pipeline は全コンポーネントを保持する
type Pipeline struct {
	cfg       *Config
	throttles Throttles

	arxiv     *ArxivClient
	extractor *Extractor
	scorer    *Scorer
	generator *Generator
	publisher *Publisher

	ledger   *Ledger
	notion   *NotionClipper
	archiver *S3Archiver
}

// NewPipeline は設定から全コンポーネントを作成する
//
// 台帳ファイルを開くため、使い終わったら Close を呼ぶこと。
func NewPipeline(cfg *Config) (*Pipeline, error) {
	throttles := NewThrottles(cfg.Throttle)
	llm := NewChatClient(cfg.OpenAI, throttles.LLM)
	return NewPipelineWith(cfg, throttles, llm)
}

// NewPipelineWith は LLM クライアントを指定して作成する
func NewPipelineWith(cfg *Config, throttles Throttles, llm Completer) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, throttles: throttles}

	p.arxiv = NewArxivClient(cfg.ArXiv, throttles.ArXiv)
	p.extractor = NewExtractor(cfg.Extract, throttles.HTML, NewContentCache(cfg.Cache))
	p.scorer = NewScorer(llm, cfg.OpenAI)
	p.generator = NewGenerator(llm, cfg.OpenAI, p.extractor)

	var ledger PostLedger
	if cfg.Ledger.Path != "" {
		l, err := OpenLedger(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		p.ledger = l
		ledger = l
	}
	p.publisher = NewPublisher(cfg.WordPress, throttles.WordPress, ledger)

	if cfg.Notion.Token != "" {
		nc, err := NewNotionClipper(cfg.Notion.Token, cfg.Notion.DatabaseID)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.notion = nc
	}

	archiver, err := NewS3Archiver(cfg.Archive)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.archiver = archiver

	return p, nil
}

// Close は台帳を閉じる
func (p *Pipeline) Close() error {
	if p.ledger != nil {
		return p.ledger.Close()
	}
	return nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() *Config { return p.cfg }

// Ledger returns the post ledger, or nil when none is configured.
func (p *Pipeline) Ledger() *Ledger { return p.ledger }

// =============================================================================
// 評価
// =============================================================================

// EvaluateURL は arXiv URL または ID で指定した1件を採点する
func (p *Pipeline) EvaluateURL(ctx context.Context, arxivURL string) (PaperEvaluationResult, error) {
	if _, err := ExtractArxivID(arxivURL); err != nil {
		return PaperEvaluationResult{}, err
	}
	paper, err := p.arxiv.FetchPaperInfo(ctx, arxivURL)
	if err != nil {
		return PaperEvaluationResult{}, err
	}
	return p.scorer.Evaluate(ctx, paper)
}

// EvaluatePapersByDate は指定日の論文を採点し、スコア上位N件を返す
//
// 個別の採点失敗はログに残してスキップする。
func (p *Pipeline) EvaluatePapersByDate(ctx context.Context, date string, debug bool) ([]PaperEvaluationResult, error) {
	if !IsValidDate(date) {
		return nil, fmt.Errorf("invalid date %q: %w", date, ErrInvalidDate)
	}

	papers, err := p.arxiv.FetchPapersByDate(ctx, date, debug)
	if err != nil {
		return nil, err
	}
	infof("evaluating %d papers for %s", len(papers), date)

	results := make([]PaperEvaluationResult, 0, len(papers))
	for _, paper := range papers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		start := time.Now()
		r, err := p.scorer.Evaluate(ctx, paper)
		if err != nil {
			warnf("Failed to evaluate paper %s: %v", paper.ArxivID, err)
			continue
		}
		debugf("evaluation of %s took %s", paper.ArxivID, time.Since(start).Round(time.Millisecond))
		results = append(results, r)
	}

	return TopResults(results, p.cfg.ArXiv.TopN), nil
}

// ErrInvalidDate は YYYY-MM-DD でない日付に対するエラー
var ErrInvalidDate = errors.New("Invalid date format. Use YYYY-MM-DD")

// TopResults はスコア降順（同点は取得順）で上位 n 件を返す。n<=0 は全件。
func TopResults(results []PaperEvaluationResult, n int) []PaperEvaluationResult {
	sorted := make([]PaperEvaluationResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FormattedOutput.Point > sorted[j].FormattedOutput.Point
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// EvaluatePapersWithArticles は採点・記事生成・（任意で）投稿までを行う
func (p *Pipeline) EvaluatePapersWithArticles(ctx context.Context, date string, debug, postToWordPress bool) (DateEvaluationResponse, error) {
	resp := DateEvaluationResponse{Date: date, RunID: NewRunID()}

	results, err := p.EvaluatePapersByDate(ctx, date, debug)
	if err != nil {
		return DateEvaluationResponse{}, err
	}
	resp.Results = results
	resp.TotalPapers = len(results)

	resp.Articles = p.generator.GenerateArticlesForPapers(ctx, results)

	postURLs := map[string]string{}
	if postToWordPress && len(resp.Articles) > 0 {
		resp.Publications = p.PublishArticles(ctx, resp.Articles, p.cfg.Publish.Delay, p.cfg.Publish.Status)
		for i, pub := range resp.Publications {
			if pub.Success && i < len(resp.Articles) {
				postURLs[resp.Articles[i].Paper.ArxivID] = pub.PostURL
			}
		}
	}
	resp.WordPressPosted = postToWordPress
	resp.Success = true

	if p.notion != nil {
		n := p.notion.ClipEvaluations(ctx, results, postURLs)
		infof("clipped %d/%d evaluations to Notion", n, len(results))
	}
	if _, err := p.archiver.ArchiveRun(ctx, &resp); err != nil {
		warnf("%v", err)
	}
	return resp, nil
}

// =============================================================================
// 投稿・テスト
// =============================================================================

// PublishArticles は環境設定の WordPress に記事を投稿する
func (p *Pipeline) PublishArticles(ctx context.Context, articles []ArticleGenerationResult, delay time.Duration, status string) []PublishResult {
	return p.publisher.PublishMultipleArticles(ctx, articles, delay, status)
}

// Publisher returns a publisher for cfg. Empty fields of cfg fall back to
// the configured WordPress settings.
func (p *Pipeline) Publisher(cfg WordPressConfig) *Publisher {
	merged := cfg.Merge(p.cfg.WordPress)
	if merged == p.cfg.WordPress {
		return p.publisher
	}
	var ledger PostLedger
	if p.ledger != nil {
		ledger = p.ledger
	}
	return NewPublisher(merged, p.throttles.WordPress, ledger)
}

// WordPressConfig returns the configured WordPress settings.
func (p *Pipeline) WordPressConfig() WordPressConfig { return p.cfg.WordPress }

// PublishWith は指定した接続先に記事を投稿する
//
// 1件だけの場合は待機なしで投稿し、ArticleID に arXiv ID を入れる。
func (p *Pipeline) PublishWith(ctx context.Context, cfg WordPressConfig, articles []ArticleGenerationResult, delay time.Duration, status string) []PublishResult {
	pub := p.Publisher(cfg)
	if len(articles) == 1 {
		res := pub.PublishArticle(ctx, articles[0], status)
		res.ArticleID = articles[0].Paper.ArxivID
		return []PublishResult{res}
	}
	return pub.PublishMultipleArticles(ctx, articles, delay, status)
}

// TestConnection はサイト情報の取得で接続を確認する
func (p *Pipeline) TestConnection(ctx context.Context, cfg WordPressConfig) (SiteInfo, error) {
	return p.Publisher(cfg).TestConnection(ctx)
}

// TestWordPress は WordPress への接続を詳細に確認する
func (p *Pipeline) TestWordPress(ctx context.Context, cfg WordPressConfig) DetailedTestResult {
	return p.Publisher(cfg).TestConnectionDetailed(ctx)
}

// ExtractionReport は本文抽出テストの結果
type ExtractionReport struct {
	ArxivID         string          `json:"arxivId"`
	ExtractionInfo  ExtractionInfo  `json:"extractionInfo"`
	BasicInfo       BasicInfo       `json:"basicInfo"`
	DetailedResults DetailedResults `json:"detailedResults"`
}

// BasicInfo は抽出本文の概要
type BasicInfo struct {
	Abstract       string   `json:"abstract"`
	SectionsFound  []string `json:"sectionsFound"`
	FullTextLength int      `json:"fullTextLength"`
	Source         string   `json:"source,omitempty"`
}

// DetailedResults は図・表・数式の詳細（表は先頭3行、数式は先頭5件）
type DetailedResults struct {
	Figures   []Figure        `json:"figures"`
	Tables    []TableSnapshot `json:"tables"`
	Equations []Equation      `json:"equations"`
}

// TableSnapshot は表と構造化データの先頭行
type TableSnapshot struct {
	Table
	SampleRows [][]string `json:"sampleRows,omitempty"`
}

// TestExtraction は1件の論文について抽出結果を返す
//
// 抽出は失敗してもエラーにならないため、空の結果が返ることがある。
func (p *Pipeline) TestExtraction(ctx context.Context, arxivID string) (ExtractionReport, error) {
	if arxivID == "" {
		return ExtractionReport{}, errors.New("arxivId is required")
	}
	if ctx.Err() != nil {
		return ExtractionReport{}, ctx.Err()
	}
	return BuildExtractionReport(arxivID, p.extractor.Extract(ctx, arxivID)), nil
}

// BuildExtractionReport は抽出結果からレポートを作る
func BuildExtractionReport(arxivID string, c ExtractedContent) ExtractionReport {
	sections := make([]string, 0, len(c.Sections))
	for name := range c.Sections {
		sections = append(sections, name)
	}
	sort.Strings(sections)

	tables := make([]TableSnapshot, 0, len(c.Tables))
	for _, t := range c.Tables {
		snap := TableSnapshot{Table: t}
		if t.Structured != nil {
			rows := t.Structured.Rows
			if len(rows) > 3 {
				rows = rows[:3]
			}
			snap.SampleRows = rows
		}
		tables = append(tables, snap)
	}

	equations := c.Equations
	if len(equations) > 5 {
		equations = equations[:5]
	}
	if equations == nil {
		equations = []Equation{}
	}
	figures := c.Figures
	if figures == nil {
		figures = []Figure{}
	}

	return ExtractionReport{
		ArxivID:        arxivID,
		ExtractionInfo: DescribeExtraction(c),
		BasicInfo: BasicInfo{
			Abstract:       c.Abstract,
			SectionsFound:  sections,
			FullTextLength: len([]rune(c.FullText)),
			Source:         c.Source,
		},
		DetailedResults: DetailedResults{
			Figures:   figures,
			Tables:    tables,
			Equations: equations,
		},
	}
}

// RunDaily は日次処理を実行し、結果または失敗をメールで通知する（sender は nil 可）
func (p *Pipeline) RunDaily(ctx context.Context, date string, sender *EmailSender) (DateEvaluationResponse, error) {
	resp, err := p.EvaluatePapersWithArticles(ctx, date, p.cfg.Schedule.DebugMode, p.cfg.Schedule.PostToWordPress)
	if err != nil {
		if sender != nil {
			if nerr := sender.SendFailureNotice(ctx, date, err); nerr != nil {
				warnf("failure notice not sent: %v", nerr)
			}
		}
		return DateEvaluationResponse{}, err
	}

	if sender != nil && len(resp.Results) > 0 {
		if err := sender.SendDailyDigest(ctx, date, DigestEntriesFromResponse(resp)); err != nil {
			warnf("daily digest not sent: %v", err)
		}
	}
	return resp, nil
}
