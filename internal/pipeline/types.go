// =============================================================================
// types.go - データ構造定義
// =============================================================================
//
// このファイルはpaper-relay全体で使用するデータ構造（型）を定義します。
//
// 【このファイルで定義している型】
//   - PaperInfo:               arXivから取得した論文メタデータ
//   - ExtractedContent:        HTML/PDFから抽出した本文・図表・数式
//   - EvaluationResult:        採点プロンプトの解析結果
//   - FormattedOutput:         理由・計算式・点数の表示用3点セット
//   - PaperArticle:            生成された解説記事（6セクション）
//   - BlogPost / PublishResult: WordPress投稿の入力と結果
//
// 【JSONタグ】
//   HTTP APIのレスポンス形式（camelCase）に合わせています。
//   `omitempty`付きのフィールドは値が空の場合に出力されません。
//
// =============================================================================
package pipeline

import "time"

// -----------------------------------------------------------------------------
// PaperInfo - 論文メタデータ
// -----------------------------------------------------------------------------
//
// arXiv Atom APIの1エントリに対応します。
// Title / Abstract / ArxivID のいずれかが欠けたエントリは生成されません。
type PaperInfo struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Abstract      string   `json:"abstract"`
	ArxivID       string   `json:"arxivId"`
	Subjects      []string `json:"subjects"`
	PublishedDate string   `json:"publishedDate,omitempty"` // YYYY-MM-DD
}

// -----------------------------------------------------------------------------
// ExtractedContent - 論文本文から抽出した構造化データ
// -----------------------------------------------------------------------------
//
// 抽出に失敗した場合も「全フィールド空」の値として扱います（エラーにしない）。
// Source には抽出に成功した取得元（arxiv-html / ar5iv / pdf）が入ります。
type ExtractedContent struct {
	FullText    string            `json:"fullText"`
	Abstract    string            `json:"abstract"`
	Sections    map[string]string `json:"sections"`
	Figures     []Figure          `json:"figures"`
	Tables      []Table           `json:"tables"`
	Equations   []Equation        `json:"equations"`
	Algorithms  []Algorithm       `json:"algorithms"`
	Methodology string            `json:"methodology,omitempty"`
	Experiments string            `json:"experiments,omitempty"`
	Results     string            `json:"results,omitempty"`
	Source      string            `json:"source,omitempty"`
}

// IsEmpty reports whether nothing usable was extracted.
func (c ExtractedContent) IsEmpty() bool {
	return len(c.Figures) == 0 && len(c.Tables) == 0 && len(c.Sections) == 0 &&
		len(c.Equations) == 0 && len(c.Algorithms) == 0 && c.Abstract == ""
}

// Figure は図番号（例: "Figure 3"）とキャプション、画像URL（任意）
type Figure struct {
	Number   string `json:"figureNumber"`
	Caption  string `json:"caption"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Table は表番号・キャプション・生テキスト・構造化データ（任意）
type Table struct {
	Number     string     `json:"tableNumber"`
	Caption    string     `json:"caption"`
	Content    string     `json:"content"`
	Structured *TableData `json:"structuredData,omitempty"`
}

// Label は表番号を返す。番号のない表は "Table"。
func (t Table) Label() string {
	if t.Number == "" {
		return "Table"
	}
	return t.Number
}

// TableData はヘッダー行とデータ行
type TableData struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Equation はLaTeXソースと周辺テキスト
type Equation struct {
	LaTeX         string `json:"latex"`
	Context       string `json:"context"`
	IsDisplayMode bool   `json:"isDisplayMode"`
}

// Algorithm はアルゴリズムブロック
type Algorithm struct {
	Number  string `json:"algorithmNumber"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// -----------------------------------------------------------------------------
// EvaluationResult - 採点結果
// -----------------------------------------------------------------------------
//
// 【スコアの構成】
//   4つのサブスコア（各1〜5）: 著名著者 / 筆頭著者 / 革新性 / 応用可能性
//   ボーナス（+3）: 学習実験 / トレンド
//   ペナルティ: ソフトウェア工学（-5） / ロジック不明瞭（-4）
//
// FinalScore はLLMが `point:` で報告した値をそのまま保持します。
// Missing には解析できずデフォルト値で埋めた項目名が入ります。
type EvaluationResult struct {
	FamousAuthorScore          int      `json:"famousAuthorScore"`
	FirstAuthorScore           int      `json:"firstAuthorScore"`
	InnovationScore            int      `json:"innovationScore"`
	ApplicabilityScore         int      `json:"applicabilityScore"`
	BaseTotal                  int      `json:"baseTotal"`
	LearningExperimentBonus    int      `json:"learningExperimentBonus"`
	TrendyTopicBonus           int      `json:"trendyTopicBonus"`
	SoftwareEngineeringPenalty int      `json:"softwareEngineeringPenalty"`
	LogicPenalty               int      `json:"logicPenalty"`
	FinalScore                 int      `json:"finalScore"`
	Reasoning                  string   `json:"reasoning"`
	Missing                    []string `json:"missing,omitempty"`
	ParseMode                  string   `json:"parseMode,omitempty"`
}

// FormattedOutput は表示用の理由・計算式・点数
type FormattedOutput struct {
	Reasoning   string `json:"reasoning"`
	Calculation string `json:"calculation"`
	Point       int    `json:"point"`
}

// PaperEvaluationResult は論文1件分の評価
type PaperEvaluationResult struct {
	Paper           PaperInfo        `json:"paper"`
	Evaluation      EvaluationResult `json:"evaluation"`
	FormattedOutput FormattedOutput  `json:"formattedOutput"`
}

// -----------------------------------------------------------------------------
// PaperArticle - 解説記事
// -----------------------------------------------------------------------------
//
// 6つのセクションはLLM応答の `## 見出し` から抽出します。
// 抽出できなかったセクションには固定のプレースホルダーが入り、Missingに記録されます。
type PaperArticle struct {
	PaperID       string    `json:"paperId"`
	Title         string    `json:"title"`
	TLDR          string    `json:"tldr"`
	Background    string    `json:"background"`
	GoodPoints    string    `json:"goodPoints"`
	Content       string    `json:"content"`
	Consideration string    `json:"consideration"`
	Conclusion    string    `json:"conclusion"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Figures       []Figure  `json:"figures,omitempty"`
	Tables        []Table   `json:"tables,omitempty"`
	Missing       []string  `json:"missing,omitempty"`
}

// ArticleGenerationResult は記事と元の論文・評価の組
type ArticleGenerationResult struct {
	Paper      PaperInfo        `json:"paper"`
	Article    PaperArticle     `json:"article"`
	Evaluation EvaluationResult `json:"evaluation"`
}

// -----------------------------------------------------------------------------
// WordPress投稿関連
// -----------------------------------------------------------------------------

// BlogPost はWordPressへ送る投稿内容
type BlogPost struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Tags       []string     `json:"tags"`
	Categories []string     `json:"categories"`
	Status     string       `json:"status"` // draft | publish
	Excerpt    string       `json:"excerpt"`
	Metadata   BlogMetadata `json:"metadata"`
}

// BlogMetadata は投稿の元になった論文情報
type BlogMetadata struct {
	PaperInfo       PaperInfo `json:"paperInfo"`
	EvaluationScore int       `json:"evaluationScore"`
}

// PublishResult は記事1件の投稿結果
//
// 投稿処理はエラーを返さず、成否は Success / Error で表現します。
type PublishResult struct {
	ArticleID  string `json:"articleId"`
	Success    bool   `json:"success"`
	PostID     int    `json:"postId,omitempty"`
	PostURL    string `json:"postUrl,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
	EditURL    string `json:"editUrl,omitempty"`
	Transport  string `json:"transport,omitempty"`
	Updated    bool   `json:"updated,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DateEvaluationResponse は日付指定評価（記事生成付き）のレスポンス
type DateEvaluationResponse struct {
	Success         bool                      `json:"success"`
	Date            string                    `json:"date"`
	TotalPapers     int                       `json:"totalPapers"`
	Results         []PaperEvaluationResult   `json:"results"`
	Articles        []ArticleGenerationResult `json:"articles,omitempty"`
	Publications    []PublishResult           `json:"publications,omitempty"`
	WordPressPosted bool                      `json:"wordPressPosted"`
	RunID           string                    `json:"runId,omitempty"`
	Error           string                    `json:"error,omitempty"`
}
