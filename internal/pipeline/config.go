// =============================================================================
// config.go - パイプライン設定
// =============================================================================
//
// このファイルは設定の読み込みと検証を行います。
//
// 【設定の優先順位】（後のものが前のものを上書き）
//  1. DefaultConfig() のデフォルト値
//  2. TOMLファイル（--config フラグ）
//  3. 環境変数（.env は godotenv で事前に読み込み済み）
//  4. CLIフラグ（cmd/pipeline 側で適用）
//
// 【設定グループ】
//   - [openai]    LLM呼び出し（モデル・温度・トークン数）
//   - [arxiv]     メタデータ取得（カテゴリ・ページサイズ・上位N件）
//   - [extract]   本文抽出（HTML/ar5iv/PDFの取得元）
//   - [wordpress] 投稿先と投稿間隔
//   - [throttle]  外部サービスごとのリクエスト間隔
//   - [ledger] [cache] [notion] [email] [archive] [schedule] [server]
//
// =============================================================================
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig は設定値が使用できない場合のエラー
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// 設定構造体
// =============================================================================

// Config はパイプラインの全設定を保持する
type Config struct {
	Env       string          `toml:"env"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	ArXiv     ArxivConfig     `toml:"arxiv"`
	Extract   ExtractConfig   `toml:"extract"`
	WordPress WordPressConfig `toml:"wordpress"`
	Publish   PublishConfig   `toml:"publish"`
	Throttle  ThrottleConfig  `toml:"throttle"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Cache     CacheConfig     `toml:"cache"`
	Notion    NotionConfig    `toml:"notion"`
	Email     EmailSettings   `toml:"email"`
	Archive   ArchiveConfig   `toml:"archive"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Server    ServerConfig    `toml:"server"`
}

// OpenAIConfig はLLM呼び出しの設定
type OpenAIConfig struct {
	APIKey  string        `toml:"api_key"`
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`

	// 採点（決定的寄り）
	ScoreModel       string  `toml:"score_model"`
	ScoreTemperature float64 `toml:"score_temperature"`
	ScoreMaxTokens   int     `toml:"score_max_tokens"`

	// 記事生成（創造的寄り）
	ArticleModel       string  `toml:"article_model"`
	ArticleTemperature float64 `toml:"article_temperature"`
	ArticleMaxTokens   int     `toml:"article_max_tokens"`

	// 詳細セクション生成（抽出コンテンツがある場合のみ）
	DetailEnabled   bool `toml:"detail_enabled"`
	DetailMaxTokens int  `toml:"detail_max_tokens"`
}

// ArxivConfig はarXivメタデータ取得の設定
type ArxivConfig struct {
	APIURL     string        `toml:"api_url"`
	Categories []string      `toml:"categories"`
	PageSize   int           `toml:"page_size"`
	DebugLimit int           `toml:"debug_limit"` // デバッグモード時のカテゴリあたり上限
	TopN       int           `toml:"top_n"`       // 日付評価で返す上位件数
	UserAgent  string        `toml:"user_agent"`
	Timeout    time.Duration `toml:"timeout"`
}

// ExtractConfig は本文抽出の設定
type ExtractConfig struct {
	Skip         bool          `toml:"skip"` // SKIP_HTML_PARSING
	HTMLBaseURL  string        `toml:"html_base_url"`
	Ar5ivBaseURL string        `toml:"ar5iv_base_url"`
	PDFBaseURL   string        `toml:"pdf_base_url"`
	PDFEnabled   bool          `toml:"pdf_enabled"`
	UserAgent    string        `toml:"user_agent"`
	Timeout      time.Duration `toml:"timeout"`
}

// PublishConfig は投稿動作の設定
type PublishConfig struct {
	Delay  time.Duration `toml:"delay"`  // 投稿間隔
	Status string        `toml:"status"` // draft | publish
}

// ThrottleRule は1つの外部サービスに対するトークンバケット設定
//
// Interval が0以下の場合は無制限。
type ThrottleRule struct {
	Interval time.Duration `toml:"interval"`
	Burst    int           `toml:"burst"`
}

// ThrottleConfig は外部サービスごとのリクエスト間隔
type ThrottleConfig struct {
	ArXiv     ThrottleRule `toml:"arxiv"`
	HTML      ThrottleRule `toml:"html"`
	LLM       ThrottleRule `toml:"llm"`
	WordPress ThrottleRule `toml:"wordpress"`
}

// LedgerConfig は投稿台帳（bolt）の設定。Path が空なら無効。
type LedgerConfig struct {
	Path string `toml:"path"`
}

// CacheConfig は抽出結果キャッシュ（redis）の設定。Addr が空なら無効。
type CacheConfig struct {
	Addr     string        `toml:"addr"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	TTL      time.Duration `toml:"ttl"`
}

// NotionConfig はNotionクリップの設定
type NotionConfig struct {
	Token      string `toml:"token"`
	DatabaseID string `toml:"database_id"`
	PageID     string `toml:"page_id"`
}

// EmailSettings はメール通知の設定
//
// 【注意】email.goのEmailConfig（SMTP接続設定）とは別物
type EmailSettings struct {
	From     string `toml:"from"`
	Password string `toml:"password"`
	To       string `toml:"to"` // カンマ区切り
}

// ArchiveConfig はS3アーカイブの設定。Bucket が空なら無効。
type ArchiveConfig struct {
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

// ScheduleConfig は serve 中の定期実行設定。Spec が空なら無効。
type ScheduleConfig struct {
	Spec            string `toml:"spec"` // cron式（例: "0 9 * * *"）
	DebugMode       bool   `toml:"debug_mode"`
	PostToWordPress bool   `toml:"post_to_wordpress"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// =============================================================================
// デフォルト値と読み込み
// =============================================================================

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Env: "dev",
		OpenAI: OpenAIConfig{
			BaseURL:            "https://api.openai.com/v1",
			Timeout:            60 * time.Second,
			ScoreModel:         "gpt-4.1-nano",
			ScoreTemperature:   0.3,
			ScoreMaxTokens:     1000,
			ArticleModel:       "gpt-4.1-mini",
			ArticleTemperature: 0.7,
			ArticleMaxTokens:   2000,
			DetailEnabled:      true,
			DetailMaxTokens:    4000,
		},
		ArXiv: ArxivConfig{
			APIURL:     "http://export.arxiv.org/api/query",
			Categories: []string{"cs.AI", "cs.CV", "cs.LG"},
			PageSize:   100,
			DebugLimit: 3,
			TopN:       3,
			UserAgent:  "Mozilla/5.0 (compatible; paper-relay/1.0)",
			Timeout:    30 * time.Second,
		},
		Extract: ExtractConfig{
			HTMLBaseURL:  "https://arxiv.org/html/",
			Ar5ivBaseURL: "https://ar5iv.labs.arxiv.org/html/",
			PDFBaseURL:   "https://arxiv.org/pdf/",
			PDFEnabled:   true,
			UserAgent:    "Mozilla/5.0 (compatible; PaperAnalyzer/1.0)",
			Timeout:      30 * time.Second,
		},
		Publish: PublishConfig{
			Delay:  5 * time.Second,
			Status: "draft",
		},
		Throttle: ThrottleConfig{
			ArXiv:     ThrottleRule{Interval: time.Second, Burst: 1},
			HTML:      ThrottleRule{Interval: time.Second, Burst: 1},
			LLM:       ThrottleRule{Interval: 2 * time.Second, Burst: 1},
			WordPress: ThrottleRule{Interval: time.Second, Burst: 1},
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Archive: ArchiveConfig{
			Region: "ap-northeast-1",
			Prefix: "runs",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// LoadConfig はデフォルト値にTOMLファイルと環境変数を重ねた設定を返す
//
// path が空の場合はファイルを読まない。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv は環境変数で設定を上書きする（未設定の変数は無視）
func (c *Config) ApplyEnv() {
	setString(&c.Env, "PAPER_RELAY_ENV")

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_API_BASE")

	setString(&c.WordPress.Endpoint, "WORDPRESS_ENDPOINT")
	setString(&c.WordPress.Username, "WORDPRESS_USERNAME")
	setString(&c.WordPress.AppPassword, "WORDPRESS_APP_PASSWORD")

	if v, ok := os.LookupEnv("SKIP_HTML_PARSING"); ok {
		c.Extract.Skip = envTruthy(v)
	}

	setString(&c.Ledger.Path, "LEDGER_PATH")
	setString(&c.Cache.Addr, "REDIS_ADDR")
	setString(&c.Cache.Password, "REDIS_PASSWORD")

	setString(&c.Notion.Token, "NOTION_TOKEN")
	setString(&c.Notion.DatabaseID, "NOTION_DATABASE_ID")
	setString(&c.Notion.PageID, "NOTION_PAGE_ID")

	setString(&c.Email.From, "EMAIL_FROM")
	setString(&c.Email.Password, "EMAIL_PASSWORD")
	setString(&c.Email.To, "EMAIL_TO")

	setString(&c.Archive.Region, "AWS_REGION")
	setString(&c.Archive.Bucket, "ARCHIVE_BUCKET")
	setString(&c.Archive.Prefix, "ARCHIVE_PREFIX")

	setString(&c.Schedule.Spec, "SCHEDULE_SPEC")
	setString(&c.Server.Addr, "SERVER_ADDR")
}

// Validate は使用できない設定値を検出する
func (c *Config) Validate() error {
	switch {
	case c.ArXiv.PageSize <= 0:
		return fmt.Errorf("%w: arxiv.page_size must be positive (got %d)", ErrInvalidConfig, c.ArXiv.PageSize)
	case c.ArXiv.TopN <= 0:
		return fmt.Errorf("%w: arxiv.top_n must be positive (got %d)", ErrInvalidConfig, c.ArXiv.TopN)
	case len(c.ArXiv.Categories) == 0:
		return fmt.Errorf("%w: arxiv.categories must not be empty", ErrInvalidConfig)
	case c.Publish.Delay < 0:
		return fmt.Errorf("%w: publish.delay must not be negative", ErrInvalidConfig)
	case c.Publish.Status != "draft" && c.Publish.Status != "publish":
		return fmt.Errorf("%w: publish.status must be draft or publish (got %q)", ErrInvalidConfig, c.Publish.Status)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// envTruthy は "true" / "1" / "yes" を真とみなす
func envTruthy(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err == nil {
		return b
	}
	return strings.EqualFold(strings.TrimSpace(v), "yes")
}
