// =============================================================================
// Lambda: daily-papers
// =============================================================================
//
// 前日（UTC）の論文を採点し、上位論文の解説記事を生成して投稿するLambda関数
//
// 環境変数:
//   - OPENAI_API_KEY:         OpenAI APIキー (必須)
//   - DEBUG_MODE:             カテゴリごとの取得件数を制限する (デフォルト: false)
//   - POST_TO_WORDPRESS:      WordPressに投稿する (デフォルト: true)
//   - DAYS_BACK:              何日前の論文を対象にするか (デフォルト: 1)
//   - WORDPRESS_ENDPOINT / WORDPRESS_USERNAME / WORDPRESS_APP_PASSWORD (投稿時に必須)
//   - NOTION_TOKEN / NOTION_DATABASE_ID: 評価結果のクリップ先 (任意)
//   - ARCHIVE_BUCKET:         実行結果の保存先S3バケット (任意)
//   - EMAIL_FROM / EMAIL_PASSWORD / EMAIL_TO: ダイジェストと失敗通知 (任意)
//
// =============================================================================
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"paper-relay/internal/pipeline"
)

// LambdaConfig は環境変数から読み込む設定
type LambdaConfig struct {
	DebugMode       bool
	PostToWordPress bool
	DaysBack        int
}

// Response はLambdaレスポンス
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Date       string `json:"date"`
	RunID      string `json:"runId,omitempty"`
	Evaluated  int    `json:"evaluated"`
	Articles   int    `json:"articles"`
	Published  int    `json:"published"`
}

// Handler はLambdaのメインハンドラー
func Handler(ctx context.Context, event interface{}) (Response, error) {
	lc := loadConfig()

	cfg, err := pipeline.LoadConfig("")
	if err != nil {
		return Response{StatusCode: 400, Message: err.Error()}, err
	}
	log := pipeline.SetupLogging(cfg.Env)
	log.Info("Starting daily-papers Lambda...")

	if err := validateConfig(cfg, lc); err != nil {
		return Response{StatusCode: 400, Message: err.Error()}, err
	}

	cfg.Schedule.DebugMode = lc.DebugMode
	cfg.Schedule.PostToWordPress = lc.PostToWordPress
	date := time.Now().UTC().AddDate(0, 0, -lc.DaysBack).Format("2006-01-02")
	log.Infof("Config: date=%s, debugMode=%t, postToWordPress=%t", date, lc.DebugMode, lc.PostToWordPress)

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error(), Date: date}, err
	}
	defer p.Close()

	sender, err := pipeline.NewEmailSenderFromConfig(cfg.Email)
	if err != nil {
		log.Warnf("email disabled: %v", err)
		sender = nil
	}

	resp, err := p.RunDaily(ctx, date, sender)
	if err != nil {
		log.WithError(err).Error("daily run failed")
		return Response{StatusCode: 500, Message: err.Error(), Date: date}, err
	}

	published := 0
	for _, pub := range resp.Publications {
		if pub.Success {
			published++
		}
	}

	return Response{
		StatusCode: 200,
		Message:    fmt.Sprintf("Evaluated %d papers, generated %d articles, published %d", resp.TotalPapers, len(resp.Articles), published),
		Date:       date,
		RunID:      resp.RunID,
		Evaluated:  resp.TotalPapers,
		Articles:   len(resp.Articles),
		Published:  published,
	}, nil
}

// loadConfig は環境変数から設定を読み込む
func loadConfig() LambdaConfig {
	daysBack := 1
	if db := os.Getenv("DAYS_BACK"); db != "" {
		if val, err := strconv.Atoi(db); err == nil && val > 0 {
			daysBack = val
		}
	}

	debug := false
	if v, err := strconv.ParseBool(os.Getenv("DEBUG_MODE")); err == nil {
		debug = v
	}

	post := true
	if v, err := strconv.ParseBool(os.Getenv("POST_TO_WORDPRESS")); err == nil {
		post = v
	}

	return LambdaConfig{DebugMode: debug, PostToWordPress: post, DaysBack: daysBack}
}

// validateConfig は設定の妥当性を検証する
func validateConfig(cfg *pipeline.Config, lc LambdaConfig) error {
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if lc.PostToWordPress {
		if v := cfg.WordPress.Validate(); !v.IsValid {
			return fmt.Errorf("WordPress configuration is incomplete: missing %v", v.MissingFields)
		}
	}
	return nil
}

func main() {
	lambda.Start(Handler)
}
