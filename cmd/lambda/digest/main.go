// =============================================================================
// Lambda: paper-digest
// =============================================================================
//
// Notion DBから最近の評価結果を取得し、ダイジェストメールを送信するLambda関数
//
// 環境変数:
//   - NOTION_TOKEN:       Notion API Token (必須)
//   - NOTION_DATABASE_ID: NotionデータベースID (必須)
//   - EMAIL_FROM:         送信元メールアドレス (必須)
//   - EMAIL_PASSWORD:     Gmailアプリパスワード (必須)
//   - EMAIL_TO:           送信先メールアドレス (必須)
//   - DAYS_BACK:          取得期間（日数、デフォルト: 1）
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
	NotionToken      string
	NotionDatabaseID string
	EmailFrom        string
	EmailPassword    string
	EmailTo          string
	DaysBack         int
}

// Response はLambdaレスポンス
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Fetched    int    `json:"fetched"`
	Sent       bool   `json:"sent"`
}

// Handler はLambdaのメインハンドラー
func Handler(ctx context.Context, event interface{}) (Response, error) {
	log := pipeline.SetupLogging(os.Getenv("PAPER_RELAY_ENV"))
	log.Info("Starting paper-digest Lambda...")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		return Response{StatusCode: 400, Message: err.Error()}, err
	}
	log.Infof("Config: daysBack=%d", cfg.DaysBack)

	clipper, err := pipeline.NewNotionClipper(cfg.NotionToken, cfg.NotionDatabaseID)
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error()}, err
	}
	sender, err := pipeline.NewEmailSender(cfg.EmailFrom, cfg.EmailPassword, cfg.EmailTo)
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error()}, err
	}

	since := time.Now().AddDate(0, 0, -cfg.DaysBack)
	n, err := pipeline.SendDigestFromNotion(ctx, clipper, sender, since)
	if err != nil {
		log.WithError(err).Error("digest failed")
		return Response{StatusCode: 500, Message: err.Error()}, err
	}
	if n == 0 {
		return Response{StatusCode: 200, Message: "No evaluations to send"}, nil
	}

	log.Infof("Email sent successfully to %s", cfg.EmailTo)
	return Response{
		StatusCode: 200,
		Message:    fmt.Sprintf("Successfully sent %d evaluations via email to %s", n, cfg.EmailTo),
		Fetched:    n,
		Sent:       true,
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

	return LambdaConfig{
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		NotionDatabaseID: os.Getenv("NOTION_DATABASE_ID"),
		EmailFrom:        os.Getenv("EMAIL_FROM"),
		EmailPassword:    os.Getenv("EMAIL_PASSWORD"),
		EmailTo:          os.Getenv("EMAIL_TO"),
		DaysBack:         daysBack,
	}
}

// validateConfig は設定の妥当性を検証する
func validateConfig(cfg LambdaConfig) error {
	if cfg.NotionToken == "" {
		return fmt.Errorf("NOTION_TOKEN is required")
	}
	if cfg.NotionDatabaseID == "" {
		return fmt.Errorf("NOTION_DATABASE_ID is required")
	}
	if cfg.EmailFrom == "" {
		return fmt.Errorf("EMAIL_FROM is required")
	}
	if cfg.EmailPassword == "" {
		return fmt.Errorf("EMAIL_PASSWORD is required")
	}
	if cfg.EmailTo == "" {
		return fmt.Errorf("EMAIL_TO is required")
	}
	return nil
}

func main() {
	lambda.Start(Handler)
}
