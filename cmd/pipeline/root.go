// =============================================================================
// root.go - paper-relay CLI のルートコマンド
// =============================================================================
//
// 【サブコマンド】
//   evaluate               1件の論文を採点
//   evaluate-by-date       指定日の論文を採点（上位N件）
//   evaluate-with-articles 採点 + 記事生成（--post で WordPress 投稿）
//   extract                本文抽出のテスト
//   publish                JSONファイルの記事を WordPress に投稿
//   wp-test                WordPress 接続テスト
//   ledger                 投稿台帳の一覧
//   digest                 Notion の評価結果をメールで送信
//   serve                  HTTP API サーバー（--schedule で日次実行）
//
// 【設定の読み込み順】
//   .env（godotenv） → --config の TOML → 環境変数 → フラグ
//
// =============================================================================
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"paper-relay/internal/pipeline"
)

var (
	// flags
	env        string
	configFile string
	outFile    string

	cfg    *pipeline.Config
	logger *logrus.Entry
)

func init() {
	RootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (dev|prod), overrides PAPER_RELAY_ENV")
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML configuration file")
	RootCmd.PersistentFlags().StringVarP(&outFile, "out", "o", "", "write JSON output to this file instead of stdout")
}

// RootCmd is the paper-relay command.
var RootCmd = cobra.Command{
	Use:           "paper-relay",
	Short:         "Evaluate arXiv papers, write articles and publish them to WordPress",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			// .env is optional
			fmt.Fprintf(os.Stderr, ".env file not loaded: %v (using environment variables only)\n", err)
		}

		var err error
		cfg, err = pipeline.LoadConfig(configFile)
		if err != nil {
			return err
		}
		if env != "" {
			cfg.Env = env
		}

		logger = pipeline.SetupLogging(cfg.Env)
		return nil
	},
}

// newPipeline builds the pipeline from the loaded configuration.
func newPipeline() (*pipeline.Pipeline, error) {
	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialising pipeline: %w", err)
	}
	return p, nil
}

// writeOutput prints v as JSON to --out or stdout.
func writeOutput(v any) error {
	if outFile != "" {
		if err := pipeline.WriteJSONFile(outFile, v); err != nil {
			return err
		}
		logger.Infof("wrote %s", outFile)
		return nil
	}
	return pipeline.WriteJSON(os.Stdout, v)
}
