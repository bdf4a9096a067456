package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"paper-relay/internal/pipeline"
)

var (
	publishStatus string
	publishDelay  time.Duration
)

func init() {
	PublishCommand.Flags().StringVar(&publishStatus, "status", "", "post status: draft or publish (default from config)")
	PublishCommand.Flags().DurationVar(&publishDelay, "delay", 0, "wait between posts (default from config)")

	RootCmd.AddCommand(&PublishCommand)
	RootCmd.AddCommand(&WPTestCommand)
	RootCmd.AddCommand(&LedgerCommand)
}

// readArticles accepts either a bare array of articles or the output of
// evaluate-with-articles.
func readArticles(path string) ([]pipeline.ArticleGenerationResult, error) {
	var resp pipeline.DateEvaluationResponse
	if err := pipeline.ReadJSONFile(path, &resp); err == nil && len(resp.Articles) > 0 {
		return resp.Articles, nil
	}
	var articles []pipeline.ArticleGenerationResult
	if err := pipeline.ReadJSONFile(path, &articles); err != nil {
		return nil, fmt.Errorf("reading articles from %s: %w", path, err)
	}
	return articles, nil
}

var PublishCommand = cobra.Command{
	Use:   "publish <articles.json>",
	Short: "Publish generated articles to WordPress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		articles, err := readArticles(args[0])
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			return fmt.Errorf("no articles in %s", args[0])
		}
		if v := cfg.WordPress.Validate(); !v.IsValid {
			return fmt.Errorf("WordPress configuration is incomplete: missing %v", v.MissingFields)
		}

		status := publishStatus
		if status == "" {
			status = cfg.Publish.Status
		}
		delay := publishDelay
		if delay == 0 {
			delay = cfg.Publish.Delay
		}

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		results := p.PublishArticles(cmd.Context(), articles, delay, status)
		failed := 0
		for _, r := range results {
			if !r.Success {
				failed++
			}
		}
		logger.Infof("published %d/%d articles", len(results)-failed, len(results))
		return writeOutput(results)
	},
}

var WPTestCommand = cobra.Command{
	Use:   "wp-test",
	Short: "Probe the configured WordPress site over REST and XML-RPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		res := p.TestWordPress(cmd.Context(), pipeline.WordPressConfig{})
		if err := writeOutput(res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("WordPress test failed: %s", res.Error)
		}
		return nil
	},
}

var LedgerCommand = cobra.Command{
	Use:   "ledger",
	Short: "List the papers already posted to WordPress",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Ledger.Path == "" {
			return fmt.Errorf("no ledger configured (set LEDGER_PATH or [ledger] path)")
		}
		l, err := pipeline.OpenLedger(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer l.Close()

		records, err := l.List()
		if err != nil {
			return err
		}
		return writeOutput(records)
	},
}
