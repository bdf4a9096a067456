package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"paper-relay/internal/pipeline"
)

var (
	debugMode       bool
	postToWordPress bool
	topN            int
)

func init() {
	for _, c := range []*cobra.Command{&EvaluateByDateCommand, &EvaluateWithArticlesCommand} {
		c.Flags().BoolVar(&debugMode, "debug", true, "cap papers per category at the debug limit")
		c.Flags().IntVar(&topN, "top", 0, "number of top papers to keep (default from config)")
	}
	EvaluateWithArticlesCommand.Flags().BoolVar(&postToWordPress, "post", false, "publish generated articles to WordPress")

	RootCmd.AddCommand(&EvaluateCommand)
	RootCmd.AddCommand(&EvaluateByDateCommand)
	RootCmd.AddCommand(&EvaluateWithArticlesCommand)
	RootCmd.AddCommand(&ExtractCommand)
}

// dateArg returns args[0] or yesterday (UTC) when no date is given.
func dateArg(args []string) (string, error) {
	if len(args) == 0 {
		return pipeline.PreviousDay(time.Now().UTC()), nil
	}
	if !pipeline.IsValidDate(args[0]) {
		return "", pipeline.ErrInvalidDate
	}
	return args[0], nil
}

func applyTopFlag() {
	if topN > 0 {
		cfg.ArXiv.TopN = topN
	}
}

var EvaluateCommand = cobra.Command{
	Use:   "evaluate <arxiv-url-or-id>",
	Short: "Score a single paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.EvaluateURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeOutput(res)
	},
}

var EvaluateByDateCommand = cobra.Command{
	Use:   "evaluate-by-date [YYYY-MM-DD]",
	Short: "Score the papers submitted on a date and keep the top N",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := dateArg(args)
		if err != nil {
			return err
		}
		applyTopFlag()

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		results, err := p.EvaluatePapersByDate(cmd.Context(), date, debugMode)
		if err != nil {
			return err
		}
		return writeOutput(pipeline.DateEvaluationResponse{
			Success:     true,
			Date:        date,
			TotalPapers: len(results),
			Results:     results,
		})
	},
}

var EvaluateWithArticlesCommand = cobra.Command{
	Use:   "evaluate-with-articles [YYYY-MM-DD]",
	Short: "Score a date's papers, write articles for the top N and optionally publish them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := dateArg(args)
		if err != nil {
			return err
		}
		applyTopFlag()

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		resp, err := p.EvaluatePapersWithArticles(cmd.Context(), date, debugMode, postToWordPress)
		if err != nil {
			return err
		}
		logger.Infof("run %s: %d papers, %d articles, %d publications", resp.RunID, resp.TotalPapers, len(resp.Articles), len(resp.Publications))
		return writeOutput(resp)
	},
}

var ExtractCommand = cobra.Command{
	Use:   "extract <arxiv-id>",
	Short: "Extract figures, tables and equations from a paper and print a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := pipeline.ExtractArxivID(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		report, err := p.TestExtraction(cmd.Context(), id)
		if err != nil {
			return err
		}
		return writeOutput(report)
	},
}
