package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"paper-relay/internal/pipeline"
)

const defaultPublishDelay = 5000 * time.Millisecond

type evaluateRequest struct {
	ArxivURL string `json:"arxivUrl"`
}

type dateRequest struct {
	Date            string `json:"date"`
	DebugMode       *bool  `json:"debugMode"`
	PostToWordPress bool   `json:"postToWordPress"`
}

func (r dateRequest) debug() bool {
	return r.DebugMode == nil || *r.DebugMode
}

type publishRequest struct {
	Articles []pipeline.ArticleGenerationResult `json:"articles"`
	Config   *pipeline.WordPressConfig          `json:"config"`
	Options  *publishOptions                    `json:"options"`
}

type publishOptions struct {
	TestConnection bool   `json:"testConnection"`
	PublishDelay   int    `json:"publishDelay"` // milliseconds
	Status         string `json:"status"`
}

type extractionRequest struct {
	ArxivID string `json:"arxivId"`
}

type publishSummary struct {
	Success         bool                     `json:"success"`
	TotalArticles   int                      `json:"totalArticles"`
	SuccessfulPosts int                      `json:"successfulPosts"`
	FailedPosts     int                      `json:"failedPosts"`
	Results         []pipeline.PublishResult `json:"results"`
}

func badJSON(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON body: " + err.Error()})
}

// maskEndpoint shows only the first 20 characters of the endpoint.
func maskEndpoint(ep string) any {
	if ep == "" {
		return nil
	}
	r := []rune(ep)
	if len(r) > 20 {
		r = r[:20]
	}
	return string(r) + "..."
}

// =============================================================================
// /api/evaluate
// =============================================================================

func (s *Server) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	if _, err := pipeline.ExtractArxivID(req.ArxivURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := s.svc.EvaluateURL(c.Request.Context(), req.ArxivURL)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInvalidArxivURL) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"paper":           res.Paper,
		"evaluation":      res.Evaluation,
		"formattedOutput": res.FormattedOutput,
	})
}

// =============================================================================
// /api/evaluate-by-date
// =============================================================================

func (s *Server) evaluateByDateUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Arxiv Papers Evaluation by Date API",
		"usage":       `POST with { "date": "YYYY-MM-DD", "debugMode": true, "postToWordPress": false }`,
		"description": "Evaluates papers from cs.AI, cs.CV, cs.LG categories for the specified date. Set postToWordPress to true to automatically post results to WordPress.",
	})
}

func (s *Server) evaluateByDate(c *gin.Context) {
	var req dateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	if req.Date == "" {
		c.JSON(http.StatusBadRequest, pipeline.DateEvaluationResponse{Error: "date is required (format: YYYY-MM-DD)"})
		return
	}
	if !pipeline.IsValidDate(req.Date) {
		c.JSON(http.StatusBadRequest, pipeline.DateEvaluationResponse{Error: pipeline.ErrInvalidDate.Error()})
		return
	}

	ctx := c.Request.Context()
	resp := pipeline.DateEvaluationResponse{Date: req.Date}
	if req.PostToWordPress {
		full, err := s.svc.EvaluatePapersWithArticles(ctx, req.Date, req.debug(), true)
		if err != nil {
			s.dateFailure(c, err, "")
			return
		}
		resp.Results = full.Results
		resp.Publications = full.Publications
		resp.WordPressPosted = true
		resp.RunID = full.RunID
	} else {
		results, err := s.svc.EvaluatePapersByDate(ctx, req.Date, req.debug())
		if err != nil {
			s.dateFailure(c, err, "")
			return
		}
		resp.Results = results
	}

	if resp.Results == nil {
		resp.Results = []pipeline.PaperEvaluationResult{}
	}
	resp.Success = true
	resp.TotalPapers = len(resp.Results)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) dateFailure(c *gin.Context, err error, prefix string) {
	s.log.WithError(err).Error("date evaluation failed")
	status := http.StatusInternalServerError
	if errors.Is(err, pipeline.ErrInvalidDate) {
		status = http.StatusBadRequest
	}
	c.JSON(status, pipeline.DateEvaluationResponse{Error: prefix + err.Error()})
}

// =============================================================================
// /api/evaluate-with-articles
// =============================================================================

func (s *Server) evaluateWithArticlesUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Arxiv Papers Evaluation with Articles API",
		"usage":       `POST with { "date": "YYYY-MM-DD", "debugMode": true, "postToWordPress": false }`,
		"description": "Evaluates papers and generates articles for top papers. Set postToWordPress to true to automatically post articles to WordPress.",
	})
}

func (s *Server) evaluateWithArticles(c *gin.Context) {
	var req dateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	if req.Date == "" {
		c.JSON(http.StatusBadRequest, pipeline.DateEvaluationResponse{Error: "日付が指定されていません"})
		return
	}
	if !pipeline.IsValidDate(req.Date) {
		c.JSON(http.StatusBadRequest, pipeline.DateEvaluationResponse{Error: pipeline.ErrInvalidDate.Error()})
		return
	}

	resp, err := s.svc.EvaluatePapersWithArticles(c.Request.Context(), req.Date, req.debug(), req.PostToWordPress)
	if err != nil {
		s.dateFailure(c, err, "評価中にエラーが発生しました: ")
		return
	}
	if resp.Results == nil {
		resp.Results = []pipeline.PaperEvaluationResult{}
	}
	if resp.Articles == nil {
		resp.Articles = []pipeline.ArticleGenerationResult{}
	}
	c.JSON(http.StatusOK, resp)
}

// =============================================================================
// /api/wordpress/publish
// =============================================================================

func (s *Server) wordpressPublish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	if len(req.Articles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Articles array is required and must not be empty"})
		return
	}

	cfg := s.svc.WordPressConfig()
	if req.Config != nil {
		cfg = req.Config.Merge(cfg)
	}
	if v := cfg.Validate(); !v.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":       false,
			"error":         "WordPress configuration is incomplete",
			"missingFields": v.MissingFields,
		})
		return
	}

	opts := publishOptions{}
	if req.Options != nil {
		opts = *req.Options
	}
	ctx := c.Request.Context()

	if opts.TestConnection {
		if _, err := s.svc.TestConnection(ctx, cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "WordPress connection test failed",
				"details": err.Error(),
			})
			return
		}
	}

	delay := defaultPublishDelay
	if opts.PublishDelay > 0 {
		delay = time.Duration(opts.PublishDelay) * time.Millisecond
	}
	status := opts.Status
	if status == "" {
		status = "draft"
	}

	results := s.svc.PublishWith(ctx, cfg, req.Articles, delay, status)

	sum := publishSummary{Success: true, TotalArticles: len(req.Articles), Results: results}
	for _, r := range results {
		if r.Success {
			sum.SuccessfulPosts++
		} else {
			sum.FailedPosts++
		}
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) wordpressStatus(c *gin.Context) {
	cfg := s.svc.WordPressConfig()
	v := cfg.Validate()
	if !v.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error":      "WordPress configuration is not set",
			"configured": false,
		})
		return
	}

	switch c.Query("action") {
	case "test-connection":
		info, err := s.svc.TestConnection(c.Request.Context(), cfg)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "siteInfo": info})
	case "validate-config":
		c.JSON(http.StatusOK, gin.H{
			"isValid":       v.IsValid,
			"missingFields": v.MissingFields,
			"endpoint":      maskEndpoint(cfg.Endpoint),
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"configured":       true,
			"endpoint":         maskEndpoint(cfg.Endpoint),
			"availableActions": []string{"test-connection", "validate-config"},
		})
	}
}

// =============================================================================
// /api/wordpress/test
// =============================================================================

func (s *Server) wordpressTestGet(c *gin.Context) {
	if c.Query("run") == "" {
		c.JSON(http.StatusOK, gin.H{
			"message":     "WordPress REST API Test",
			"usage":       "GET ?run=1 or POST { endpoint, username, appPassword } to test WordPress connectivity",
			"description": "Tests multiple WordPress REST API endpoints to identify working configurations",
		})
		return
	}
	c.JSON(http.StatusOK, s.svc.TestWordPress(c.Request.Context(), s.svc.WordPressConfig()))
}

func (s *Server) wordpressTest(c *gin.Context) {
	var req pipeline.WordPressConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	cfg := req.Merge(s.svc.WordPressConfig())
	c.JSON(http.StatusOK, s.svc.TestWordPress(c.Request.Context(), cfg))
}

// =============================================================================
// /api/test-extraction
// =============================================================================

func (s *Server) testExtractionUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Figure and Table Extraction Test API",
		"usage":   `POST /api/test-extraction with { "arxivId": "2507.14077" }`,
	})
}

func (s *Server) testExtraction(c *gin.Context) {
	var req extractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	if req.ArxivID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "arxivId is required"})
		return
	}

	report, err := s.svc.TestExtraction(c.Request.Context(), req.ArxivID)
	if err != nil {
		s.log.WithError(err).Error("extraction test failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to test extraction",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, report)
}
