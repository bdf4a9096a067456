// Package api exposes the pipeline over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"paper-relay/internal/pipeline"
)

// Service is the part of *pipeline.Pipeline the routes use.
type Service interface {
	EvaluateURL(ctx context.Context, arxivURL string) (pipeline.PaperEvaluationResult, error)
	EvaluatePapersByDate(ctx context.Context, date string, debug bool) ([]pipeline.PaperEvaluationResult, error)
	EvaluatePapersWithArticles(ctx context.Context, date string, debug, postToWordPress bool) (pipeline.DateEvaluationResponse, error)
	WordPressConfig() pipeline.WordPressConfig
	PublishWith(ctx context.Context, cfg pipeline.WordPressConfig, articles []pipeline.ArticleGenerationResult, delay time.Duration, status string) []pipeline.PublishResult
	TestConnection(ctx context.Context, cfg pipeline.WordPressConfig) (pipeline.SiteInfo, error)
	TestWordPress(ctx context.Context, cfg pipeline.WordPressConfig) pipeline.DetailedTestResult
	TestExtraction(ctx context.Context, arxivID string) (pipeline.ExtractionReport, error)
}

// Server holds the routes.
type Server struct {
	svc Service
	log *logrus.Entry
}

// NewServer returns a server backed by svc.
func NewServer(svc Service, log *logrus.Entry) *Server {
	return &Server{svc: svc, log: log}
}

// Handler builds the gin engine with all routes registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.Register(r)
	return r
}

// Register adds the routes to r.
func (s *Server) Register(r gin.IRouter) {
	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.POST("/evaluate", s.evaluate)

	api.GET("/evaluate-by-date", s.evaluateByDateUsage)
	api.POST("/evaluate-by-date", s.evaluateByDate)

	api.GET("/evaluate-with-articles", s.evaluateWithArticlesUsage)
	api.POST("/evaluate-with-articles", s.evaluateWithArticles)

	api.GET("/wordpress/publish", s.wordpressStatus)
	api.POST("/wordpress/publish", s.wordpressPublish)

	api.GET("/wordpress/test", s.wordpressTestGet)
	api.POST("/wordpress/test", s.wordpressTest)

	api.GET("/test-extraction", s.testExtractionUsage)
	api.POST("/test-extraction", s.testExtraction)
}

// requestLogger tags every request with an X-Request-ID and logs it.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("requestID", id)

		start := time.Now()
		c.Next()

		entry := s.log.WithFields(logrus.Fields{
			"requestId": id,
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).Round(time.Millisecond).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Info("request")
		}
	}
}
