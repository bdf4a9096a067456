package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-relay/internal/pipeline"
)

type fakeService struct {
	byDate       []pipeline.PaperEvaluationResult
	byDateErr    error
	gotDebug     bool
	withArticles pipeline.DateEvaluationResponse
	wpConfig     pipeline.WordPressConfig

	publishedWith pipeline.WordPressConfig
	publishDelay  time.Duration
	publishStatus string
	connErr       error
}

func (f *fakeService) EvaluateURL(_ context.Context, u string) (pipeline.PaperEvaluationResult, error) {
	id, err := pipeline.ExtractArxivID(u)
	if err != nil {
		return pipeline.PaperEvaluationResult{}, err
	}
	return pipeline.PaperEvaluationResult{Paper: pipeline.PaperInfo{ArxivID: id}}, nil
}

func (f *fakeService) EvaluatePapersByDate(_ context.Context, _ string, debug bool) ([]pipeline.PaperEvaluationResult, error) {
	f.gotDebug = debug
	if f.byDateErr != nil {
		return nil, f.byDateErr
	}
	return pipeline.TopResults(f.byDate, 3), nil
}

func (f *fakeService) EvaluatePapersWithArticles(_ context.Context, date string, _, post bool) (pipeline.DateEvaluationResponse, error) {
	r := f.withArticles
	r.Date = date
	r.WordPressPosted = post
	return r, nil
}

func (f *fakeService) WordPressConfig() pipeline.WordPressConfig { return f.wpConfig }

func (f *fakeService) PublishWith(_ context.Context, cfg pipeline.WordPressConfig, articles []pipeline.ArticleGenerationResult, delay time.Duration, status string) []pipeline.PublishResult {
	f.publishedWith, f.publishDelay, f.publishStatus = cfg, delay, status
	out := make([]pipeline.PublishResult, len(articles))
	for i, a := range articles {
		out[i] = pipeline.PublishResult{ArticleID: a.Paper.ArxivID, Success: i == 0, PostID: 10 + i}
		if i > 0 {
			out[i].Error = "boom"
		}
	}
	return out
}

func (f *fakeService) TestConnection(context.Context, pipeline.WordPressConfig) (pipeline.SiteInfo, error) {
	return pipeline.SiteInfo{Name: "blog"}, f.connErr
}

func (f *fakeService) TestWordPress(_ context.Context, cfg pipeline.WordPressConfig) pipeline.DetailedTestResult {
	return pipeline.DetailedTestResult{Success: true, Endpoint: cfg.Endpoint}
}

func (f *fakeService) TestExtraction(_ context.Context, id string) (pipeline.ExtractionReport, error) {
	if id == "fail" {
		return pipeline.ExtractionReport{}, errors.New("network down")
	}
	return pipeline.BuildExtractionReport(id, pipeline.ExtractedContent{Abstract: "abs"}), nil
}

func newTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(svc, logrus.NewEntry(log)).Handler()
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if s, ok := body.(string); ok {
		rd = bytes.NewBufferString(s)
	} else if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func scored(id string, point int) pipeline.PaperEvaluationResult {
	return pipeline.PaperEvaluationResult{
		Paper:           pipeline.PaperInfo{ArxivID: id},
		FormattedOutput: pipeline.FormattedOutput{Point: point},
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w, body := do(t, r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestEvaluateByDate_TopThreeSorted(t *testing.T) {
	svc := &fakeService{byDate: []pipeline.PaperEvaluationResult{
		scored("a", 5), scored("b", 12), scored("c", 9), scored("d", 14), scored("e", 1),
	}}
	r := newTestRouter(svc)

	w, body := do(t, r, http.MethodPost, "/api/evaluate-by-date", map[string]any{"date": "2025-01-20"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "2025-01-20", body["date"])
	assert.True(t, svc.gotDebug, "debugMode defaults to true")

	results := body["results"].([]any)
	require.Len(t, results, 3)
	var points []float64
	for _, r := range results {
		points = append(points, r.(map[string]any)["formattedOutput"].(map[string]any)["point"].(float64))
	}
	assert.Equal(t, []float64{14, 12, 9}, points)
	assert.Equal(t, float64(3), body["totalPapers"])
}

func TestEvaluateByDate_Validation(t *testing.T) {
	r := newTestRouter(&fakeService{})

	w, body := do(t, r, http.MethodPost, "/api/evaluate-by-date", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "date is required (format: YYYY-MM-DD)", body["error"])
	assert.Equal(t, false, body["success"])

	for _, d := range []string{"2025/01/20", "20-01-2025", "2025-1-2", "yesterday"} {
		w, body = do(t, r, http.MethodPost, "/api/evaluate-by-date", map[string]any{"date": d})
		assert.Equal(t, http.StatusBadRequest, w.Code, d)
		assert.Equal(t, "Invalid date format. Use YYYY-MM-DD", body["error"], d)
	}

	w, _ = do(t, r, http.MethodPost, "/api/evaluate-by-date", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateByDate_DebugModeFalse(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc)
	w, body := do(t, r, http.MethodPost, "/api/evaluate-by-date", map[string]any{"date": "2025-01-20", "debugMode": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.gotDebug)
	assert.Equal(t, []any{}, body["results"])
}

func TestEvaluateByDate_Failure(t *testing.T) {
	r := newTestRouter(&fakeService{byDateErr: errors.New("arxiv unreachable")})
	w, body := do(t, r, http.MethodPost, "/api/evaluate-by-date", map[string]any{"date": "2025-01-20"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "", body["date"])
	assert.Equal(t, float64(0), body["totalPapers"])
	assert.Equal(t, "arxiv unreachable", body["error"])
}

func TestEvaluateByDate_Usage(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w, body := do(t, r, http.MethodGet, "/api/evaluate-by-date", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["usage"], "YYYY-MM-DD")
}

func TestEvaluateWithArticles(t *testing.T) {
	svc := &fakeService{withArticles: pipeline.DateEvaluationResponse{
		Success:     true,
		TotalPapers: 1,
		Results:     []pipeline.PaperEvaluationResult{scored("2501.00001", 10)},
	}}
	r := newTestRouter(svc)

	w, body := do(t, r, http.MethodPost, "/api/evaluate-with-articles", map[string]any{"date": "2025-01-20", "postToWordPress": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["wordPressPosted"])
	assert.Len(t, body["results"], 1)
	assert.Equal(t, "2025-01-20", body["date"])

	w, body = do(t, r, http.MethodPost, "/api/evaluate-with-articles", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "日付が指定されていません", body["error"])
}

func TestEvaluate(t *testing.T) {
	r := newTestRouter(&fakeService{})

	w, body := do(t, r, http.MethodPost, "/api/evaluate", map[string]any{"arxivUrl": "https://arxiv.org/abs/2401.12345v2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2401.12345", body["paper"].(map[string]any)["arxivId"])

	w, body = do(t, r, http.MethodPost, "/api/evaluate", map[string]any{"arxivUrl": "https://example.com/paper"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid arXiv URL", body["error"])
}

func TestWordPressPublish(t *testing.T) {
	svc := &fakeService{wpConfig: pipeline.WordPressConfig{Endpoint: "https://env.example.com", Username: "env", AppPassword: "envpw"}}
	r := newTestRouter(svc)

	articles := []map[string]any{
		{"paper": map[string]any{"arxivId": "2501.00001"}},
		{"paper": map[string]any{"arxivId": "2501.00002"}},
	}
	w, body := do(t, r, http.MethodPost, "/api/wordpress/publish", map[string]any{
		"articles": articles,
		"config":   map[string]any{"endpoint": "https://blog.example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["totalArticles"])
	assert.Equal(t, float64(1), body["successfulPosts"])
	assert.Equal(t, float64(1), body["failedPosts"])
	assert.Equal(t, "https://blog.example.com", svc.publishedWith.Endpoint)
	assert.Equal(t, "env", svc.publishedWith.Username)
	assert.Equal(t, 5*time.Second, svc.publishDelay)
	assert.Equal(t, "draft", svc.publishStatus)

	_, _ = do(t, r, http.MethodPost, "/api/wordpress/publish", map[string]any{
		"articles": articles,
		"options":  map[string]any{"publishDelay": 100, "status": "publish"},
	})
	assert.Equal(t, 100*time.Millisecond, svc.publishDelay)
	assert.Equal(t, "publish", svc.publishStatus)
}

func TestWordPressPublish_Validation(t *testing.T) {
	svc := &fakeService{wpConfig: pipeline.WordPressConfig{Endpoint: "https://env.example.com", Username: "env"}}
	r := newTestRouter(svc)

	w, body := do(t, r, http.MethodPost, "/api/wordpress/publish", map[string]any{"articles": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Articles array is required and must not be empty", body["error"])

	w, body = do(t, r, http.MethodPost, "/api/wordpress/publish", map[string]any{
		"articles": []any{map[string]any{"paper": map[string]any{"arxivId": "2501.00001"}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WordPress configuration is incomplete", body["error"])
	assert.Equal(t, []any{"appPassword"}, body["missingFields"])
}

func TestWordPressPublish_ConnectionTestFails(t *testing.T) {
	svc := &fakeService{
		wpConfig: pipeline.WordPressConfig{Endpoint: "https://env.example.com", Username: "u", AppPassword: "p"},
		connErr:  errors.New("401"),
	}
	r := newTestRouter(svc)
	w, body := do(t, r, http.MethodPost, "/api/wordpress/publish", map[string]any{
		"articles": []any{map[string]any{}},
		"options":  map[string]any{"testConnection": true},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WordPress connection test failed", body["error"])
}

func TestWordPressStatus(t *testing.T) {
	svc := &fakeService{wpConfig: pipeline.WordPressConfig{Endpoint: "https://very-long-blog-name.example.com", Username: "u", AppPassword: "p"}}
	r := newTestRouter(svc)

	w, body := do(t, r, http.MethodGet, "/api/wordpress/publish", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["configured"])
	assert.Equal(t, "https://very-long-bl...", body["endpoint"])

	_, body = do(t, r, http.MethodGet, "/api/wordpress/publish?action=validate-config", nil)
	assert.Equal(t, true, body["isValid"])

	_, body = do(t, r, http.MethodGet, "/api/wordpress/publish?action=test-connection", nil)
	assert.Equal(t, true, body["success"])

	r = newTestRouter(&fakeService{})
	w, body = do(t, r, http.MethodGet, "/api/wordpress/publish", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["configured"])
}

func TestWordPressTest(t *testing.T) {
	svc := &fakeService{wpConfig: pipeline.WordPressConfig{Endpoint: "https://env.example.com"}}
	r := newTestRouter(svc)

	_, body := do(t, r, http.MethodPost, "/api/wordpress/test", map[string]any{})
	assert.Equal(t, "https://env.example.com", body["endpoint"])

	_, body = do(t, r, http.MethodPost, "/api/wordpress/test", map[string]any{"endpoint": "https://other.example.com"})
	assert.Equal(t, "https://other.example.com", body["endpoint"])

	_, body = do(t, r, http.MethodGet, "/api/wordpress/test", nil)
	assert.Contains(t, body, "usage")
}

func TestTestExtraction(t *testing.T) {
	r := newTestRouter(&fakeService{})

	w, body := do(t, r, http.MethodPost, "/api/test-extraction", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "arxivId is required", body["error"])

	w, body = do(t, r, http.MethodPost, "/api/test-extraction", map[string]any{"arxivId": "2507.14077"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2507.14077", body["arxivId"])
	assert.Equal(t, "abs", body["basicInfo"].(map[string]any)["abstract"])

	w, body = do(t, r, http.MethodPost, "/api/test-extraction", map[string]any{"arxivId": "fail"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to test extraction", body["error"])
	assert.Equal(t, "network down", body["details"])
}
