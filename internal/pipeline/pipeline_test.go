package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers scoring prompts by paper title and returns a fixed
// article for every other prompt.
type scriptedLLM struct {
	mu     sync.Mutex
	scores map[string]string
}

func (s *scriptedLLM) Complete(_ context.Context, req ChatRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prompt := req.Messages[0].Content
	if req.Model != "score" {
		return sampleArticle, nil
	}
	for title, reply := range s.scores {
		if strings.Contains(prompt, "タイトル: "+title+"\n") {
			if reply == "" {
				return "", errors.New("rate limited")
			}
			return reply, nil
		}
	}
	return "", ErrNoContent
}

func newTestPipeline(t *testing.T, wpRoutes map[string]http.HandlerFunc) (*Pipeline, *fakeWordPress) {
	t.Helper()

	arxivSrv := httptest.NewServer(&arxivStub{pages: dailyPages()})
	t.Cleanup(arxivSrv.Close)
	wp := &fakeWordPress{routes: wpRoutes}
	wpSrv := httptest.NewServer(wp)
	t.Cleanup(wpSrv.Close)

	cfg := DefaultConfig()
	cfg.ArXiv.APIURL = arxivSrv.URL
	cfg.ArXiv.Categories = []string{"cs.AI"}
	cfg.ArXiv.PageSize = 2
	cfg.ArXiv.TopN = 2
	cfg.Extract.Skip = true
	cfg.OpenAI.ScoreModel = "score"
	cfg.OpenAI.ArticleModel = "article"
	cfg.Throttle = ThrottleConfig{}
	cfg.Publish.Delay = 0
	cfg.WordPress = WordPressConfig{Endpoint: wpSrv.URL, Username: "editor", AppPassword: "pw"}
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "posts.db")
	cfg.Archive.Bucket = ""

	llm := &scriptedLLM{scores: map[string]string{
		"Paper A": "理由：普通\n総計：1+1+3+3 = 8\npoint: 8",
		"Paper B": "理由：優秀\n総計：3+5+3+3 = 14\npoint: 14",
		"Paper C": "",
	}}
	p, err := NewPipelineWith(cfg, NewThrottles(cfg.Throttle), llm)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, wp
}

func TestTopResults(t *testing.T) {
	mk := func(id string, point int) PaperEvaluationResult {
		return PaperEvaluationResult{Paper: PaperInfo{ArxivID: id}, FormattedOutput: FormattedOutput{Point: point}}
	}
	in := []PaperEvaluationResult{mk("a", 5), mk("b", 9), mk("c", 5), mk("d", 12)}

	top := TopResults(in, 3)
	assert.Equal(t, []string{"d", "b", "a"}, []string{top[0].Paper.ArxivID, top[1].Paper.ArxivID, top[2].Paper.ArxivID})
	assert.Len(t, TopResults(in, 0), 4)
	assert.Equal(t, "a", in[0].Paper.ArxivID)
}

func TestEvaluatePapersByDate(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	results, err := p.EvaluatePapersByDate(context.Background(), "2025-01-15", false)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "2501.00002", results[0].Paper.ArxivID)
	assert.Equal(t, 14, results[0].FormattedOutput.Point)
	assert.Equal(t, "2501.00001", results[1].Paper.ArxivID)
	assert.Equal(t, 8, results[1].Evaluation.FinalScore)
}

func TestEvaluatePapersByDateInvalidDate(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	_, err := p.EvaluatePapersByDate(context.Background(), "2025/01/15", false)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestEvaluateURLRejectsNonArxiv(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	_, err := p.EvaluateURL(context.Background(), "https://example.com/paper")
	assert.ErrorIs(t, err, ErrInvalidArxivURL)
}

func TestEvaluatePapersWithArticlesAndPublish(t *testing.T) {
	p, wp := newTestPipeline(t, map[string]http.HandlerFunc{"rest": createdPost(42)})

	resp, err := p.EvaluatePapersWithArticles(context.Background(), "2025-01-15", false, true)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.True(t, resp.WordPressPosted)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "2025-01-15", resp.Date)
	assert.Equal(t, 2, resp.TotalPapers)
	require.Len(t, resp.Articles, 2)
	assert.Equal(t, "2501.00002", resp.Articles[0].Paper.ArxivID)
	assert.Equal(t, "【論文解説】Paper B", resp.Articles[0].Article.Title)
	require.Len(t, resp.Publications, 2)
	assert.True(t, resp.Publications[0].Success)
	assert.Equal(t, []string{"rest", "rest"}, wp.calls())

	rec, ok, err := p.Ledger().Get("2501.00002")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, rec.PostID)
}

func TestEvaluatePapersWithArticlesWithoutPosting(t *testing.T) {
	p, wp := newTestPipeline(t, map[string]http.HandlerFunc{"rest": createdPost(42)})

	resp, err := p.EvaluatePapersWithArticles(context.Background(), "2025-01-15", false, false)
	require.NoError(t, err)

	assert.False(t, resp.WordPressPosted)
	assert.Len(t, resp.Articles, 2)
	assert.Empty(t, resp.Publications)
	assert.Empty(t, wp.calls())
}

func TestPublishWithSingleArticleUsesArxivID(t *testing.T) {
	p, _ := newTestPipeline(t, map[string]http.HandlerFunc{"rest": createdPost(42)})

	results := p.PublishWith(context.Background(), WordPressConfig{}, []ArticleGenerationResult{sampleArticleResult()}, 0, "draft")

	require.Len(t, results, 1)
	assert.True(t, results[0].Success, results[0].Error)
	assert.Equal(t, "2501.00001", results[0].ArticleID)
}

func TestPublisherMergesRequestConfig(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	assert.Same(t, p.publisher, p.Publisher(WordPressConfig{}))
	other := p.Publisher(WordPressConfig{Endpoint: "https://other.example.com"})
	assert.Equal(t, "https://other.example.com", other.Config().Endpoint)
	assert.Equal(t, "editor", other.Config().Username)
}

func TestRunDailySendsDigest(t *testing.T) {
	p, _ := newTestPipeline(t, map[string]http.HandlerFunc{"rest": createdPost(42)})
	p.cfg.Schedule.PostToWordPress = true
	f := &fakeSMTP{}
	es := newTestSender(t, f)

	resp, err := p.RunDaily(context.Background(), "2025-01-15", es)
	require.NoError(t, err)

	assert.Len(t, resp.Publications, 2)
	require.Len(t, f.sent, 1)
	assert.Contains(t, f.sent[0].msg, "arXiv Paper Digest - 2025-01-15 (2 papers)")
	assert.Contains(t, f.sent[0].msg, "Post:  https://blog.example.com/?p=42")
}

func TestRunDailySendsFailureNotice(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	f := &fakeSMTP{}
	es := newTestSender(t, f)

	_, err := p.RunDaily(context.Background(), "not-a-date", es)
	require.Error(t, err)
	require.Len(t, f.sent, 1)
	assert.Contains(t, f.sent[0].msg, "daily run failed - not-a-date")
}

func TestBuildExtractionReport(t *testing.T) {
	c := ExtractedContent{
		FullText: "日本語テキスト",
		Abstract: "abs",
		Sections: map[string]string{"Results": "r", "Introduction": "i"},
		Tables: []Table{
			{Number: "Table 1", Structured: &TableData{Headers: []string{"h"}, Rows: [][]string{{"1"}, {"2"}, {"3"}, {"4"}}}},
			{Number: "Table 2", Content: "raw"},
		},
		Equations: make([]Equation, 7),
		Source:    "arxiv-html",
	}

	r := BuildExtractionReport("2501.00001", c)

	assert.Equal(t, "2501.00001", r.ArxivID)
	assert.Equal(t, []string{"Introduction", "Results"}, r.BasicInfo.SectionsFound)
	assert.Equal(t, 7, r.BasicInfo.FullTextLength)
	assert.Equal(t, "arxiv-html", r.BasicInfo.Source)
	require.Len(t, r.DetailedResults.Tables, 2)
	assert.Len(t, r.DetailedResults.Tables[0].SampleRows, 3)
	assert.Nil(t, r.DetailedResults.Tables[1].SampleRows)
	assert.Len(t, r.DetailedResults.Equations, 5)
	assert.NotNil(t, r.DetailedResults.Figures)
	assert.Equal(t, 7, r.ExtractionInfo.Stats.TotalEquations)
}

func TestTestExtractionRequiresID(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	_, err := p.TestExtraction(context.Background(), "")
	assert.EqualError(t, err, "arxivId is required")
}
