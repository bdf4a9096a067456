package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCache is an in-memory ContentCache.
type memCache struct {
	mu   sync.Mutex
	data map[string]ExtractedContent
}

func (m *memCache) Get(_ context.Context, id string) (ExtractedContent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[id]
	return c, ok, nil
}

func (m *memCache) Set(_ context.Context, id string, c ExtractedContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = c
	return nil
}

func newExtractorServer(t *testing.T, pages map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testExtractConfig(base string) ExtractConfig {
	return ExtractConfig{
		HTMLBaseURL:  base + "/html/",
		Ar5ivBaseURL: base + "/ar5iv/",
		PDFBaseURL:   base + "/pdf/",
		UserAgent:    "test",
		Timeout:      5 * time.Second,
	}
}

func TestExtractorFallsBackToAr5iv(t *testing.T) {
	srv, hits := newExtractorServer(t, map[string]string{
		"/ar5iv/2501.00001": samplePaperHTML,
	})
	cache := &memCache{data: map[string]ExtractedContent{}}
	e := NewExtractor(testExtractConfig(srv.URL), nil, cache)

	c := e.Extract(context.Background(), "2501.00001")

	assert.Equal(t, "ar5iv", c.Source)
	assert.Equal(t, "We propose X.", c.Abstract)
	assert.Equal(t, []string{"/html/2501.00001v1", "/ar5iv/2501.00001"}, *hits)
	assert.Contains(t, cache.data, "2501.00001")
}

func TestExtractorResolvesImagesAgainstPaperDirectory(t *testing.T) {
	srv, _ := newExtractorServer(t, map[string]string{
		"/html/2501.00001v1": latexmlPaperHTML,
	})
	e := NewExtractor(testExtractConfig(srv.URL), nil, nil)

	c := e.Extract(context.Background(), "2501.00001")

	assert.Equal(t, "arxiv-html", c.Source)
	require.Len(t, c.Figures, 1)
	assert.Equal(t, srv.URL+"/html/2501.00001v1/x1.png", c.Figures[0].ImageURL)
}

func TestExtractorResolvesImagesAfterRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/html/2501.00001v1":
			http.Redirect(w, r, "/html/2501.00001v2/", http.StatusFound)
		case "/html/2501.00001v2/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(latexmlPaperHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	e := NewExtractor(testExtractConfig(srv.URL), nil, nil)

	c := e.Extract(context.Background(), "2501.00001")

	require.Len(t, c.Figures, 1)
	assert.Equal(t, srv.URL+"/html/2501.00001v2/x1.png", c.Figures[0].ImageURL)
}

func TestExtractorIgnoresCallerCancellation(t *testing.T) {
	srv, _ := newExtractorServer(t, map[string]string{
		"/html/2501.00001v1": latexmlPaperHTML,
	})
	e := NewExtractor(testExtractConfig(srv.URL), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the shared extraction serves every collapsed caller, so it runs
	// to completion even when the first caller has gone away
	c := e.Extract(ctx, "2501.00001")

	assert.Equal(t, "arxiv-html", c.Source)
	assert.Len(t, c.Tables, 1)
}

func TestDirectoryURL(t *testing.T) {
	assert.Equal(t, "https://arxiv.org/html/2501.00001v1/", directoryURL("https://arxiv.org/html/2501.00001v1"))
	assert.Equal(t, "https://arxiv.org/html/2501.00001v1/", directoryURL("https://arxiv.org/html/2501.00001v1/"))
}

func TestExtractorUsesCache(t *testing.T) {
	srv, hits := newExtractorServer(t, nil)
	cache := &memCache{data: map[string]ExtractedContent{
		"2501.00001": {Abstract: "cached", Source: "arxiv-html"},
	}}
	e := NewExtractor(testExtractConfig(srv.URL), nil, cache)

	c := e.Extract(context.Background(), "2501.00001")

	assert.Equal(t, "cached", c.Abstract)
	assert.Empty(t, *hits)
}

func TestExtractorAllSourcesFail(t *testing.T) {
	srv, _ := newExtractorServer(t, map[string]string{
		"/html/2501.00001v1": `<html><body><p>no structure</p></body></html>`,
	})
	e := NewExtractor(testExtractConfig(srv.URL), nil, nil)

	c := e.Extract(context.Background(), "2501.00001")
	assert.True(t, c.IsEmpty())
}

func TestExtractorSkip(t *testing.T) {
	cfg := testExtractConfig("http://127.0.0.1:0")
	cfg.Skip = true
	e := NewExtractor(cfg, nil, nil)

	assert.False(t, e.Enabled())
	assert.True(t, e.Extract(context.Background(), "2501.00001").IsEmpty())
}

func TestDescribeExtraction(t *testing.T) {
	c, err := ParseHTMLString(samplePaperHTML, "https://arxiv.org/html/2501.00001v1/")
	require.NoError(t, err)

	info := DescribeExtraction(c)

	assert.Equal(t, 3, info.Stats.TotalFigures)
	assert.Equal(t, 2, info.Stats.FiguresWithImages)
	assert.Equal(t, 2, info.Stats.TotalTables)
	assert.Equal(t, 2, info.Stats.TablesWithStructure)
	require.Len(t, info.StructuredTables, 2)
	assert.Equal(t, 2, info.StructuredTables[0].RowCount)
	assert.Equal(t, 2, info.StructuredTables[0].ColumnCount)
}
