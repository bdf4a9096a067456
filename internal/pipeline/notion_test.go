package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotionClipperRequiresToken(t *testing.T) {
	_, err := NewNotionClipper("", "db")
	assert.EqualError(t, err, "NOTION_TOKEN is required")

	nc, err := NewNotionClipper("secret_x", "db-123")
	require.NoError(t, err)
	assert.Equal(t, "db-123", nc.DatabaseID())
}

func TestNotionWithoutDatabase(t *testing.T) {
	nc, err := NewNotionClipper("secret_x", "")
	require.NoError(t, err)

	assert.Error(t, nc.ClipEvaluation(context.Background(), PaperEvaluationResult{}, ""))
	_, err = nc.FetchRecentEvaluations(context.Background(), time.Now())
	assert.Error(t, err)
	assert.Error(t, nc.CreateDatabase(context.Background(), ""))
}

func TestRichTextTruncates(t *testing.T) {
	rt := richText(strings.Repeat("あ", 2500))
	require.Len(t, rt, 1)
	assert.Equal(t, 2000, len([]rune(rt[0].Text.Content)))
}

func TestClippedFromPage(t *testing.T) {
	created := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)
	page := notionapi.Page{
		CreatedTime: created,
		Properties: notionapi.Properties{
			"Title":   &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: "Paper A"}}},
			"URL":     &notionapi.URLProperty{URL: "https://arxiv.org/abs/2501.00001"},
			"PostURL": &notionapi.URLProperty{URL: "https://blog.example.com/?p=42"},
			"ArxivID": &notionapi.RichTextProperty{RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: "2501.00001"}}}},
			"Reason":  &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "理由"}, {PlainText: "の続き"}}},
			"Score":   &notionapi.NumberProperty{Number: 12},
		},
	}

	assert.Equal(t, ClippedEvaluation{
		Title:     "Paper A",
		ArxivID:   "2501.00001",
		URL:       "https://arxiv.org/abs/2501.00001",
		PostURL:   "https://blog.example.com/?p=42",
		Score:     12,
		Reason:    "理由の続き",
		CreatedAt: created,
	}, clippedFromPage(page))
}
