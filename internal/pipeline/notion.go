// =============================================================================
// notion.go - Notionへの評価結果クリップ
// =============================================================================
//
// 評価した論文をNotionデータベースに1行ずつ保存します。
// 保存した行はダイジェストメール（cmd/lambda/digest）の入力になります。
//
// 【データベース構成】
//   Title    - 論文タイトル（title）
//   URL      - arXiv abs ページ（url）
//   ArxivID  - arXiv ID（rich_text）
//   Score    - 最終スコア（number）
//   Subjects - カテゴリ（multi_select）
//   Reason   - 採点理由（rich_text、2000文字まで）
//   PostURL  - WordPress投稿URL（url、投稿済みの場合のみ）
//
// 【必要な環境変数】
//   NOTION_TOKEN       - インテグレーショントークン
//   NOTION_DATABASE_ID - 既存データベースID（省略時は NOTION_PAGE_ID 配下に作成）
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
)

// Notionのrich_textは1ブロック2000文字まで
const notionTextLimit = 2000

// NotionClipper は評価結果をNotionに保存する
type NotionClipper struct {
	client *notionapi.Client
	dbID   notionapi.DatabaseID
}

// NewNotionClipper はクリッパーを作成する
func NewNotionClipper(token, databaseID string) (*NotionClipper, error) {
	if token == "" {
		return nil, fmt.Errorf("NOTION_TOKEN is required")
	}
	nc := &NotionClipper{client: notionapi.NewClient(notionapi.Token(token))}
	if databaseID != "" {
		nc.dbID = notionapi.DatabaseID(databaseID)
	}
	return nc, nil
}

// DatabaseID は使用中のデータベースIDを返す
func (nc *NotionClipper) DatabaseID() string { return string(nc.dbID) }

// CreateDatabase は pageID 配下に評価用データベースを作成する
func (nc *NotionClipper) CreateDatabase(ctx context.Context, pageID string) error {
	if pageID == "" {
		return fmt.Errorf("NOTION_PAGE_ID is required to create a new database")
	}

	req := &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(pageID),
		},
		Title: []notionapi.RichText{
			{Text: &notionapi.Text{Content: "arXiv Paper Evaluations"}},
		},
		Properties: notionapi.PropertyConfigs{
			"Title":    notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigTypeTitle},
			"URL":      notionapi.URLPropertyConfig{Type: notionapi.PropertyConfigTypeURL},
			"ArxivID":  notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
			"Reason":   notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
			"PostURL":  notionapi.URLPropertyConfig{Type: notionapi.PropertyConfigTypeURL},
			"Subjects": notionapi.MultiSelectPropertyConfig{Type: notionapi.PropertyConfigTypeMultiSelect},
			"Score": notionapi.NumberPropertyConfig{
				Type:   notionapi.PropertyConfigTypeNumber,
				Number: notionapi.NumberFormat{Format: notionapi.FormatNumber},
			},
		},
	}

	db, err := nc.client.Database.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create Notion database: %w", err)
	}
	nc.dbID = notionapi.DatabaseID(db.ID)
	infof("Notion database created: %s (https://notion.so/%s)", db.ID, db.ID)
	return nil
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: truncateString(s, notionTextLimit)}}}
}

// ClipEvaluation は1件の評価結果を保存する（postURL は空でもよい）
func (nc *NotionClipper) ClipEvaluation(ctx context.Context, r PaperEvaluationResult, postURL string) error {
	if nc.dbID == "" {
		return fmt.Errorf("database ID not set")
	}

	subjects := make([]notionapi.Option, 0, len(r.Paper.Subjects))
	for _, s := range r.Paper.Subjects {
		subjects = append(subjects, notionapi.Option{Name: s})
	}

	props := notionapi.Properties{
		"Title": notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(r.Paper.Title),
		},
		"URL": notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  "https://arxiv.org/abs/" + r.Paper.ArxivID,
		},
		"ArxivID": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(r.Paper.ArxivID),
		},
		"Score": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(r.Evaluation.FinalScore),
		},
		"Subjects": notionapi.MultiSelectProperty{
			Type:        notionapi.PropertyTypeMultiSelect,
			MultiSelect: subjects,
		},
	}
	if r.FormattedOutput.Reasoning != "" {
		props["Reason"] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(r.FormattedOutput.Reasoning),
		}
	}
	if postURL != "" {
		props["PostURL"] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: postURL}
	}

	_, err := nc.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: nc.dbID,
		},
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("failed to clip evaluation %s: %w", r.Paper.ArxivID, err)
	}
	return nil
}

// ClipEvaluations は複数件を保存する。失敗した行は警告して続行する。
func (nc *NotionClipper) ClipEvaluations(ctx context.Context, results []PaperEvaluationResult, postURLs map[string]string) int {
	n := 0
	for _, r := range results {
		if err := nc.ClipEvaluation(ctx, r, postURLs[r.Paper.ArxivID]); err != nil {
			warnf("%v", err)
			continue
		}
		n++
	}
	return n
}

// ClippedEvaluation はNotionから読み戻した1行
type ClippedEvaluation struct {
	Title     string
	ArxivID   string
	URL       string
	PostURL   string
	Score     int
	Reason    string
	CreatedAt time.Time
}

// FetchRecentEvaluations は since 以降に作成された行を新しい順に返す
func (nc *NotionClipper) FetchRecentEvaluations(ctx context.Context, since time.Time) ([]ClippedEvaluation, error) {
	if nc.dbID == "" {
		return nil, fmt.Errorf("database ID not set")
	}

	var out []ClippedEvaluation
	var cursor notionapi.Cursor
	for {
		resp, err := nc.client.Database.Query(ctx, nc.dbID, &notionapi.DatabaseQueryRequest{
			Sorts: []notionapi.SortObject{
				{Timestamp: notionapi.TimestampCreated, Direction: notionapi.SortOrderDESC},
			},
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query Notion database: %w", err)
		}

		for _, page := range resp.Results {
			if page.CreatedTime.Before(since) {
				// 新しい順なのでここで打ち切り
				return out, nil
			}
			out = append(out, clippedFromPage(page))
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return out, nil
}

func clippedFromPage(page notionapi.Page) ClippedEvaluation {
	c := ClippedEvaluation{CreatedAt: page.CreatedTime}
	for name, prop := range page.Properties {
		switch p := prop.(type) {
		case *notionapi.TitleProperty:
			c.Title = plainText(p.Title)
		case *notionapi.URLProperty:
			if name == "PostURL" {
				c.PostURL = p.URL
			} else {
				c.URL = p.URL
			}
		case *notionapi.NumberProperty:
			c.Score = int(p.Number)
		case *notionapi.RichTextProperty:
			switch name {
			case "ArxivID":
				c.ArxivID = plainText(p.RichText)
			case "Reason":
				c.Reason = plainText(p.RichText)
			}
		}
	}
	return c
}

func plainText(rt []notionapi.RichText) string {
	s := ""
	for _, t := range rt {
		if t.PlainText != "" {
			s += t.PlainText
		} else if t.Text != nil {
			s += t.Text.Content
		}
	}
	return s
}
