// =============================================================================
// arxiv.go - arXivメタデータ取得
// =============================================================================
//
// arXiv Atom API（export.arxiv.org/api/query）から論文メタデータを取得します。
// Atomフィードの解析には gofeed を使用します。
//
// 【提供する操作】
//   - ExtractArxivID:    URLや文字列からarXiv ID（例: 2401.12345）を取り出す
//   - FetchPaperInfo:    1件の論文メタデータを取得
//   - FetchPapersByDate: 指定日に投稿された論文をカテゴリごとにページング取得
//
// 【日付指定取得の流れ】
//  1. カテゴリ（cs.AI / cs.CV / cs.LG）ごとに投稿日降順でページを取得
//  2. 投稿日が対象日と一致するエントリを収集
//  3. 対象日より古いエントリが現れたらそのカテゴリは終了
//  4. 空ページ・HTTPエラー・解析エラーでもそのカテゴリだけ打ち切り（全体は継続）
//
// ページ間の待機はarXiv用のスロットル（デフォルト1秒間隔）で行います。
//
// =============================================================================
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ErrInvalidArxivURL はarXiv IDを含まない入力に対するエラー
var ErrInvalidArxivURL = errors.New("Invalid arXiv URL")

var (
	reArxivID      = regexp.MustCompile(`\d{4}\.\d{4,5}`)
	reArxivEntryID = regexp.MustCompile(`([0-9]{4}\.[0-9]{4,5})(?:v[0-9]+)?`)
	reISODate      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ExtractArxivID はURLまたは文字列からarXiv IDを取り出す
//
//	ExtractArxivID("https://arxiv.org/abs/2401.12345v2")  // "2401.12345"
//	ExtractArxivID("not a paper")                        // ErrInvalidArxivURL
func ExtractArxivID(s string) (string, error) {
	id := reArxivID.FindString(s)
	if id == "" {
		return "", ErrInvalidArxivURL
	}
	return id, nil
}

// IsValidDate は YYYY-MM-DD 形式かつ実在する日付かを返す
func IsValidDate(date string) bool {
	if !reISODate.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// ArxivClient はarXiv APIクライアント
type ArxivClient struct {
	BaseURL    string
	Categories []string
	PageSize   int
	DebugLimit int

	fetch    FetchConfig
	throttle *Throttle
}

// NewArxivClient は設定からクライアントを作成する
func NewArxivClient(cfg ArxivConfig, throttle *Throttle) *ArxivClient {
	return &ArxivClient{
		BaseURL:    cfg.APIURL,
		Categories: append([]string{}, cfg.Categories...),
		PageSize:   cfg.PageSize,
		DebugLimit: cfg.DebugLimit,
		fetch:      NewFetchConfig(cfg.UserAgent, cfg.Timeout),
		throttle:   throttle,
	}
}

// FetchPaperInfo は1件の論文メタデータを取得する
//
// ID抽出に失敗した場合、ネットワークアクセス前に ErrInvalidArxivURL を返す。
func (c *ArxivClient) FetchPaperInfo(ctx context.Context, urlOrID string) (PaperInfo, error) {
	id, err := ExtractArxivID(urlOrID)
	if err != nil {
		return PaperInfo{}, err
	}

	q := url.Values{}
	q.Set("id_list", id)

	feed, err := c.fetchFeed(ctx, q)
	if err != nil {
		return PaperInfo{}, fmt.Errorf("fetch arXiv paper %s: %w", id, err)
	}

	for _, item := range feed.Items {
		if p, ok := paperFromItem(item); ok {
			return p, nil
		}
	}
	return PaperInfo{}, fmt.Errorf("arXiv paper %s: no usable entry in response", id)
}

// FetchPapersByDate は指定日に投稿された論文を全カテゴリから取得する
//
// debug が true の場合、カテゴリあたり DebugLimit 件で打ち切る。
// 結果はカテゴリ順・取得順のまま返す（重複するIDは最初の1件のみ）。
func (c *ArxivClient) FetchPapersByDate(ctx context.Context, date string, debug bool) ([]PaperInfo, error) {
	if !IsValidDate(date) {
		return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD", date)
	}

	var papers []PaperInfo
	seen := map[string]bool{}

	for _, cat := range c.Categories {
		found, err := c.fetchCategoryByDate(ctx, cat, date, debug)
		if err != nil {
			// contextのキャンセルは全体を中断
			if ctx.Err() != nil {
				return papers, ctx.Err()
			}
			warnf("arXiv category %s abandoned: %v", cat, err)
		}
		for _, p := range found {
			if seen[p.ArxivID] {
				continue
			}
			seen[p.ArxivID] = true
			papers = append(papers, p)
		}
		infof("arXiv category %s: %d papers on %s", cat, len(found), date)
	}

	return papers, nil
}

// fetchCategoryByDate は1カテゴリ分のページングを行う
//
// エラー時もそれまでに集めた結果を返す。
func (c *ArxivClient) fetchCategoryByDate(ctx context.Context, cat, date string, debug bool) ([]PaperInfo, error) {
	var out []PaperInfo
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	for start := 0; ; start += pageSize {
		q := url.Values{}
		q.Set("search_query", "cat:"+cat)
		q.Set("start", strconv.Itoa(start))
		q.Set("max_results", strconv.Itoa(pageSize))
		q.Set("sortBy", "submittedDate")
		q.Set("sortOrder", "descending")

		feed, err := c.fetchFeed(ctx, q)
		if err != nil {
			return out, err
		}
		if len(feed.Items) == 0 {
			return out, nil
		}

		for _, item := range feed.Items {
			published := itemDate(item)
			if published == "" {
				continue
			}
			// 降順なので、対象日より古ければこのカテゴリは終わり
			if published < date {
				return out, nil
			}
			if published != date {
				continue
			}
			p, ok := paperFromItem(item)
			if !ok {
				debugf("arXiv %s: dropping entry without title/abstract/id", cat)
				continue
			}
			out = append(out, p)
			if debug && c.DebugLimit > 0 && len(out) >= c.DebugLimit {
				return out, nil
			}
		}
	}
}

// fetchFeed はスロットル待機後にAtomフィードを取得・解析する
func (c *ArxivClient) fetchFeed(ctx context.Context, q url.Values) (*gofeed.Feed, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.BaseURL + "?" + q.Encode()
	resp, err := fetchResponse(ctx, u, "application/atom+xml", c.fetch)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("atom parse failed: %w", err)
	}
	return feed, nil
}

// paperFromItem はAtomエントリを PaperInfo に変換する
//
// タイトル・アブストラクト・IDのいずれかが欠けていれば ok=false。
func paperFromItem(item *gofeed.Item) (PaperInfo, bool) {
	if item == nil {
		return PaperInfo{}, false
	}

	id := reArxivEntryID.FindStringSubmatch(item.GUID)
	if id == nil {
		id = reArxivEntryID.FindStringSubmatch(item.Link)
	}
	title := normalizeWhitespace(item.Title)
	abstract := normalizeWhitespace(item.Description)
	if id == nil || title == "" || abstract == "" {
		return PaperInfo{}, false
	}

	authors := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			authors = append(authors, strings.TrimSpace(a.Name))
		}
	}

	return PaperInfo{
		Title:         title,
		Authors:       authors,
		Abstract:      abstract,
		ArxivID:       id[1],
		Subjects:      uniqStrings(item.Categories),
		PublishedDate: itemDate(item),
	}, true
}

// itemDate はエントリの投稿日を YYYY-MM-DD で返す
func itemDate(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format("2006-01-02")
	}
	if i := strings.Index(item.Published, "T"); i > 0 {
		return item.Published[:i]
	}
	return ""
}
