// =============================================================================
// fetch.go - HTTP取得の共通ロジック
// =============================================================================
//
// arXiv API / arXiv HTML / ar5iv / PDF の取得で共有するHTTPヘルパーです。
//
// 【ポイント】
//   - HTTPクライアントは1つを共有（コネクションプールを再利用）
//   - すべての呼び出しはcontext.Contextを受け取り、キャンセル可能
//   - 200番台以外のステータスはエラーとして扱う
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FetchConfig はHTTP取得の設定
type FetchConfig struct {
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
}

// NewFetchConfig はUser-Agentとタイムアウトを指定して取得設定を作る
func NewFetchConfig(userAgent string, timeout time.Duration) FetchConfig {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return FetchConfig{
		UserAgent: userAgent,
		Timeout:   timeout,
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (cfg FetchConfig) client() *http.Client {
	if cfg.Client != nil {
		return cfg.Client
	}
	return &http.Client{Timeout: cfg.Timeout}
}

// fetchResponse はGETを実行し、2xx以外をエラーにする
//
// 呼び出し元でresp.Body.Close()を行う必要がある。
func fetchResponse(ctx context.Context, u, accept string, cfg FetchConfig) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := cfg.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %s", u, resp.Status)
	}
	return resp, nil
}

// fetchDoc はHTMLページを取得してgoqueryドキュメントにする
//
// 2つ目の戻り値はリダイレクト後の最終URL（相対URLの解決に使う）。
func fetchDoc(ctx context.Context, u string, cfg FetchConfig) (*goquery.Document, string, error) {
	resp, err := fetchResponse(ctx, u, "text/html,application/xhtml+xml", cfg)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	finalURL := u
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return doc, finalURL, nil
}

// directoryURL はパス末尾に "/" を付ける
//
// arXiv HTML の論文ページ（/html/2501.00001v1）は画像と同じディレクトリを指すため、
// 末尾スラッシュがないと "x1.png" が /html/x1.png に解決されてしまう。
func directoryURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || strings.HasSuffix(parsed.Path, "/") {
		return u
	}
	parsed.Path += "/"
	parsed.RawPath = ""
	return parsed.String()
}

// fetchBytes はレスポンスボディ全体を取得する（PDFなど）
func fetchBytes(ctx context.Context, u, accept string, cfg FetchConfig) ([]byte, error) {
	resp, err := fetchResponse(ctx, u, accept, cfg)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// resolveURL は相対URLを絶対URLに変換する（失敗時は空文字列）
func resolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
