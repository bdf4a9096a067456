// =============================================================================
// wordpress.go - WordPress投稿
// =============================================================================
//
// 生成した記事をWordPressに下書きとして投稿します。
//
// 【投稿経路（トランスポート）】
//
// 優先度1: REST API（{endpoint}/wp-json/wp/v2/posts）
//     ↓ 403 の場合のみ
// 優先度2: REST API 代替ルート（{site}/?rest_route=/wp/v2/posts）
//     ↓ REST が失敗した場合（ステータス問わず）
// 優先度3: XML-RPC（{site}/xmlrpc.php の wp.newPost / wp.editPost）
//     ↓
// 全て失敗: 各経路のエラーをまとめて PublishResult.Error に入れる
//
// 【エラーの扱い】
//   投稿系の関数はエラーを返しません。成否はすべて PublishResult で表現します。
//
// 【必要な設定】
//   WORDPRESS_ENDPOINT     - サイトURL（例: https://example.com）
//   WORDPRESS_USERNAME     - ユーザー名
//   WORDPRESS_APP_PASSWORD - アプリケーションパスワード
//
// =============================================================================
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WordPressConfig はWordPressの接続設定
type WordPressConfig struct {
	Endpoint    string `json:"endpoint" toml:"endpoint"`
	Username    string `json:"username" toml:"username"`
	AppPassword string `json:"appPassword" toml:"app_password"`
}

// ConfigValidation は設定検証の結果
type ConfigValidation struct {
	IsValid       bool     `json:"isValid"`
	MissingFields []string `json:"missingFields"`
}

// Validate は必須項目の有無を確認する（通信は行わない）
func (c WordPressConfig) Validate() ConfigValidation {
	missing := []string{}
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(c.AppPassword) == "" {
		missing = append(missing, "appPassword")
	}
	return ConfigValidation{IsValid: len(missing) == 0, MissingFields: missing}
}

// Merge は空のフィールドを fallback の値で埋める
func (c WordPressConfig) Merge(fallback WordPressConfig) WordPressConfig {
	if c.Endpoint == "" {
		c.Endpoint = fallback.Endpoint
	}
	if c.Username == "" {
		c.Username = fallback.Username
	}
	if c.AppPassword == "" {
		c.AppPassword = fallback.AppPassword
	}
	return c
}

// baseAPIURL は REST API のベースURL（.../wp-json/wp/v2）を返す
func (c WordPressConfig) baseAPIURL() string {
	if strings.Contains(c.Endpoint, "/wp-json/wp/v2") {
		return strings.TrimRight(c.Endpoint, "/")
	}
	return strings.TrimRight(c.Endpoint, "/") + "/wp-json/wp/v2"
}

// siteURL は /wp-json 以下を除いたサイトURLを返す
func (c WordPressConfig) siteURL() string {
	ep := strings.TrimRight(c.Endpoint, "/")
	if i := strings.Index(ep, "/wp-json"); i >= 0 {
		ep = ep[:i]
	}
	return ep
}

// PreviewURL は下書きのプレビューURL
func (c WordPressConfig) PreviewURL(postID int) string {
	return fmt.Sprintf("%s/?p=%d&preview=true", c.siteURL(), postID)
}

// EditURL は管理画面の編集URL
func (c WordPressConfig) EditURL(postID int) string {
	return fmt.Sprintf("%s/wp-admin/post.php?post=%d&action=edit", c.siteURL(), postID)
}

// =============================================================================
// トランスポート
// =============================================================================

// wpPost はトランスポートに渡す投稿内容
type wpPost struct {
	Title      string
	Content    string
	Status     string
	Excerpt    string
	Tags       []string
	Categories []string
}

// postRef は作成・更新された投稿
type postRef struct {
	ID   int
	Link string
}

// PostTransport は投稿経路の1つ
type PostTransport interface {
	Name() string
	Create(ctx context.Context, post wpPost) (postRef, error)
	Update(ctx context.Context, id int, post wpPost) (postRef, error)
}

// statusError はHTTPステータス付きのエラー
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string { return e.Message }

func isForbidden(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == http.StatusForbidden
}

// restTransport は REST API（通常ルート / rest_route ルート）
type restTransport struct {
	name    string
	postURL func(id int) string // id=0 は新規作成
	cfg     WordPressConfig
	client  *http.Client
}

func newRESTTransport(cfg WordPressConfig, client *http.Client) *restTransport {
	base := cfg.baseAPIURL()
	return &restTransport{
		name: "rest",
		postURL: func(id int) string {
			if id > 0 {
				return fmt.Sprintf("%s/posts/%d", base, id)
			}
			return base + "/posts"
		},
		cfg:    cfg,
		client: client,
	}
}

func newAltRESTTransport(cfg WordPressConfig, client *http.Client) *restTransport {
	site := cfg.siteURL()
	return &restTransport{
		name: "rest-route",
		postURL: func(id int) string {
			if id > 0 {
				return fmt.Sprintf("%s/?rest_route=/wp/v2/posts/%d", site, id)
			}
			return site + "/?rest_route=/wp/v2/posts"
		},
		cfg:    cfg,
		client: client,
	}
}

func (t *restTransport) Name() string { return t.name }

func (t *restTransport) Create(ctx context.Context, post wpPost) (postRef, error) {
	return t.send(ctx, t.postURL(0), post)
}

func (t *restTransport) Update(ctx context.Context, id int, post wpPost) (postRef, error) {
	return t.send(ctx, t.postURL(id), post)
}

func (t *restTransport) send(ctx context.Context, u string, post wpPost) (postRef, error) {
	body, err := json.Marshal(map[string]any{
		"title":   post.Title,
		"content": post.Content,
		"status":  post.Status,
		"excerpt": post.Excerpt,
	})
	if err != nil {
		return postRef{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return postRef{}, err
	}
	req.SetBasicAuth(t.cfg.Username, t.cfg.AppPassword)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return postRef{}, fmt.Errorf("WordPress request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return postRef{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return postRef{}, wordPressHTTPError(resp, raw)
	}

	var created struct {
		ID   int    `json:"id"`
		Link string `json:"link"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.ID == 0 {
		return postRef{}, &statusError{Status: resp.StatusCode, Message: "WordPress API returned an unexpected response: " + truncateString(string(raw), 200)}
	}
	return postRef{ID: created.ID, Link: created.Link}, nil
}

// wordPressHTTPError はエラーレスポンスを説明的なエラーにする
func wordPressHTTPError(resp *http.Response, raw []byte) error {
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return &statusError{
			Status: resp.StatusCode,
			Message: fmt.Sprintf("WordPress API returned HTML instead of JSON. Status: %d. "+
				"This usually indicates an authentication or endpoint configuration issue.", resp.StatusCode),
		}
	}

	var wpErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	msg := resp.Status
	if json.Unmarshal(raw, &wpErr) == nil {
		if wpErr.Message != "" {
			msg = wpErr.Message
		} else if wpErr.Code != "" {
			msg = wpErr.Code
		}
	}
	return &statusError{Status: resp.StatusCode, Message: fmt.Sprintf("WordPress API error: %d - %s", resp.StatusCode, msg)}
}

// xmlrpcTransport は XML-RPC（wp.newPost / wp.editPost）
type xmlrpcTransport struct {
	cfg    WordPressConfig
	client *http.Client
}

var (
	reXMLRPCPostID = regexp.MustCompile(`<(?:string|int|i4)>\s*(\d+)\s*</(?:string|int|i4)>`)
	reXMLRPCFault  = regexp.MustCompile(`(?s)<name>faultString</name>\s*<value>(?:<string>)?(.*?)(?:</string>)?</value>`)
)

func (t *xmlrpcTransport) Name() string { return "xmlrpc" }

func (t *xmlrpcTransport) Create(ctx context.Context, post wpPost) (postRef, error) {
	body, err := t.call(ctx, "wp.newPost", 0, t.cfg.Username, t.cfg.AppPassword, xmlrpcPostStruct(post))
	if err != nil {
		return postRef{}, err
	}
	m := reXMLRPCPostID.FindStringSubmatch(body)
	if m == nil {
		return postRef{}, fmt.Errorf("XML-RPC response did not contain a post id")
	}
	id, _ := strconv.Atoi(m[1])
	return postRef{ID: id, Link: fmt.Sprintf("%s/?p=%d", t.cfg.siteURL(), id)}, nil
}

func (t *xmlrpcTransport) Update(ctx context.Context, id int, post wpPost) (postRef, error) {
	if _, err := t.call(ctx, "wp.editPost", 0, t.cfg.Username, t.cfg.AppPassword, id, xmlrpcPostStruct(post)); err != nil {
		return postRef{}, err
	}
	return postRef{ID: id, Link: fmt.Sprintf("%s/?p=%d", t.cfg.siteURL(), id)}, nil
}

func xmlrpcPostStruct(post wpPost) map[string]any {
	s := map[string]any{
		"post_title":   post.Title,
		"post_content": post.Content,
		"post_status":  post.Status,
		"post_excerpt": post.Excerpt,
	}
	terms := map[string]any{}
	if len(post.Tags) > 0 {
		terms["post_tag"] = post.Tags
	}
	if len(post.Categories) > 0 {
		terms["category"] = post.Categories
	}
	if len(terms) > 0 {
		s["terms_names"] = terms
	}
	return s
}

// call はXML-RPCメソッドを呼び出し、レスポンス本文を返す
func (t *xmlrpcTransport) call(ctx context.Context, method string, params ...any) (string, error) {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><methodCall><methodName>`)
	sb.WriteString(method)
	sb.WriteString("</methodName><params>")
	for _, p := range params {
		sb.WriteString("<param>")
		writeXMLRPCValue(&sb, p)
		sb.WriteString("</param>")
	}
	sb.WriteString("</params></methodCall>")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.siteURL()+"/xmlrpc.php", strings.NewReader(sb.String()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("XML-RPC request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	body := string(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &statusError{Status: resp.StatusCode, Message: fmt.Sprintf("XML-RPC error: %d", resp.StatusCode)}
	}
	if strings.Contains(body, "<fault>") {
		msg := "unknown fault"
		if m := reXMLRPCFault.FindStringSubmatch(body); m != nil {
			msg = strings.TrimSpace(m[1])
		}
		return "", fmt.Errorf("XML-RPC fault: %s", msg)
	}
	return body, nil
}

func writeXMLRPCValue(sb *strings.Builder, v any) {
	sb.WriteString("<value>")
	switch x := v.(type) {
	case string:
		sb.WriteString("<string>")
		_ = xml.EscapeText(sb, []byte(x))
		sb.WriteString("</string>")
	case int:
		sb.WriteString("<int>" + strconv.Itoa(x) + "</int>")
	case bool:
		if x {
			sb.WriteString("<boolean>1</boolean>")
		} else {
			sb.WriteString("<boolean>0</boolean>")
		}
	case []string:
		sb.WriteString("<array><data>")
		for _, s := range x {
			writeXMLRPCValue(sb, s)
		}
		sb.WriteString("</data></array>")
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("<struct>")
		for _, k := range keys {
			sb.WriteString("<member><name>" + k + "</name>")
			writeXMLRPCValue(sb, x[k])
			sb.WriteString("</member>")
		}
		sb.WriteString("</struct>")
	default:
		sb.WriteString("<string>")
		_ = xml.EscapeText(sb, []byte(fmt.Sprint(x)))
		sb.WriteString("</string>")
	}
	sb.WriteString("</value>")
}

// =============================================================================
// Publisher
// =============================================================================

// PostLedger は論文ID→投稿IDの対応を記録する（*Ledger が実装）
type PostLedger interface {
	Get(arxivID string) (PostRecord, bool, error)
	Put(rec PostRecord) error
}

// Publisher はトランスポートを順に試して投稿する
type Publisher struct {
	cfg      WordPressConfig
	client   *http.Client
	throttle *Throttle
	ledger   PostLedger
	now      func() time.Time

	rest   PostTransport
	alt    PostTransport
	xmlrpc PostTransport
}

// NewPublisher は投稿クライアントを作成する（throttle / ledger は nil 可）
func NewPublisher(cfg WordPressConfig, throttle *Throttle, ledger PostLedger) *Publisher {
	client := &http.Client{Timeout: 30 * time.Second}
	return &Publisher{
		cfg:      cfg,
		client:   client,
		throttle: throttle,
		ledger:   ledger,
		now:      time.Now,
		rest:     newRESTTransport(cfg, client),
		alt:      newAltRESTTransport(cfg, client),
		xmlrpc:   &xmlrpcTransport{cfg: cfg, client: client},
	}
}

// Config は接続設定を返す
func (p *Publisher) Config() WordPressConfig { return p.cfg }

// CreatePost は新規投稿を作成する
func (p *Publisher) CreatePost(ctx context.Context, post BlogPost) PublishResult {
	return p.dispatch(ctx, post, 0)
}

// UpdatePost は既存の投稿を更新する
func (p *Publisher) UpdatePost(ctx context.Context, postID int, post BlogPost) PublishResult {
	return p.dispatch(ctx, post, postID)
}

func (p *Publisher) dispatch(ctx context.Context, post BlogPost, postID int) PublishResult {
	res := PublishResult{ArticleID: post.ID}

	if v := p.cfg.Validate(); !v.IsValid {
		res.Error = "WordPress credentials not configured"
		return res
	}
	if err := p.throttle.Wait(ctx); err != nil {
		res.Error = err.Error()
		return res
	}

	wp := wpPost{
		Title:      post.Title,
		Content:    post.Content,
		Status:     post.Status,
		Excerpt:    post.Excerpt,
		Tags:       post.Tags,
		Categories: post.Categories,
	}
	if wp.Status == "" {
		wp.Status = "draft"
	}

	ref, transport, err := p.runChain(ctx, wp, postID)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.PostID = ref.ID
	res.PostURL = ref.Link
	res.PreviewURL = p.cfg.PreviewURL(ref.ID)
	res.EditURL = p.cfg.EditURL(ref.ID)
	res.Transport = transport
	res.Updated = postID > 0
	return res
}

// runChain は REST → (403なら) rest_route → XML-RPC の順に試す
func (p *Publisher) runChain(ctx context.Context, post wpPost, postID int) (postRef, string, error) {
	do := func(t PostTransport) (postRef, error) {
		if postID > 0 {
			return t.Update(ctx, postID, post)
		}
		return t.Create(ctx, post)
	}

	var errs []string
	ref, err := do(p.rest)
	if err == nil {
		return ref, p.rest.Name(), nil
	}
	errs = append(errs, p.rest.Name()+": "+err.Error())
	warnf("WordPress %s transport failed: %v", p.rest.Name(), err)

	if isForbidden(err) {
		ref, err = do(p.alt)
		if err == nil {
			return ref, p.alt.Name(), nil
		}
		errs = append(errs, p.alt.Name()+": "+err.Error())
		warnf("WordPress %s transport failed: %v", p.alt.Name(), err)
	}

	ref, err = do(p.xmlrpc)
	if err == nil {
		return ref, p.xmlrpc.Name(), nil
	}
	errs = append(errs, p.xmlrpc.Name()+": "+err.Error())
	warnf("WordPress %s transport failed: %v", p.xmlrpc.Name(), err)

	return postRef{}, "", errors.New("all WordPress transports failed: " + strings.Join(errs, "; "))
}

// BuildBlogPost は記事からHTML本文の投稿データを作る
func (p *Publisher) BuildBlogPost(r ArticleGenerationResult, status string) BlogPost {
	post := ConvertToBlogPost(r, p.now())
	post.Content = BuildPostHTML(r)
	post.Tags = BuildTags(r.Paper, r.Evaluation)
	post.Categories = MapSubjectsToCategories(r.Paper.Subjects)
	if status != "" {
		post.Status = status
	}
	return post
}

// PublishArticle は記事を投稿する
//
// 台帳に同じ論文の投稿があれば更新し、更新に失敗した場合は新規作成する。
func (p *Publisher) PublishArticle(ctx context.Context, r ArticleGenerationResult, status string) PublishResult {
	post := p.BuildBlogPost(r, status)
	arxivID := r.Paper.ArxivID

	var res PublishResult
	if rec, ok := p.lookup(arxivID); ok {
		infof("updating existing WordPress post %d for %s", rec.PostID, arxivID)
		res = p.UpdatePost(ctx, rec.PostID, post)
		if !res.Success {
			warnf("update of post %d failed, creating a new post: %s", rec.PostID, res.Error)
			res = p.CreatePost(ctx, post)
		}
	} else {
		res = p.CreatePost(ctx, post)
	}

	if res.Success {
		p.record(arxivID, res)
	}
	return res
}

func (p *Publisher) lookup(arxivID string) (PostRecord, bool) {
	if p.ledger == nil {
		return PostRecord{}, false
	}
	rec, ok, err := p.ledger.Get(arxivID)
	if err != nil {
		warnf("ledger lookup failed for %s: %v", arxivID, err)
		return PostRecord{}, false
	}
	return rec, ok
}

func (p *Publisher) record(arxivID string, res PublishResult) {
	if p.ledger == nil {
		return
	}
	now := p.now()
	rec := PostRecord{ArxivID: arxivID, PostID: res.PostID, PostURL: res.PostURL, Transport: res.Transport, PublishedAt: now, UpdatedAt: now}
	if prev, ok := p.lookup(arxivID); ok && !prev.PublishedAt.IsZero() {
		rec.PublishedAt = prev.PublishedAt
	}
	if err := p.ledger.Put(rec); err != nil {
		warnf("ledger write failed for %s: %v", arxivID, err)
	}
}

// PublishMultipleArticles は記事を順に投稿する（最後以外は delay 待機）
//
// 失敗した記事があっても残りの投稿を続ける。
func (p *Publisher) PublishMultipleArticles(ctx context.Context, articles []ArticleGenerationResult, delay time.Duration, status string) []PublishResult {
	results := make([]PublishResult, 0, len(articles))
	for i, a := range articles {
		res := p.PublishArticle(ctx, a, status)
		if res.Success {
			infof("published %s as post %d via %s", a.Paper.ArxivID, res.PostID, res.Transport)
		} else {
			warnf("failed to publish %s: %s", a.Paper.ArxivID, res.Error)
		}
		results = append(results, res)

		if i < len(articles)-1 && delay > 0 {
			select {
			case <-ctx.Done():
				for _, rest := range articles[i+1:] {
					results = append(results, PublishResult{ArticleID: p.BuildBlogPost(rest, status).ID, Error: ctx.Err().Error()})
				}
				return results
			case <-time.After(delay):
			}
		}
	}
	return results
}

// =============================================================================
// 接続テスト
// =============================================================================

// SiteInfo はサイトの基本情報
type SiteInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	WPVersion   string `json:"wpVersion,omitempty"`
}

// TestConnection はサイト情報を取得して接続を確認する
func (p *Publisher) TestConnection(ctx context.Context) (SiteInfo, error) {
	if v := p.cfg.Validate(); !v.IsValid {
		return SiteInfo{}, fmt.Errorf("WordPress configuration is incomplete: missing %s", strings.Join(v.MissingFields, ", "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.siteURL()+"/wp-json/", nil)
	if err != nil {
		return SiteInfo{}, err
	}
	req.SetBasicAuth(p.cfg.Username, p.cfg.AppPassword)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return SiteInfo{}, fmt.Errorf("WordPress connection failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SiteInfo{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SiteInfo{}, wordPressHTTPError(resp, raw)
	}

	var info struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Version     string `json:"version"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return SiteInfo{}, fmt.Errorf("WordPress site info decode failed: %w", err)
	}
	return SiteInfo{Name: info.Name, Description: info.Description, URL: info.URL, WPVersion: info.Version}, nil
}

// ProbeResult は1つの接続確認の結果
type ProbeResult struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status int    `json:"status,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// DetailedTestResult は詳細な接続テストの結果
type DetailedTestResult struct {
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Endpoint    string        `json:"endpoint"`
	TestResults []ProbeResult `json:"testResults"`
}

// TestConnectionDetailed は各エンドポイントを順に確認する
//
// 認証付きREST（users/me）かXML-RPCのどちらかが通れば成功。
func (p *Publisher) TestConnectionDetailed(ctx context.Context) DetailedTestResult {
	out := DetailedTestResult{Endpoint: p.cfg.Endpoint, TestResults: []ProbeResult{}}
	if v := p.cfg.Validate(); !v.IsValid {
		out.Error = "WordPress configuration is incomplete: missing " + strings.Join(v.MissingFields, ", ")
		return out
	}

	base, site := p.cfg.baseAPIURL(), p.cfg.siteURL()
	probes := []struct {
		name string
		url  string
		auth bool
	}{
		{"site-info", site + "/wp-json/", false},
		{"rest-posts", base + "/posts?per_page=1", false},
		{"rest-route-posts", site + "/?rest_route=/wp/v2/posts&per_page=1", false},
		{"rest-auth", base + "/users/me", true},
	}
	authOK := false
	for _, pr := range probes {
		r := p.probeGET(ctx, pr.name, pr.url, pr.auth)
		if pr.name == "rest-auth" && r.OK {
			authOK = true
		}
		out.TestResults = append(out.TestResults, r)
	}

	xr := ProbeResult{Name: "xmlrpc-auth", URL: site + "/xmlrpc.php"}
	x := &xmlrpcTransport{cfg: p.cfg, client: p.client}
	if _, err := x.call(ctx, "wp.getUsersBlogs", p.cfg.Username, p.cfg.AppPassword); err != nil {
		xr.Error = err.Error()
	} else {
		xr.OK = true
	}
	out.TestResults = append(out.TestResults, xr)

	out.Success = authOK || xr.OK
	if !out.Success {
		out.Error = "authenticated access failed on both REST API and XML-RPC"
	}
	return out
}

func (p *Publisher) probeGET(ctx context.Context, name, u string, auth bool) ProbeResult {
	r := ProbeResult{Name: name, URL: u}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if auth {
		req.SetBasicAuth(p.cfg.Username, p.cfg.AppPassword)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	r.Status = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		r.OK = true
		return r
	}
	r.Error = wordPressHTTPError(resp, raw).Error()
	return r
}
