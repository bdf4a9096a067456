// =============================================================================
// openai.go - OpenAI Chat Completions クライアント
// =============================================================================
//
// 採点と記事生成で使うLLM呼び出しです。
// OpenAI互換の /chat/completions エンドポイントに対して生のHTTPで送信します。
//
// 【設定】
//   OPENAI_API_KEY  - APIキー（必須）
//   OPENAI_API_BASE - ベースURL（デフォルト: https://api.openai.com/v1）
//
// 【デバッグ方法】
//   DEBUG_OPENAI=1      - リクエストのサマリーログを出力
//   DEBUG_OPENAI_FULL=1 - 完全なレスポンスJSONを出力
//
// =============================================================================
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrMissingAPIKey はAPIキー未設定時のエラー
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// ErrNoContent はLLMが空の応答を返した場合のエラー
var ErrNoContent = errors.New("LLM returned no content")

// Completer はプロンプトを送って応答テキストを受け取る
//
// テストではこのインターフェースのフェイクを使う。
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// ChatMessage は1メッセージ
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest は1回の呼び出しパラメータ
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ChatClient はOpenAI互換APIのクライアント
type ChatClient struct {
	APIKey   string
	BaseURL  string
	HTTP     *http.Client
	Throttle *Throttle
}

// NewChatClient は設定からクライアントを作成する
func NewChatClient(cfg OpenAIConfig, throttle *Throttle) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &ChatClient{
		APIKey:   cfg.APIKey,
		BaseURL:  strings.TrimRight(base, "/"),
		HTTP:     &http.Client{Timeout: timeout},
		Throttle: throttle,
	}
}

// Complete はプロンプトを送信し、最初の選択肢のテキストを返す
func (c *ChatClient) Complete(ctx context.Context, cr ChatRequest) (string, error) {
	if c.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if err := c.Throttle.Wait(ctx); err != nil {
		return "", err
	}

	b, err := json.Marshal(cr)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	if os.Getenv("DEBUG_OPENAI") != "" {
		debugf("openai request: model=%s messages=%d max_tokens=%d", cr.Model, len(cr.Messages), cr.MaxTokens)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai chat error: %s\n%s", resp.Status, truncateString(string(bodyBytes), 500))
	}

	if os.Getenv("DEBUG_OPENAI_FULL") != "" {
		debugf("full openai response:\n%s", string(bodyBytes))
	}

	var r chatResponse
	if err := json.Unmarshal(bodyBytes, &r); err != nil {
		return "", fmt.Errorf("openai response decode failed: %w", err)
	}
	if len(r.Choices) == 0 || strings.TrimSpace(r.Choices[0].Message.Content) == "" {
		return "", ErrNoContent
	}

	if os.Getenv("DEBUG_OPENAI") != "" {
		debugf("openai usage: prompt=%d completion=%d", r.Usage.PromptTokens, r.Usage.CompletionTokens)
	}
	return r.Choices[0].Message.Content, nil
}
