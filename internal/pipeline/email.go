// =============================================================================
// email.go - メール通知
// =============================================================================
//
// Gmail SMTPで日次ダイジェストと失敗通知を送信します。
//
// 【送信するメール】
//   SendDailyDigest   - その日に評価した論文の一覧（スコア・投稿URL付き）
//   SendFailureNotice - 日次処理が失敗したときのエラー通知
//
// 【必要な環境変数】
//   EMAIL_FROM     - 送信元メールアドレス（Gmail）
//   EMAIL_PASSWORD - Gmailアプリパスワード（通常のパスワードではない！）
//   EMAIL_TO       - 送信先メールアドレス（カンマ区切りで複数可）
//
// 【リトライ】
//   失敗時は 2秒→4秒 と待機時間を倍にして最大3回試行
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"math"
	"net/smtp"
	"strings"
	"time"
)

// EmailConfig はSMTP接続の設定
type EmailConfig struct {
	From     string
	Password string
	To       []string
	SMTPHost string // "smtp.gmail.com"
	SMTPPort string // "587"
}

// sendFunc は smtp.SendMail と同じシグネチャ（テストで差し替える）
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender はメール送信を担当する
type EmailSender struct {
	config  EmailConfig
	send    sendFunc
	backoff time.Duration
	now     func() time.Time
}

// NewEmailSender は送信者を作成する
//
// 【注意】通常のGmailパスワードは使用できません。アプリパスワードを使用してください。
func NewEmailSender(from, password, to string) (*EmailSender, error) {
	if from == "" {
		return nil, fmt.Errorf("EMAIL_FROM is required")
	}
	if password == "" {
		return nil, fmt.Errorf("EMAIL_PASSWORD is required (use Gmail App Password)")
	}
	if to == "" {
		return nil, fmt.Errorf("EMAIL_TO is required")
	}

	var toList []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			toList = append(toList, addr)
		}
	}

	return &EmailSender{
		config: EmailConfig{
			From:     from,
			Password: password,
			To:       toList,
			SMTPHost: "smtp.gmail.com",
			SMTPPort: "587",
		},
		send:    smtp.SendMail,
		backoff: time.Second,
		now:     time.Now,
	}, nil
}

// =============================================================================
// 日次ダイジェスト
// =============================================================================

// DigestEntry はダイジェストの1行
type DigestEntry struct {
	Title   string
	ArxivID string
	Score   int
	PostURL string
	Reason  string
}

// DigestEntriesFromResponse は日次処理の結果からダイジェスト行を作る
func DigestEntriesFromResponse(resp DateEvaluationResponse) []DigestEntry {
	postURLs := map[string]string{}
	for i, pub := range resp.Publications {
		if pub.Success && i < len(resp.Articles) {
			postURLs[resp.Articles[i].Paper.ArxivID] = pub.PostURL
		}
	}

	entries := make([]DigestEntry, 0, len(resp.Results))
	for _, r := range resp.Results {
		entries = append(entries, DigestEntry{
			Title:   r.Paper.Title,
			ArxivID: r.Paper.ArxivID,
			Score:   r.Evaluation.FinalScore,
			PostURL: postURLs[r.Paper.ArxivID],
			Reason:  r.FormattedOutput.Reasoning,
		})
	}
	return entries
}

// DigestEntriesFromNotion はNotionから読み戻した行をダイジェスト行にする
func DigestEntriesFromNotion(rows []ClippedEvaluation) []DigestEntry {
	entries := make([]DigestEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, DigestEntry{
			Title:   r.Title,
			ArxivID: r.ArxivID,
			Score:   r.Score,
			PostURL: r.PostURL,
			Reason:  r.Reason,
		})
	}
	return entries
}

// SendDailyDigest は評価結果の一覧を送信する
func (es *EmailSender) SendDailyDigest(ctx context.Context, date string, entries []DigestEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("no evaluations to send")
	}
	subject := fmt.Sprintf("arXiv Paper Digest - %s (%d papers)", date, len(entries))
	msg := es.buildEmailMessage(subject, es.generateDigestBody(date, entries))
	return es.sendWithRetry(ctx, msg)
}

// generateDigestBody はプレーンテキストの本文を生成する
//
//	arXiv Paper Digest - 2025-01-15
//	Generated: 2025-01-16 09:00:00
//
//	========================================
//	Total Papers: 3
//	========================================
//
//	[1] 12点  Title of the paper
//	    arXiv: https://arxiv.org/abs/2501.01234
//	    Post:  https://example.com/?p=42
func (es *EmailSender) generateDigestBody(date string, entries []DigestEntry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "arXiv Paper Digest - %s\n", date)
	fmt.Fprintf(&sb, "Generated: %s\n\n", es.now().Format("2006-01-02 15:04:05"))
	sb.WriteString("========================================\n")
	fmt.Fprintf(&sb, "Total Papers: %d\n", len(entries))
	sb.WriteString("========================================\n\n")

	for i, e := range entries {
		fmt.Fprintf(&sb, "[%d] %d点  %s\n", i+1, e.Score, e.Title)
		fmt.Fprintf(&sb, "    arXiv: https://arxiv.org/abs/%s\n", e.ArxivID)
		if e.PostURL != "" {
			fmt.Fprintf(&sb, "    Post:  %s\n", e.PostURL)
		}
		if e.Reason != "" {
			sb.WriteString("\n    Reason:\n")
			for _, line := range strings.Split(truncateString(e.Reason, 600), "\n") {
				if strings.TrimSpace(line) != "" {
					fmt.Fprintf(&sb, "    %s\n", line)
				}
			}
		}
		sb.WriteString("\n----------------------------------------\n\n")
	}

	sb.WriteString("\nGenerated by paper-relay\n")
	return sb.String()
}

// SendFailureNotice は日次処理の失敗を通知する
func (es *EmailSender) SendFailureNotice(ctx context.Context, date string, cause error) error {
	subject := fmt.Sprintf("[paper-relay] daily run failed - %s", date)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily run for %s failed.\n\n", date)
	fmt.Fprintf(&sb, "Time:  %s\n", es.now().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Error: %v\n", cause)

	return es.sendWithRetry(ctx, es.buildEmailMessage(subject, sb.String()))
}

// =============================================================================
// メッセージ構築と送信
// =============================================================================

// buildEmailMessage はRFC 5322形式のメッセージを構築する（ヘッダーと本文は空行で区切る）
func (es *EmailSender) buildEmailMessage(subject, body string) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", es.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(es.config.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

// sendWithRetry は指数バックオフでリトライしながら送信する
func (es *EmailSender) sendWithRetry(ctx context.Context, msg []byte) error {
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			wait := time.Duration(math.Pow(2, float64(i))) * es.backoff
			infof("Retrying email send in %v...", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err := es.deliver(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		warnf("Email send failed (attempt %d/%d): %v", i+1, maxRetries, err)
	}

	return fmt.Errorf("failed to send email after %d retries: %w", maxRetries, lastErr)
}

func (es *EmailSender) deliver(msg []byte) error {
	auth := smtp.PlainAuth("", es.config.From, es.config.Password, es.config.SMTPHost)
	addr := es.config.SMTPHost + ":" + es.config.SMTPPort
	if err := es.send(addr, auth, es.config.From, es.config.To, msg); err != nil {
		return fmt.Errorf("SMTP send failed: %w (check EMAIL_PASSWORD is a Gmail App Password)", err)
	}
	return nil
}

// NewEmailSenderFromConfig returns nil when email is not configured.
func NewEmailSenderFromConfig(s EmailSettings) (*EmailSender, error) {
	if s.From == "" && s.Password == "" && s.To == "" {
		return nil, nil
	}
	return NewEmailSender(s.From, s.Password, s.To)
}

// SendDigestFromNotion はNotionに保存された since 以降の評価結果を送信し、件数を返す
func SendDigestFromNotion(ctx context.Context, nc *NotionClipper, es *EmailSender, since time.Time) (int, error) {
	rows, err := nc.FetchRecentEvaluations(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		infof("no evaluations clipped since %s", since.Format(time.RFC3339))
		return 0, nil
	}
	label := since.Format("2006-01-02") + " ~ " + es.now().Format("2006-01-02")
	if err := es.SendDailyDigest(ctx, label, DigestEntriesFromNotion(rows)); err != nil {
		return 0, err
	}
	return len(rows), nil
}
