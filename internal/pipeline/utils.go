// =============================================================================
// utils.go - ユーティリティ関数
// =============================================================================
//
// このファイルはシステム全体で使用する汎用的なヘルパー関数を提供します。
//
// 【このファイルで提供する機能】
//   - 文字列操作: 空白正規化、重複削除、rune単位の切り詰め
//   - JSON操作: 標準出力・ファイルへの書き出し
//   - ログ出力: logrusロガーへの薄いラッパー（warnf/infof/errorf/debugf）
//
// =============================================================================
package pipeline

import (
	"encoding/json"
	"io"
	"os"
	"strings"
)

// -----------------------------------------------------------------------------
// 文字列操作関数
// -----------------------------------------------------------------------------

// normalizeWhitespace は文字列内の連続する空白を単一スペースに正規化する
//
//	normalizeWhitespace("  hello   world  ")  // "hello world"
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// uniqStrings は文字列スライスから重複と空文字列を除去する（出現順を維持）
func uniqStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// truncateString は文字列を指定した長さに切り詰める
//
// maxLen文字を超える場合、末尾に"..."を付けて切り詰める。
// 日本語などのマルチバイト文字も正しく処理する（runeを使用）。
//
//	truncateString("Hello World", 8)  // "Hello..."
//	truncateString("短い", 10)        // "短い"
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// firstRunes は先頭n文字を返す（"..."を付けない）
func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// cleanExtractedText は各行をトリムし、空行を除去する
func cleanExtractedText(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// -----------------------------------------------------------------------------
// JSON操作関数
// -----------------------------------------------------------------------------

// WriteJSON は任意のデータを2スペースインデントのJSONで書き出す
//
//	./pipeline evaluate-by-date --date 2025-01-15 | jq '.results[].formattedOutput'
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteJSONFile は任意のデータをJSON形式でファイルに保存する（0o644）
func WriteJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadJSONFile はJSONファイルを読み込んで指定した型に変換する
func ReadJSONFile(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// -----------------------------------------------------------------------------
// ログ出力関数
// -----------------------------------------------------------------------------
//
// 呼び出し側の形はそのままに、出力先をlogrusロガーにしています。
// 標準出力はJSON結果の受け渡しに使うため、ログは標準エラー出力に出ます。

func warnf(format string, args ...any) {
	Logger().Warnf(format, args...)
}

func infof(format string, args ...any) {
	Logger().Infof(format, args...)
}

func errorf(format string, args ...any) {
	Logger().Errorf(format, args...)
}

func debugf(format string, args ...any) {
	Logger().Debugf(format, args...)
}
