// Package security はアプリケーションのセキュリティ機能を提供する。
//
// Sanitizer はユーザーが入力した自己紹介・学校紹介・求人本文・応募メッセージから
// 危険なHTMLを取り除く。bluemondayの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力のサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Text はすべてのタグを除去したプレーンテキストを返す。前後の空白は除去する。
	Text(raw string) string
	// RichText は簡単な書式タグ（p, br, ul, ol, li, strong, em, a）のみを残したHTMLを返す。
	RichText(raw string) string
}

// Sanitizer はTextSanitizerの実装。ポリシーはスレッドセーフに共有できる。
type Sanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
// リッチテキストのポリシー:
//   - 許可タグ: p, br, ul, ol, li, strong, em, a
//   - aタグ: http/httpsの絶対URLのみ、target="_blank"とrel="noopener noreferrer"を付与
//   - 画像・script・iframe・styleおよびon*属性は除去
func NewSanitizer() *Sanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowURLSchemes("http", "https")
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// Text はすべてのタグを除去したプレーンテキストを返す。
// エスケープされた文字実体は元の文字に戻す（出力はテキストとして扱うこと）。
func (s *Sanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// RichText は許可された書式タグのみを残したHTMLを返す。
func (s *Sanitizer) RichText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(s.rich.Sanitize(raw))
}

// compile-time interface check
var _ TextSanitizer = (*Sanitizer)(nil)
