// Package security はチャットに送るテキストのエスケープとサニタイズを提供する。
//
// ContentSanitizerService はWikipediaから取得したテキストを
// チャットのHTMLパースモードで安全に表示できる形に変換する。
// bluemondayの許可リストベースのポリシーを使用する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はチャット向けテキストのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Escape はプレーンテキストからタグを除去し、HTMLの特殊文字をエスケープする。
	Escape(text string) string

	// SanitizeMarkup はチャットが解釈できるタグ（b, strong, i, em, u, s, code, pre, a）のみを残す。
	// aタグのhrefはhttp/httpsの絶対URLのみ許可する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeMarkup(html string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	text   *bluemonday.Policy
	markup *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// チャットのHTMLパースモードで使えるタグのみ
	p.AllowElements("b", "strong", "i", "em", "u", "s", "code", "pre")

	// リンクは絶対URLのみ。target/relはチャットでは意味がないので付与しない
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(false)

	return &contentSanitizer{
		text:   bluemonday.StrictPolicy(),
		markup: p,
	}
}

// Escape はプレーンテキストからタグを除去し、HTMLの特殊文字をエスケープする。
func (s *contentSanitizer) Escape(text string) string {
	return s.text.Sanitize(text)
}

// SanitizeMarkup は許可タグ以外を除去したHTMLを返す。
func (s *contentSanitizer) SanitizeMarkup(html string) string {
	return s.markup.Sanitize(html)
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
