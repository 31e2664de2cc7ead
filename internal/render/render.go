// Package render は記事をチャットに送るページ単位のHTMLに変換する。
package render

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/paginate"
	"github.com/hitoshi/tgwiki/internal/security"
)

var (
	// ErrPageOutOfRange はページ番号が[1, Total]の範囲外の場合のエラー。
	ErrPageOutOfRange = errors.New("render: page out of range")
	// ErrEmpty は表示するテキストがない場合のエラー。
	ErrEmpty = errors.New("render: nothing to render")
)

// PageRangeError は範囲外のページ番号と総ページ数を保持する。
// errors.Is(err, ErrPageOutOfRange) で判定できる。
type PageRangeError struct {
	Page  int
	Total int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("%s: page %d of %d", ErrPageOutOfRange, e.Page, e.Total)
}

// Is はErrPageOutOfRangeとの比較を可能にする。
func (e *PageRangeError) Is(target error) bool {
	return target == ErrPageOutOfRange
}

// Page は記事の1ページ分の表示内容。
type Page struct {
	PageID   int64  `json:"pageid"`
	Number   int    `json:"page"`
	Total    int    `json:"total"`
	Text     string `json:"text"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Options は表示オプション。ユーザー設定から組み立てる。
type Options struct {
	PageLen   int
	SendText  bool
	SendImage bool
}

// OptionsFromSettings はユーザー設定から表示オプションを生成する。
func OptionsFromSettings(s model.UserSettings) Options {
	return Options{
		PageLen:   s.PageLen,
		SendText:  s.SendText,
		SendImage: s.SendImage,
	}
}

// Renderer は記事をページに分割してHTMLに変換する。
type Renderer struct {
	sanitizer security.ContentSanitizerService
}

// NewRenderer はRendererを生成する。
func NewRenderer(sanitizer security.ContentSanitizerService) *Renderer {
	return &Renderer{sanitizer: sanitizer}
}

// Render は記事の指定ページを返す。
// 分割対象は「タイトル\n\n本文」のプレーンテキストで、各ページをエスケープしてから
// 1ページ目の先頭のタイトルを記事URLへのリンク（太字）に置き換える。
// SendTextがfalseの場合はタイトルのみ、写真は1ページ目にのみ付ける。
func (r *Renderer) Render(article model.Article, page int, opts Options) (Page, error) {
	title := strings.TrimSpace(article.Meta.Title)
	text := title
	if opts.SendText {
		if extract := strings.TrimSpace(article.Extract); extract != "" {
			text = title + "\n\n" + extract
		}
	}

	chunks := paginate.Split(text, opts.PageLen)
	total := len(chunks)
	if total == 0 {
		return Page{}, ErrEmpty
	}
	if page < 1 || page > total {
		return Page{}, &PageRangeError{Page: page, Total: total}
	}

	chunk := chunks[page-1]
	var body string
	if page == 1 && title != "" && strings.HasPrefix(chunk, title) {
		body = r.heading(title, article.Meta.URL) + r.sanitizer.Escape(chunk[len(title):])
	} else {
		body = r.sanitizer.Escape(chunk)
	}

	p := Page{
		PageID: article.PageID(),
		Number: page,
		Total:  total,
		Text:   body,
	}
	if page == 1 && opts.SendImage && article.Meta.HasThumbnail() {
		p.PhotoURL = article.Meta.ThumbnailURL
	}
	return p, nil
}

// heading はタイトルを記事へのリンクにした見出しを返す。URLがない場合は太字のみ。
func (r *Renderer) heading(title, url string) string {
	escaped := r.sanitizer.Escape(title)
	if url == "" {
		return "<b>" + escaped + "</b>"
	}
	return r.sanitizer.SanitizeMarkup(
		fmt.Sprintf(`<b><a href="%s">%s</a></b>`, html.EscapeString(url), escaped),
	)
}
