// Package model はドメインモデルを定義する。
package model

// ArticleMeta は記事のメタデータを表す。
// PageIDは言語ごとのWikipediaで一意なキーとなる。
type ArticleMeta struct {
	PageID       int64  `json:"pageid"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// HasThumbnail はサムネイル画像を持つかを返す。
func (m ArticleMeta) HasThumbnail() bool {
	return m.ThumbnailURL != ""
}

// Article はWikipedia記事を表す。イミュータブルな値として扱う。
// Langは正規化済み（小文字）のサポート言語コード。
type Article struct {
	Meta    ArticleMeta `json:"meta"`
	Extract string      `json:"extract,omitempty"`
	Lang    string      `json:"lang"`
}

// PageID は記事のPageIDを返す。
func (a Article) PageID() int64 {
	return a.Meta.PageID
}
