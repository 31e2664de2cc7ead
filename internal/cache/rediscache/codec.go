package rediscache

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hitoshi/tgwiki/internal/model"
)

// EncodeArticle は記事をJSONにエンコードする。
func EncodeArticle(a model.Article) ([]byte, error) {
	return json.Marshal(a)
}

// DecodeArticle はJSONから記事をデコードする。
func DecodeArticle(data []byte) (model.Article, error) {
	var a model.Article
	if err := json.Unmarshal(data, &a); err != nil {
		return model.Article{}, fmt.Errorf("記事のデコードに失敗しました: %w", err)
	}
	if a.Meta.PageID <= 0 {
		return model.Article{}, fmt.Errorf("記事のデコードに失敗しました: 不正なpageid %d", a.Meta.PageID)
	}
	if a.Lang == "" {
		a.Lang = model.DefaultLang
	}
	return a, nil
}

// EncodeSettings はユーザー設定をJSONにエンコードする。
func EncodeSettings(s model.UserSettings) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSettings はJSONからユーザー設定をデコードする。
// 欠けているフィールドはデフォルト値で補う。
func DecodeSettings(data []byte) (model.UserSettings, error) {
	s := model.DefaultUserSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return model.UserSettings{}, fmt.Errorf("ユーザー設定のデコードに失敗しました: %w", err)
	}
	s.PageLen = model.ClampPageLen(s.PageLen)
	s.AppLang = model.NormalizeLang(s.AppLang)
	s.WikiLang = model.NormalizeLang(s.WikiLang)
	return s, nil
}
