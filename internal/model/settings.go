package model

import (
	"strconv"
	"strings"
)

const (
	// MinPageLen はページ長の下限。
	MinPageLen = 128
	// MaxPageLen はページ長の上限（チャットの1メッセージ上限に合わせる）。
	MaxPageLen = 4096
	// DefaultPageLen はページ長のデフォルト値。
	DefaultPageLen = 1024
	// DefaultLang はアプリ言語・Wiki言語のデフォルト値。
	DefaultLang = "ru"

	// ProviderTelegram はTelegramのidentityプロバイダ名。
	ProviderTelegram = "telegram"
)

// UserSettings はユーザーごとの表示設定を表す。
type UserSettings struct {
	PageLen   int    `json:"page_len"`
	SendText  bool   `json:"send_text"`
	SendImage bool   `json:"send_image"`
	AppLang   string `json:"app_lang"`
	WikiLang  string `json:"wiki_lang"`
}

// DefaultUserSettings はデフォルトのユーザー設定を返す。
func DefaultUserSettings() UserSettings {
	return UserSettings{
		PageLen:   DefaultPageLen,
		SendText:  true,
		SendImage: true,
		AppLang:   DefaultLang,
		WikiLang:  DefaultLang,
	}
}

// ClampPageLen はページ長を[MinPageLen, MaxPageLen]の範囲に丸める。
func ClampPageLen(n int) int {
	if n < MinPageLen {
		return MinPageLen
	}
	if n > MaxPageLen {
		return MaxPageLen
	}
	return n
}

// NormalizeLang は言語コードを前後空白除去・小文字化する。
// 空の場合はDefaultLangを返す。
func NormalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLang
	}
	return lang
}

// ExternalIdentity は外部プラットフォーム上のユーザー識別子を表す。
// 内部ユーザーIDの解決にのみ使用し、解決後は保持しない。
type ExternalIdentity struct {
	Provider     string `json:"provider"`
	ExternalID   string `json:"external_id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// TelegramIdentity はTelegramユーザーIDからExternalIdentityを生成する。
func TelegramIdentity(tgUserID int64) ExternalIdentity {
	return ExternalIdentity{
		Provider:   ProviderTelegram,
		ExternalID: strconv.FormatInt(tgUserID, 10),
	}
}

// Normalized はproviderとexternal_idを正規化したコピーを返す。
func (i ExternalIdentity) Normalized() ExternalIdentity {
	i.Provider = strings.ToLower(strings.TrimSpace(i.Provider))
	i.ExternalID = strings.TrimSpace(i.ExternalID)
	return i
}
