// Package wiki はMediaWiki APIへのクエリ構築とレスポンスの正規化を提供する。
// リトライやキャッシュは持たず、フェッチャーの上に薄く載るマッピング層。
package wiki

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedLanguage はサポート外の言語コードが指定された場合のエラー。
// ネットワーク呼び出し前に返される。
var ErrUnsupportedLanguage = errors.New("wiki: unsupported language")

// ErrInvalidArgument は不正な入力（空タイトル、非正のpageid等）のエラー。
var ErrInvalidArgument = errors.New("wiki: invalid argument")

// defaultEndpoints は言語コードとAPIエンドポイントの対応表。
var defaultEndpoints = map[string]string{
	"ru": "https://ru.wikipedia.org/w/api.php",
	"en": "https://en.wikipedia.org/w/api.php",
}

// NormalizeLang は言語コードを前後空白除去・小文字化する。
func NormalizeLang(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

// IsSupported は言語コードがサポート対象かを返す。
func IsSupported(lang string) bool {
	_, ok := defaultEndpoints[NormalizeLang(lang)]
	return ok
}

// SupportedLangs はサポート対象の言語コードをソート済みで返す。
func SupportedLangs() []string {
	langs := make([]string, 0, len(defaultEndpoints))
	for l := range defaultEndpoints {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// EndpointFor は言語コードに対応するAPIエンドポイントを返す。
func EndpointFor(lang string) (string, error) {
	return lookupEndpoint(defaultEndpoints, lang)
}

func lookupEndpoint(endpoints map[string]string, lang string) (string, error) {
	norm := NormalizeLang(lang)
	ep, ok := endpoints[norm]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, norm)
	}
	return ep, nil
}
