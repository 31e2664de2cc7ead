// Package paginate はテキストを上限長以下のページに分割する。
package paginate

import (
	"strings"
	"unicode"
)

// Split はtextを最大pageLen文字（rune）のページに分割する。
// 切れ目が単語の途中になる場合は、ページ内の最後の空白（先頭以外）まで戻って切る。
// 空白が見つからない場合はpageLen文字で切る。切り出したページの前後の空白は除去する。
// 空白のみのテキストは空のスライスを、pageLenが0以下の場合は前後の空白を除いたtext全体を1ページとして返す。
func Split(text string, pageLen int) []string {
	pages := []string{}
	if strings.TrimSpace(text) == "" {
		return pages
	}
	if pageLen <= 0 {
		return append(pages, strings.TrimSpace(text))
	}

	remaining := []rune(text)

	for len(remaining) > pageLen {
		cut := pageLen
		if !unicode.IsSpace(remaining[cut]) {
			if i := lastSpace(remaining[:cut]); i > 0 {
				cut = i
			}
		}

		if page := strings.TrimSpace(string(remaining[:cut])); page != "" {
			pages = append(pages, page)
		}

		remaining = trimLeftSpace(remaining[cut:])
	}

	if page := strings.TrimSpace(string(remaining)); page != "" {
		pages = append(pages, page)
	}
	return pages
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

func trimLeftSpace(runes []rune) []rune {
	i := 0
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return runes[i:]
}
