package paginate

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		pageLen int
		want    []string
	}{
		{name: "空文字列は空のスライス", text: "", pageLen: 10, want: []string{}},
		{name: "空白のみで上限超は空のスライス", text: "   ", pageLen: 1, want: []string{}},
		{name: "空白のみで上限以下は空のスライス", text: " \n ", pageLen: 10, want: []string{}},
		{name: "最後のページの前後の空白を除去", text: "aaaa bb  ", pageLen: 8, want: []string{"aaaa bb"}},
		{name: "分割後の末尾の空白を除去", text: "aaaa bbbb  ", pageLen: 5, want: []string{"aaaa", "bbbb"}},
		{name: "上限以下は1ページ", text: "short text", pageLen: 10, want: []string{"short text"}},
		{name: "単語境界まで戻る", text: "aaaa bbbb cccc", pageLen: 6, want: []string{"aaaa", "bbbb", "cccc"}},
		{name: "切れ目が空白ちょうど", text: "aaaa bbbb", pageLen: 4, want: []string{"aaaa", "bbbb"}},
		{name: "空白がなければ強制的に切る", text: "abcdefgh", pageLen: 3, want: []string{"abc", "def", "gh"}},
		{name: "先頭の空白は戻り先にしない", text: " abcdef", pageLen: 4, want: []string{"abc", "def"}},
		{name: "後続の連続空白を除去", text: "aaa    bbb", pageLen: 3, want: []string{"aaa", "bbb"}},
		{name: "改行も空白として扱う", text: "Title\n\nbody text", pageLen: 8, want: []string{"Title", "body", "text"}},
		{name: "マルチバイト文字を文字数で数える", text: "привет мир", pageLen: 7, want: []string{"привет", "мир"}},
		{name: "pageLenが0以下なら全体を1ページ", text: "aaaa bbbb", pageLen: 0, want: []string{"aaaa bbbb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.pageLen)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q, %d) = %q, want %q", tt.text, tt.pageLen, got, tt.want)
			}
		})
	}
}

// TestSplit_Reconstructs は単語長が上限以下のテキストについて、
// 各ページが上限以下で、空白1つで連結すると元のテキストに戻ることを検証する。
func TestSplit_Reconstructs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	letters := []rune("abcdefghijklmnopqrstuvwxyzабвгдежз")

	for i := 0; i < 200; i++ {
		pageLen := 5 + rng.Intn(40)

		words := make([]string, 1+rng.Intn(60))
		for w := range words {
			n := 1 + rng.Intn(pageLen)
			var b strings.Builder
			for j := 0; j < n; j++ {
				b.WriteRune(letters[rng.Intn(len(letters))])
			}
			words[w] = b.String()
		}
		text := strings.Join(words, " ")

		pages := Split(text, pageLen)
		for _, p := range pages {
			if n := utf8.RuneCountInString(p); n > pageLen || n == 0 {
				t.Fatalf("page %q has %d runes, want 1..%d", p, n, pageLen)
			}
		}
		if got := strings.Join(pages, " "); got != text {
			t.Fatalf("pageLen=%d: reconstructed %q, want %q", pageLen, got, text)
		}
	}
}
