package wiki

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/hitoshi/tgwiki/internal/model"
)

// queryResponse はaction=queryのレスポンス。
type queryResponse struct {
	Query struct {
		Normalized []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"normalized"`
		Pages  map[string]rawPage `json:"pages"`
		Search []struct {
			PageID int64  `json:"pageid"`
			Title  string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

// rawPage はquery.pagesの1エントリ。
// missing/invalidはキーの有無で判定する（値は空文字）。
type rawPage struct {
	PageID    int64           `json:"pageid"`
	Title     string          `json:"title"`
	FullURL   string          `json:"fullurl"`
	Extract   string          `json:"extract"`
	Missing   json.RawMessage `json:"missing"`
	Invalid   json.RawMessage `json:"invalid"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

// isValid はページが記事として利用可能かを判定する。
// textRequiredの場合のみ抽出テキストの最小長（文字数）を検査する。
func (p rawPage) isValid(minLength int, textRequired bool) bool {
	if len(p.Missing) > 0 || len(p.Invalid) > 0 {
		return false
	}
	if p.PageID <= 0 {
		return false
	}
	if strings.TrimSpace(p.Title) == "" {
		return false
	}
	if strings.TrimSpace(p.FullURL) == "" {
		return false
	}
	if textRequired {
		if utf8.RuneCountInString(strings.TrimSpace(p.Extract)) < minLength {
			return false
		}
	}
	return true
}

func (p rawPage) toMeta() model.ArticleMeta {
	meta := model.ArticleMeta{
		PageID: p.PageID,
		Title:  strings.TrimSpace(p.Title),
		URL:    strings.TrimSpace(p.FullURL),
	}
	if p.Thumbnail != nil {
		meta.ThumbnailURL = strings.TrimSpace(p.Thumbnail.Source)
	}
	return meta
}

func (p rawPage) toArticle(lang string) *model.Article {
	return &model.Article{
		Meta:    p.toMeta(),
		Extract: strings.TrimSpace(p.Extract),
		Lang:    lang,
	}
}

// firstPage はquery.pagesの先頭ページを返す。
// キーは任意の数値IDのため、決定的になるよう数値順で先頭を選ぶ。
func firstPage(pages map[string]rawPage) (rawPage, bool) {
	if len(pages) == 0 {
		return rawPage{}, false
	}
	keys := sortedPageKeys(pages)
	return pages[keys[0]], true
}

func sortedPageKeys(pages map[string]rawPage) []string {
	keys := make([]string, 0, len(pages))
	for k := range pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseInt(keys[i], 10, 64)
		b, errB := strconv.ParseInt(keys[j], 10, 64)
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

// parseOpenSearch はopensearchレスポンス [query, [titles], [descs], [urls]] からタイトルを取り出す。
func parseOpenSearch(data []byte) ([]string, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, nil
	}

	var items []any
	if err := json.Unmarshal(parts[1], &items); err != nil {
		return nil, nil
	}

	titles := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			titles = append(titles, s)
		}
	}
	return titles, nil
}

// matchPages は一括取得結果を要求タイトルの順に並べる。
// query.normalizedでタイトルの正規化を解決し、対応しない有効ページはpageid順で末尾に追加する。
func matchPages(resp queryResponse, requested []string) []model.ArticleMeta {
	normalized := make(map[string]string, len(resp.Query.Normalized))
	for _, n := range resp.Query.Normalized {
		normalized[n.From] = n.To
	}

	byTitle := make(map[string]rawPage, len(resp.Query.Pages))
	for _, p := range resp.Query.Pages {
		if p.isValid(0, false) {
			byTitle[strings.TrimSpace(p.Title)] = p
		}
	}

	out := make([]model.ArticleMeta, 0, len(byTitle))
	seen := make(map[int64]struct{}, len(byTitle))

	for _, title := range requested {
		resolved := title
		if to, ok := normalized[title]; ok {
			resolved = to
		}
		p, ok := byTitle[strings.TrimSpace(resolved)]
		if !ok {
			continue
		}
		if _, dup := seen[p.PageID]; dup {
			continue
		}
		seen[p.PageID] = struct{}{}
		out = append(out, p.toMeta())
	}

	var rest []rawPage
	for _, p := range byTitle {
		if _, ok := seen[p.PageID]; !ok {
			rest = append(rest, p)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].PageID < rest[j].PageID })
	for _, p := range rest {
		seen[p.PageID] = struct{}{}
		out = append(out, p.toMeta())
	}

	return out
}
