package wiki

import (
	"net/url"
	"strconv"
	"strings"
)

// thumbnailWidth はサムネイル画像の幅（px）。
const thumbnailWidth = 300

// pageProps はprop・抽出関連のパラメータを設定する。
func pageProps(q url.Values, text, image bool) {
	props := []string{"info"}
	if text {
		props = append(props, "extracts")
	}
	if image {
		props = append(props, "pageimages")
	}
	q.Set("prop", strings.Join(props, "|"))
	q.Set("exintro", "1")
	q.Set("explaintext", "1")
	q.Set("inprop", "url")
	q.Set("pithumbsize", strconv.Itoa(thumbnailWidth))
}

func randomQuery(text, image bool) url.Values {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("generator", "random")
	q.Set("grnlimit", "1")
	q.Set("grnnamespace", "0")
	pageProps(q, text, image)
	return q
}

func titlesQuery(titles []string, text, image bool) url.Values {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("titles", strings.Join(titles, "|"))
	pageProps(q, text, image)
	return q
}

func pageIDsQuery(pageIDs []int64, text, image bool) url.Values {
	ids := make([]string, len(pageIDs))
	for i, id := range pageIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("pageids", strings.Join(ids, "|"))
	pageProps(q, text, image)
	return q
}

func titleSearchQuery(query string, limit int) url.Values {
	q := url.Values{}
	q.Set("action", "opensearch")
	q.Set("format", "json")
	q.Set("search", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("namespace", "0")
	return q
}

func textSearchQuery(query string, limit int) url.Values {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("prop", "info")
	q.Set("list", "search")
	q.Set("srsearch", query)
	q.Set("srlimit", strconv.Itoa(limit))
	q.Set("srnamespace", "0")
	return q
}
