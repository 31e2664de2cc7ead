package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hitoshi/tgwiki/internal/model"
)

// JSONFetcher はJSON取得のインターフェース。
// fetch.Clientが実装する。
type JSONFetcher interface {
	GetJSON(ctx context.Context, rawURL string, query url.Values) (json.RawMessage, error)
}

// FetchOptions は記事取得時のオプション。
type FetchOptions struct {
	Lang      string
	MinLength int  // Text指定時の抽出テキストの最小文字数
	Text      bool // 抽出テキストを取得するか
	Image     bool // サムネイルを取得するか
}

// DefaultFetchOptions はデフォルトの取得オプションを返す。
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		Lang:  model.DefaultLang,
		Text:  true,
		Image: true,
	}
}

// Adapter はWikipedia APIのクエリアダプター。
// 記事が見つからない・検証に失敗した場合は (nil, nil) を返す。
type Adapter struct {
	fetcher   JSONFetcher
	logger    *slog.Logger
	endpoints map[string]string
}

// AdapterOption はAdapterのオプション設定関数。
type AdapterOption func(*Adapter)

// WithEndpoints は言語ごとのエンドポイントを差し替える。
func WithEndpoints(endpoints map[string]string) AdapterOption {
	return func(a *Adapter) {
		a.endpoints = make(map[string]string, len(endpoints))
		for lang, ep := range endpoints {
			a.endpoints[NormalizeLang(lang)] = ep
		}
	}
}

// NewAdapter はAdapterの新しいインスタンスを生成する。
func NewAdapter(fetcher JSONFetcher, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		fetcher:   fetcher,
		logger:    logger,
		endpoints: defaultEndpoints,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RandomArticle はランダムな記事を1件取得する。
func (a *Adapter) RandomArticle(ctx context.Context, opts FetchOptions) (*model.Article, error) {
	return a.singleArticle(ctx, opts, randomQuery(opts.Text, opts.Image))
}

// ArticleByTitle はタイトルで記事を取得する。
func (a *Adapter) ArticleByTitle(ctx context.Context, title string, opts FetchOptions) (*model.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidArgument)
	}
	return a.singleArticle(ctx, opts, titlesQuery([]string{title}, opts.Text, opts.Image))
}

// ArticleByPageID はpageidで記事を取得する。
func (a *Adapter) ArticleByPageID(ctx context.Context, pageID int64, opts FetchOptions) (*model.Article, error) {
	if pageID <= 0 {
		return nil, fmt.Errorf("%w: pageid must be positive", ErrInvalidArgument)
	}
	return a.singleArticle(ctx, opts, pageIDsQuery([]int64{pageID}, opts.Text, opts.Image))
}

func (a *Adapter) singleArticle(ctx context.Context, opts FetchOptions, q url.Values) (*model.Article, error) {
	lang := NormalizeLang(opts.Lang)
	endpoint, err := lookupEndpoint(a.endpoints, lang)
	if err != nil {
		return nil, err
	}

	data, err := a.fetcher.GetJSON(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		a.logger.Warn("記事レスポンスの形式が想定と異なります",
			slog.String("lang", lang),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	page, ok := firstPage(resp.Query.Pages)
	if !ok || !page.isValid(opts.MinLength, opts.Text) {
		return nil, nil
	}

	return page.toArticle(lang), nil
}

// SearchTitles はタイトル一致検索（opensearch）で最大limit件のタイトルを返す。
// 空・空白のみのタイトルは除外する。
func (a *Adapter) SearchTitles(ctx context.Context, query, lang string, limit int) ([]string, error) {
	endpoint, err := lookupEndpoint(a.endpoints, lang)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []string{}, nil
	}

	data, err := a.fetcher.GetJSON(ctx, endpoint, titleSearchQuery(query, limit))
	if err != nil {
		return nil, err
	}

	titles, err := parseOpenSearch(data)
	if err != nil {
		a.logger.Warn("タイトル検索レスポンスの形式が想定と異なります",
			slog.String("lang", NormalizeLang(lang)),
			slog.String("error", err.Error()),
		)
		return []string{}, nil
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}

// SearchText は全文検索で最大limit件のタイトルを返す。
func (a *Adapter) SearchText(ctx context.Context, query, lang string, limit int) ([]string, error) {
	endpoint, err := lookupEndpoint(a.endpoints, lang)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []string{}, nil
	}

	data, err := a.fetcher.GetJSON(ctx, endpoint, textSearchQuery(query, limit))
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		a.logger.Warn("全文検索レスポンスの形式が想定と異なります",
			slog.String("lang", NormalizeLang(lang)),
			slog.String("error", err.Error()),
		)
		return []string{}, nil
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, item := range resp.Query.Search {
		if t := strings.TrimSpace(item.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// LookupTitles は複数タイトルのメタデータを1リクエストで取得する。
// 抽出テキストは取得しない。結果は要求タイトルの順に並び、無効なページは除外される。
func (a *Adapter) LookupTitles(ctx context.Context, titles []string, lang string) ([]model.ArticleMeta, error) {
	norm := NormalizeLang(lang)
	endpoint, err := lookupEndpoint(a.endpoints, norm)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return []model.ArticleMeta{}, nil
	}

	data, err := a.fetcher.GetJSON(ctx, endpoint, titlesQuery(titles, false, true))
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		a.logger.Warn("一括取得レスポンスの形式が想定と異なります",
			slog.String("lang", norm),
			slog.String("error", err.Error()),
		)
		return []model.ArticleMeta{}, nil
	}

	return matchPages(resp, titles), nil
}
