// Package search は記事検索とpageidによる記事取得（キャッシュアサイド）を提供する。
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/metrics"
	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// Source は検索と記事取得の取得元のインターフェース。
// wiki.Adapterが実装する。
type Source interface {
	SearchTitles(ctx context.Context, query, lang string, limit int) ([]string, error)
	SearchText(ctx context.Context, query, lang string, limit int) ([]string, error)
	LookupTitles(ctx context.Context, titles []string, lang string) ([]model.ArticleMeta, error)
	ArticleByPageID(ctx context.Context, pageID int64, opts wiki.FetchOptions) (*model.Article, error)
}

// Service は検索サービス。
type Service struct {
	source   Source
	articles cache.ArticleCache
	lastView cache.LastViewCache
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	flight   singleflight.Group

	flightTimeout time.Duration
}

// defaultFlightTimeout は共有された上流取得の上限時間。
const defaultFlightTimeout = 30 * time.Second

// Option はServiceの任意設定。
type Option func(*Service)

// WithFlightTimeout は同時ミスで共有する上流取得の上限時間を設定する。
func WithFlightTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flightTimeout = d
		}
	}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	source Source,
	articles cache.ArticleCache,
	lastView cache.LastViewCache,
	logger *slog.Logger,
	m metrics.MetricsCollector,
	opts ...Option,
) *Service {
	if m == nil {
		m = metrics.NopCollector{}
	}
	s := &Service{
		source:        source,
		articles:      articles,
		lastView:      lastView,
		logger:        logger,
		metrics:       m,
		flightTimeout: defaultFlightTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search はクエリに一致する記事のメタデータを最大limit件返す。
// タイトル一致を優先し、不足分を全文検索で補う。タイトルの重複は先勝ちで除外する。
// 候補タイトルは1回の一括取得で解決し、無効なページは除外する。
func (s *Service) Search(ctx context.Context, query string, limit int, lang string) ([]model.ArticleMeta, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []model.ArticleMeta{}, nil
	}

	titles := newTitleSet(limit)

	byTitle, err := s.source.SearchTitles(ctx, query, lang, limit)
	if err != nil {
		return nil, err
	}
	titles.addAll(byTitle)

	if titles.len() < limit {
		byText, err := s.source.SearchText(ctx, query, lang, limit-titles.len())
		if err != nil {
			return nil, err
		}
		titles.addAll(byText)
	}

	if titles.len() == 0 {
		return []model.ArticleMeta{}, nil
	}

	metas, err := s.source.LookupTitles(ctx, titles.items(), lang)
	if err != nil {
		return nil, err
	}
	if len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}

// GetArticleByPageID はpageidで記事を返す。
// 記事キャッシュにあれば上流を呼ばずに返す。ミスの場合は取得元から取得し、
// 記事キャッシュへの保存とユーザーの閲覧履歴への追加を並行して行う。
// 記事が見つからない場合は (nil, nil) を返し、キャッシュしない。
// キャッシュには完全な記事を保存するため、Text/Imageは常に有効にして取得する。
func (s *Service) GetArticleByPageID(ctx context.Context, pageID, userID int64, opts wiki.FetchOptions) (*model.Article, error) {
	lang := wiki.NormalizeLang(opts.Lang)
	if !wiki.IsSupported(lang) {
		return nil, fmt.Errorf("%w: %q", wiki.ErrUnsupportedLanguage, lang)
	}

	cached, err := s.articles.Get(ctx, lang, pageID)
	if err != nil {
		s.logger.Warn("記事キャッシュの取得に失敗したためミスとして扱います",
			slog.Int64("pageid", pageID),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		s.metrics.RecordCacheResult("article", true)
		return cached, nil
	}
	s.metrics.RecordCacheResult("article", false)

	opts.Lang = lang
	opts.Text = true
	opts.Image = true

	// 共有取得は先頭の呼び出し元のキャンセルから切り離し、各呼び出し元は自身のctxで待つ
	key := fmt.Sprintf("%s:%d", lang, pageID)
	ch := s.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout)
		defer cancel()
		return s.source.ArticleByPageID(fctx, pageID, opts)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	shared, _ := res.Val.(*model.Article)
	if shared == nil {
		return nil, nil
	}

	// singleflightの結果は呼び出し元間で共有されるためコピーして返す
	article := *shared
	s.store(ctx, userID, article)
	return &article, nil
}

// store は記事キャッシュと閲覧履歴を並行して更新する。失敗はログのみ。
func (s *Service) store(ctx context.Context, userID int64, article model.Article) {
	var g errgroup.Group
	g.Go(func() error {
		if err := s.articles.Update(ctx, article); err != nil {
			s.logger.Warn("記事キャッシュの更新に失敗しました",
				slog.Int64("pageid", article.PageID()),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.lastView.Update(ctx, userID, article.PageID()); err != nil {
			s.logger.Warn("閲覧履歴の更新に失敗しました",
				slog.Int64("user_id", userID),
				slog.Int64("pageid", article.PageID()),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
	_ = g.Wait()
}
