// Package reco はユーザーごとに未閲覧のランダム記事を推薦するサービスを提供する。
package reco

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/metrics"
	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// DefaultMaxAttempts はランダム記事取得の試行回数の上限のデフォルト値。
const DefaultMaxAttempts = 50

// ErrNoFreshArticle は試行回数の上限内に未閲覧の記事が見つからなかった場合のエラー。
var ErrNoFreshArticle = errors.New("reco: no fresh article found")

// RandomArticleSource はランダム記事の取得元のインターフェース。
type RandomArticleSource interface {
	RandomArticle(ctx context.Context, opts wiki.FetchOptions) (*model.Article, error)
}

// Service は推薦サービス。
type Service struct {
	source      RandomArticleSource
	articles    cache.ArticleCache
	lastView    cache.LastViewCache
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	maxAttempts int
}

// Option はServiceのオプション設定関数。
type Option func(*Service)

// WithMaxAttempts は試行回数の上限を設定する。0以下は無視する。
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	source RandomArticleSource,
	articles cache.ArticleCache,
	lastView cache.LastViewCache,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		source:      source,
		articles:    articles,
		lastView:    lastView,
		logger:      logger,
		metrics:     metrics.NopCollector{},
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetNextArticle はユーザーの最近の閲覧履歴に含まれないランダム記事を返す。
// 見つかった記事は履歴の先頭に追加され、記事キャッシュに保存される。
// 取得元のエラーはそのまま返す（リトライはフェッチャーが行う）。
func (s *Service) GetNextArticle(ctx context.Context, userID int64, opts wiki.FetchOptions) (*model.Article, error) {
	history, err := s.lastView.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("閲覧履歴の取得に失敗したため空として扱います",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		history = nil
	}

	seen := make(map[int64]struct{}, len(history))
	for _, id := range history {
		seen[id] = struct{}{}
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		article, err := s.source.RandomArticle(ctx, opts)
		if err != nil {
			return nil, err
		}
		if article == nil || article.PageID() <= 0 {
			continue
		}
		if _, dup := seen[article.PageID()]; dup {
			continue
		}

		s.metrics.RecordRecoAttempts(attempt)
		s.remember(ctx, userID, *article)
		return article, nil
	}

	s.metrics.RecordRecoAttempts(s.maxAttempts)
	s.logger.Warn("未閲覧の記事が見つかりませんでした",
		slog.Int64("user_id", userID),
		slog.Int("attempts", s.maxAttempts),
		slog.Int("history_size", len(history)),
	)
	return nil, ErrNoFreshArticle
}

// remember は履歴と記事キャッシュを更新する。失敗はログのみ。
func (s *Service) remember(ctx context.Context, userID int64, article model.Article) {
	if err := s.lastView.Update(ctx, userID, article.PageID()); err != nil {
		s.logger.Warn("閲覧履歴の更新に失敗しました",
			slog.Int64("user_id", userID),
			slog.Int64("pageid", article.PageID()),
			slog.String("error", err.Error()),
		)
	}
	if err := s.articles.Update(ctx, article); err != nil {
		s.logger.Warn("記事キャッシュの更新に失敗しました",
			slog.Int64("pageid", article.PageID()),
			slog.String("error", err.Error()),
		)
	}
}
