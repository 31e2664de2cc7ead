// Package settings はユーザーIDの解決とユーザー設定の読み書きを提供する。
// 設定の正はリポジトリ（PostgreSQL）で、キャッシュは読み取りの高速化にのみ使う。
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/metrics"
	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/repository"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// DefaultRefreshTimeout はバックグラウンドでのキャッシュ更新のタイムアウト。
const DefaultRefreshTimeout = 5 * time.Second

// Service はユーザー設定サービス。
type Service struct {
	users          repository.UserRepository
	repo           repository.SettingsRepository
	settingsCache  cache.SettingsCache
	userIDs        cache.UserIDCache
	logger         *slog.Logger
	metrics        metrics.MetricsCollector
	refreshTimeout time.Duration

	refreshes sync.WaitGroup
}

// Option はServiceのオプション設定関数。
type Option func(*Service)

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRefreshTimeout はバックグラウンド更新のタイムアウトを設定する。
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	repo repository.SettingsRepository,
	settingsCache cache.SettingsCache,
	userIDs cache.UserIDCache,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		users:          users,
		repo:           repo,
		settingsCache:  settingsCache,
		userIDs:        userIDs,
		logger:         logger,
		metrics:        metrics.NopCollector{},
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveUser は外部identityを内部ユーザーIDに解決する。
// updateProfileがfalseの場合はキャッシュを先に参照する。
// trueの場合はキャッシュを迂回してプロフィールを更新する。
func (s *Service) ResolveUser(ctx context.Context, identity model.ExternalIdentity, updateProfile bool) (int64, error) {
	identity = identity.Normalized()

	if !updateProfile {
		userID, ok, err := s.userIDs.Get(ctx, identity.Provider, identity.ExternalID)
		if err != nil {
			s.logger.Warn("ユーザーIDキャッシュの取得に失敗しました",
				slog.String("provider", identity.Provider),
				slog.String("error", err.Error()),
			)
		}
		if ok && userID > 0 {
			s.metrics.RecordCacheResult("user_id", true)
			return userID, nil
		}
		s.metrics.RecordCacheResult("user_id", false)
	}

	userID, err := s.users.ResolveUserID(ctx, identity, updateProfile)
	if err != nil {
		return 0, fmt.Errorf("resolve user: %w", err)
	}

	if err := s.userIDs.Update(ctx, userID, identity.Provider, identity.ExternalID); err != nil {
		s.logger.Warn("ユーザーIDキャッシュの更新に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return userID, nil
}

// GetSettings はユーザー設定を返す。
// キャッシュミスの場合はリポジトリから読み、キャッシュの更新はバックグラウンドで行う。
func (s *Service) GetSettings(ctx context.Context, userID int64) (model.UserSettings, error) {
	cached, err := s.settingsCache.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("設定キャッシュの取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		s.metrics.RecordCacheResult("settings", true)
		return *cached, nil
	}
	s.metrics.RecordCacheResult("settings", false)

	settings, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return model.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}

	s.refreshInBackground(ctx, userID, settings)
	return settings, nil
}

// refreshInBackground は呼び出し元のキャンセルから切り離してキャッシュを更新する。
func (s *Service) refreshInBackground(parent context.Context, userID int64, settings model.UserSettings) {
	s.refreshes.Add(1)
	go func() {
		defer s.refreshes.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.refreshTimeout)
		defer cancel()

		if err := s.settingsCache.Update(ctx, userID, settings); err != nil {
			s.logger.Warn("設定キャッシュのバックグラウンド更新に失敗しました",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// SetPageLen はページ長を[128, 4096]に丸めて保存する。
func (s *Service) SetPageLen(ctx context.Context, userID int64, pageLen int) (model.UserSettings, error) {
	pageLen = model.ClampPageLen(pageLen)
	return s.update(ctx, userID, func(us *model.UserSettings) {
		us.PageLen = pageLen
	})
}

// SetRendering は本文・画像の送信有無を保存する。nilの項目は変更しない。
func (s *Service) SetRendering(ctx context.Context, userID int64, sendText, sendImage *bool) (model.UserSettings, error) {
	return s.update(ctx, userID, func(us *model.UserSettings) {
		if sendText != nil {
			us.SendText = *sendText
		}
		if sendImage != nil {
			us.SendImage = *sendImage
		}
	})
}

// SetAppLang はアプリの表示言語を保存する。空の場合はデフォルト言語になる。
func (s *Service) SetAppLang(ctx context.Context, userID int64, lang string) (model.UserSettings, error) {
	lang = model.NormalizeLang(lang)
	return s.update(ctx, userID, func(us *model.UserSettings) {
		us.AppLang = lang
	})
}

// SetWikiLang は記事取得に使うWikipediaの言語を保存する。
// サポート外の言語はErrUnsupportedLanguageで拒否する。
func (s *Service) SetWikiLang(ctx context.Context, userID int64, lang string) (model.UserSettings, error) {
	lang = model.NormalizeLang(lang)
	if !wiki.IsSupported(lang) {
		return model.UserSettings{}, fmt.Errorf("%w: %q", wiki.ErrUnsupportedLanguage, lang)
	}
	return s.update(ctx, userID, func(us *model.UserSettings) {
		us.WikiLang = lang
	})
}

// TouchLastSeen はユーザーの最終アクセス日時を更新する。
func (s *Service) TouchLastSeen(ctx context.Context, userID int64) error {
	if err := s.users.TouchLastSeen(ctx, userID); err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

// update はリポジトリから現在の設定を読み、1項目を変更してリポジトリとキャッシュへ並行して書き込む。
// キャッシュは読まない。キャッシュへの書き込み失敗はログのみ。
func (s *Service) update(ctx context.Context, userID int64, patch func(*model.UserSettings)) (model.UserSettings, error) {
	current, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return model.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	patch(&current)

	var g errgroup.Group
	g.Go(func() error {
		if err := s.repo.UpdateSettings(ctx, userID, current); err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.settingsCache.Update(ctx, userID, current); err != nil {
			s.logger.Warn("設定キャッシュの更新に失敗しました",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.UserSettings{}, err
	}
	return current, nil
}

// Close は実行中のバックグラウンド更新の完了を待つ。
func (s *Service) Close() {
	s.refreshes.Wait()
}
