package memory

import (
	"errors"

	"github.com/hitoshi/tgwiki/internal/cache"
)

// Config はプロセス内キャッシュの容量設定。
type Config struct {
	MaxArticles   int
	RecentPerUser int
	MaxUsers      int
}

// NewCaches は4種類のプロセス内キャッシュをまとめて生成する。
func NewCaches(cfg Config) (*cache.Caches, error) {
	articles, errA := NewArticleCache(cfg.MaxArticles)
	lastView, errL := NewLastViewCache(cfg.RecentPerUser, cfg.MaxUsers)
	settings, errS := NewSettingsCache(cfg.MaxUsers)
	userIDs, errU := NewUserIDCache(cfg.MaxUsers)
	if err := errors.Join(errA, errL, errS, errU); err != nil {
		return nil, err
	}
	return &cache.Caches{
		Articles: articles,
		LastView: lastView,
		Settings: settings,
		UserIDs:  userIDs,
	}, nil
}
