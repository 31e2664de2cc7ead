package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/tgwiki/internal/cache"
)

// Config はRedisキャッシュの設定。
type Config struct {
	Prefix        string
	RecentPerUser int
	ArticleTTL    time.Duration
	RecentTTL     time.Duration
	SettingsTTL   time.Duration
	UserIDTTL     time.Duration
}

// NewCaches は4種類のRedisキャッシュをまとめて生成する。
func NewCaches(rdb redis.Cmdable, cfg Config) (*cache.Caches, error) {
	articles, errA := NewArticleCache(rdb, cfg.Prefix, cfg.ArticleTTL)
	lastView, errL := NewLastViewCache(rdb, cfg.Prefix, cfg.RecentPerUser, cfg.RecentTTL)
	settings, errS := NewSettingsCache(rdb, cfg.Prefix, cfg.SettingsTTL)
	userIDs, errU := NewUserIDCache(rdb, cfg.Prefix, cfg.UserIDTTL)
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

// Connect はRedis URLからクライアントを生成し、疎通を確認する。
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("Redis URLのパースに失敗しました: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
	}
	return rdb, nil
}
