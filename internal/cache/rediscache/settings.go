package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/model"
)

// SettingsCache はRedisによるユーザー設定キャッシュ。
type SettingsCache struct {
	rdb  redis.Cmdable
	keys keyspace
	ttl  time.Duration
}

// NewSettingsCache はSettingsCacheを生成する。
func NewSettingsCache(rdb redis.Cmdable, prefix string, ttl time.Duration) (*SettingsCache, error) {
	if err := checkTTL("settings_ttl", ttl); err != nil {
		return nil, err
	}
	return &SettingsCache{rdb: rdb, keys: newKeyspace(prefix), ttl: ttl}, nil
}

// Get はユーザー設定を返す。ミス・期限切れの場合は (nil, nil)。
func (c *SettingsCache) Get(ctx context.Context, userID int64) (*model.UserSettings, error) {
	raw, err := c.rdb.Get(ctx, c.keys.settings(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー設定キャッシュの取得に失敗しました: %w", err)
	}

	s, err := DecodeSettings(raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update はユーザー設定を保存し、TTLを設定する。
func (c *SettingsCache) Update(ctx context.Context, userID int64, settings model.UserSettings) error {
	raw, err := EncodeSettings(settings)
	if err != nil {
		return fmt.Errorf("ユーザー設定のエンコードに失敗しました: %w", err)
	}
	if err := c.rdb.Set(ctx, c.keys.settings(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("ユーザー設定キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

var _ cache.SettingsCache = (*SettingsCache)(nil)
