package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/tgwiki/internal/cache"
)

// UserIDCache はRedisによる外部ID→内部ユーザーIDの対応キャッシュ。
type UserIDCache struct {
	rdb  redis.Cmdable
	keys keyspace
	ttl  time.Duration
}

// NewUserIDCache はUserIDCacheを生成する。
func NewUserIDCache(rdb redis.Cmdable, prefix string, ttl time.Duration) (*UserIDCache, error) {
	if err := checkTTL("user_id_ttl", ttl); err != nil {
		return nil, err
	}
	return &UserIDCache{rdb: rdb, keys: newKeyspace(prefix), ttl: ttl}, nil
}

// Get は内部ユーザーIDを返す。ミス・期限切れの場合は (0, false, nil)。
func (c *UserIDCache) Get(ctx context.Context, provider, externalID string) (int64, bool, error) {
	id, err := c.rdb.Get(ctx, c.keys.userID(provider, externalID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ユーザーIDキャッシュの取得に失敗しました: %w", err)
	}
	return id, true, nil
}

// Update は対応を保存し、TTLを設定する。
func (c *UserIDCache) Update(ctx context.Context, userID int64, provider, externalID string) error {
	if err := c.rdb.Set(ctx, c.keys.userID(provider, externalID), userID, c.ttl).Err(); err != nil {
		return fmt.Errorf("ユーザーIDキャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

var _ cache.UserIDCache = (*UserIDCache)(nil)
