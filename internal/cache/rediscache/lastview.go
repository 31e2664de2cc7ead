package rediscache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/tgwiki/internal/cache"
)

// LastViewCache はRedisリストによるユーザーごとの閲覧履歴。
// リストの先頭が最新。更新はMULTI内で LREM → LPUSH → LTRIM → EXPIRE を実行する。
type LastViewCache struct {
	rdb        redis.Cmdable
	keys       keyspace
	ttl        time.Duration
	maxPerUser int
}

// NewLastViewCache はLastViewCacheを生成する。
func NewLastViewCache(rdb redis.Cmdable, prefix string, maxPerUser int, ttl time.Duration) (*LastViewCache, error) {
	if maxPerUser <= 0 {
		return nil, fmt.Errorf("%w: max_per_user=%d", ErrInvalidCapacity, maxPerUser)
	}
	if err := checkTTL("recent_ttl", ttl); err != nil {
		return nil, err
	}
	return &LastViewCache{rdb: rdb, keys: newKeyspace(prefix), ttl: ttl, maxPerUser: maxPerUser}, nil
}

// Get はユーザーの閲覧履歴を新しい順に返す。数値でない要素は無視する。
func (c *LastViewCache) Get(ctx context.Context, userID int64) ([]int64, error) {
	items, err := c.rdb.LRange(ctx, c.keys.recent(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("閲覧履歴の取得に失敗しました: %w", err)
	}

	out := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Update は記事IDを履歴の先頭に追加し、上限で切り詰めてTTLを更新する。
func (c *LastViewCache) Update(ctx context.Context, userID, pageID int64) error {
	key := c.keys.recent(userID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, key, 0, pageID)
		pipe.LPush(ctx, key, pageID)
		pipe.LTrim(ctx, key, 0, int64(c.maxPerUser-1))
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("閲覧履歴の更新に失敗しました: %w", err)
	}
	return nil
}

var _ cache.LastViewCache = (*LastViewCache)(nil)
