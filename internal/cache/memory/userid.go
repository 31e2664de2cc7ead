package memory

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hitoshi/tgwiki/internal/cache"
)

type identityKey struct {
	provider   string
	externalID string
}

// UserIDCache は外部IDから内部ユーザーIDへの対応のLRUキャッシュ。
type UserIDCache struct {
	lru *lru.Cache[identityKey, int64]
}

// NewUserIDCache は最大maxUsers件を保持するUserIDCacheを生成する。
func NewUserIDCache(maxUsers int) (*UserIDCache, error) {
	if err := checkCapacity("max_users", maxUsers); err != nil {
		return nil, err
	}
	l, err := lru.New[identityKey, int64](maxUsers)
	if err != nil {
		return nil, err
	}
	return &UserIDCache{lru: l}, nil
}

// Get は内部ユーザーIDを返す。ミスの場合は (0, false, nil)。
func (c *UserIDCache) Get(_ context.Context, provider, externalID string) (int64, bool, error) {
	id, ok := c.lru.Get(identityKey{provider: provider, externalID: externalID})
	return id, ok, nil
}

// Update は対応を追加または置き換える。
func (c *UserIDCache) Update(_ context.Context, userID int64, provider, externalID string) error {
	c.lru.Add(identityKey{provider: provider, externalID: externalID}, userID)
	return nil
}

var _ cache.UserIDCache = (*UserIDCache)(nil)
