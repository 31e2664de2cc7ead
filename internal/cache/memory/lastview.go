package memory

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/hitoshi/tgwiki/internal/cache"
)

type recentSet = *simplelru.LRU[int64, struct{}]

// LastViewCache はユーザーごとの最近閲覧した記事IDのキャッシュ。
// ユーザー自体もLRUで管理し、maxUsersを超えると最も古いユーザーの履歴を破棄する。
type LastViewCache struct {
	mu         sync.Mutex
	users      *simplelru.LRU[int64, recentSet]
	maxPerUser int
}

// NewLastViewCache はLastViewCacheを生成する。
func NewLastViewCache(maxPerUser, maxUsers int) (*LastViewCache, error) {
	if err := checkCapacity("max_per_user", maxPerUser); err != nil {
		return nil, err
	}
	if err := checkCapacity("max_users", maxUsers); err != nil {
		return nil, err
	}
	users, err := simplelru.NewLRU[int64, recentSet](maxUsers, nil)
	if err != nil {
		return nil, err
	}
	return &LastViewCache{users: users, maxPerUser: maxPerUser}, nil
}

// Get はユーザーの閲覧履歴を新しい順に返す。履歴がない場合は空スライス。
func (c *LastViewCache) Get(_ context.Context, userID int64) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.users.Get(userID)
	if !ok {
		return []int64{}, nil
	}

	// Keysは古い順
	keys := set.Keys()
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[len(keys)-1-i] = k
	}
	return out, nil
}

// Update は記事IDを履歴の最新位置に追加する。既存の場合は最新位置へ移動する。
func (c *LastViewCache) Update(_ context.Context, userID, pageID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.users.Get(userID)
	if !ok {
		var err error
		set, err = simplelru.NewLRU[int64, struct{}](c.maxPerUser, nil)
		if err != nil {
			return err
		}
		c.users.Add(userID, set)
	}
	set.Add(pageID, struct{}{})
	return nil
}

var _ cache.LastViewCache = (*LastViewCache)(nil)
