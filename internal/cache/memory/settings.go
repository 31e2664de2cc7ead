package memory

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/model"
)

// SettingsCache はユーザー設定のLRUキャッシュ。
type SettingsCache struct {
	lru *lru.Cache[int64, model.UserSettings]
}

// NewSettingsCache は最大maxUsers件を保持するSettingsCacheを生成する。
func NewSettingsCache(maxUsers int) (*SettingsCache, error) {
	if err := checkCapacity("max_users", maxUsers); err != nil {
		return nil, err
	}
	l, err := lru.New[int64, model.UserSettings](maxUsers)
	if err != nil {
		return nil, err
	}
	return &SettingsCache{lru: l}, nil
}

// Get はユーザー設定を返す。ミスの場合は (nil, nil)。
func (c *SettingsCache) Get(_ context.Context, userID int64) (*model.UserSettings, error) {
	s, ok := c.lru.Get(userID)
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Update はユーザー設定を追加または置き換える。
func (c *SettingsCache) Update(_ context.Context, userID int64, settings model.UserSettings) error {
	c.lru.Add(userID, settings)
	return nil
}

var _ cache.SettingsCache = (*SettingsCache)(nil)
