// Package cache はキャッシュのポート（インターフェース）を定義する。
// 実装はmemory（プロセス内LRU）とrediscache（Redis TTL）の2種類があり、
// 同じ振る舞いを持つ。ミスは (nil, nil) や (0, false, nil) で表し、
// 呼び出し元は常に正のデータソースにフォールバックする。
package cache

import (
	"context"

	"github.com/hitoshi/tgwiki/internal/model"
)

// ArticleCache は記事のキャッシュ。(lang, pageid)をキーとする。
type ArticleCache interface {
	Get(ctx context.Context, lang string, pageID int64) (*model.Article, error)
	Update(ctx context.Context, article model.Article) error
}

// LastViewCache はユーザーごとの最近閲覧した記事IDのキャッシュ。
// Getは新しい順に返す。件数は上限Nで打ち切られる。
type LastViewCache interface {
	Get(ctx context.Context, userID int64) ([]int64, error)
	Update(ctx context.Context, userID, pageID int64) error
}

// SettingsCache はユーザー設定のキャッシュ。
type SettingsCache interface {
	Get(ctx context.Context, userID int64) (*model.UserSettings, error)
	Update(ctx context.Context, userID int64, settings model.UserSettings) error
}

// UserIDCache は外部ID（provider, external_id）から内部ユーザーIDへの対応のキャッシュ。
type UserIDCache interface {
	Get(ctx context.Context, provider, externalID string) (int64, bool, error)
	Update(ctx context.Context, userID int64, provider, externalID string) error
}

// Caches は4種類のキャッシュをまとめたもの。
type Caches struct {
	Articles ArticleCache
	LastView LastViewCache
	Settings SettingsCache
	UserIDs  UserIDCache
}
