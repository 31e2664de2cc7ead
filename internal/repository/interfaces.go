// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/tgwiki/internal/model"
)

// UserRepository はユーザーと外部identityの永続化インターフェース。
type UserRepository interface {
	// ResolveUserID は(provider, external_id)を内部ユーザーIDに解決する。
	// 未登録の場合はユーザーとidentityを作成する。
	// updateProfileがtrueの場合、既存identityのプロフィール項目とlast_seen_atを更新する。
	ResolveUserID(ctx context.Context, identity model.ExternalIdentity, updateProfile bool) (int64, error)

	// TouchLastSeen はユーザーのlast_seen_atを現在時刻に更新する。
	TouchLastSeen(ctx context.Context, userID int64) error
}

// SettingsRepository はユーザー設定の永続化インターフェース。
type SettingsRepository interface {
	// GetSettings はユーザー設定を返す。行が存在しない場合はデフォルト値で作成して返す。
	GetSettings(ctx context.Context, userID int64) (model.UserSettings, error)

	// UpdateSettings はユーザー設定を置き換える。行が存在しない場合は作成する。
	UpdateSettings(ctx context.Context, userID int64, settings model.UserSettings) error
}
