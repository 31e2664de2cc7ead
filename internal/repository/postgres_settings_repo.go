package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tgwiki/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用したユーザー設定リポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// GetSettings はユーザー設定を返す。行が存在しない場合はテーブルのデフォルト値で作成する。
// ユーザーが存在しない場合はErrUserNotFoundを返す。
func (r *PostgresSettingsRepo) GetSettings(ctx context.Context, userID int64) (model.UserSettings, error) {
	var s model.UserSettings
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO user_settings (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING page_len, send_text, send_image, app_lang, wiki_lang`,
		userID,
	).Scan(&s.PageLen, &s.SendText, &s.SendImage, &s.AppLang, &s.WikiLang)
	if isForeignKeyViolation(err) {
		return model.UserSettings{}, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return model.UserSettings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

// UpdateSettings はユーザー設定を置き換える。
func (r *PostgresSettingsRepo) UpdateSettings(ctx context.Context, userID int64, s model.UserSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, page_len, send_text, send_image, app_lang, wiki_lang, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		   page_len = EXCLUDED.page_len,
		   send_text = EXCLUDED.send_text,
		   send_image = EXCLUDED.send_image,
		   app_lang = EXCLUDED.app_lang,
		   wiki_lang = EXCLUDED.wiki_lang,
		   updated_at = now()`,
		userID, s.PageLen, s.SendText, s.SendImage, s.AppLang, s.WikiLang,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
