package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/tgwiki/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// ResolveUserID は(provider, external_id)を内部ユーザーIDに解決する。
// 同一identityの同時作成はユニーク制約で検出し、既存の行を返す。
func (r *PostgresUserRepo) ResolveUserID(ctx context.Context, identity model.ExternalIdentity, updateProfile bool) (int64, error) {
	identity = identity.Normalized()
	if identity.Provider == "" || identity.ExternalID == "" {
		return 0, fmt.Errorf("identity requires provider and external_id")
	}

	userID, err := r.findUserID(ctx, identity)
	if err != nil {
		return 0, err
	}
	if userID != 0 {
		if updateProfile {
			if err := r.updateProfile(ctx, userID, identity); err != nil {
				return 0, err
			}
		}
		return userID, nil
	}

	userID, err = r.createWithIdentity(ctx, identity)
	if err != nil {
		return 0, err
	}
	if userID != 0 {
		return userID, nil
	}

	// 別のリクエストが先に作成した
	userID, err = r.findUserID(ctx, identity)
	if err != nil {
		return 0, err
	}
	if userID == 0 {
		return 0, fmt.Errorf("identity %s:%s vanished after conflict", identity.Provider, identity.ExternalID)
	}
	return userID, nil
}

// findUserID はidentityに紐付くユーザーIDを返す。見つからない場合は0を返す。
func (r *PostgresUserRepo) findUserID(ctx context.Context, identity model.ExternalIdentity) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM user_identities WHERE provider = $1 AND external_id = $2`,
		identity.Provider, identity.ExternalID,
	).Scan(&userID)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find identity: %w", err)
	}
	return userID, nil
}

// createWithIdentity はユーザーとidentityを同一トランザクションで作成する。
// identityが既に存在する場合はロールバックして0を返す。
func (r *PostgresUserRepo) createWithIdentity(ctx context.Context, identity model.ExternalIdentity) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO users DEFAULT VALUES RETURNING id`,
	).Scan(&userID); err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}

	var linked int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO user_identities (user_id, provider, external_id, username, first_name, last_name, language_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (provider, external_id) DO NOTHING
		 RETURNING user_id`,
		userID, identity.Provider, identity.ExternalID,
		nullString(identity.Username), nullString(identity.FirstName),
		nullString(identity.LastName), nullString(identity.LanguageCode),
	).Scan(&linked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return linked, nil
}

// updateProfile はidentityのプロフィール項目とユーザーのlast_seen_atを更新する。
func (r *PostgresUserRepo) updateProfile(ctx context.Context, userID int64, identity model.ExternalIdentity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE user_identities
		 SET username = $3, first_name = $4, last_name = $5, language_code = $6, updated_at = now()
		 WHERE provider = $1 AND external_id = $2`,
		identity.Provider, identity.ExternalID,
		nullString(identity.Username), nullString(identity.FirstName),
		nullString(identity.LastName), nullString(identity.LanguageCode),
	)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET last_seen_at = now() WHERE id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("failed to update last_seen_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TouchLastSeen はユーザーのlast_seen_atを現在時刻に更新する。
// ユーザーが存在しない場合はErrUserNotFoundを返す。
func (r *PostgresUserRepo) TouchLastSeen(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_seen_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch last_seen_at: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
