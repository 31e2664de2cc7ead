package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrUserNotFound は内部ユーザーIDに対応するユーザーが存在しない場合のエラー。
var ErrUserNotFound = errors.New("repository: user not found")

// foreignKeyViolation はPostgreSQLの外部キー制約違反のエラーコード。
const foreignKeyViolation pq.ErrorCode = "23503"

// isForeignKeyViolation はエラーが外部キー制約違反かを返す。
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}
