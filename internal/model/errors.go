// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, wiki, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeArticleNotFound   = "ARTICLE_NOT_FOUND"
	ErrCodePageOutOfRange    = "PAGE_OUT_OF_RANGE"
	ErrCodeResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrCodeUnavailable       = "UNAVAILABLE"
	ErrCodeDeadlineExceeded  = "DEADLINE_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// NewInvalidArgumentError は入力値エラーを生成する。
func NewInvalidArgumentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  fmt.Sprintf("invalid argument: %s", reason),
		Category: "validation",
		Action:   "Check the request parameters and try again.",
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  "article not found",
		Category: "wiki",
		Action:   "Try another title or request a new article.",
	}
}

// NewPageOutOfRangeError はページ番号が範囲外の場合のエラーを生成する。
// チャットの古いボタンから要求された場合に発生する。
func NewPageOutOfRangeError(page, total int) *APIError {
	return &APIError{
		Code:     ErrCodePageOutOfRange,
		Message:  fmt.Sprintf("page %d is out of range (total %d)", page, total),
		Category: "validation",
		Action:   "The button is stale. Open the article again.",
	}
}

// NewResourceExhaustedError は上流APIのレート制限エラーを生成する。
func NewResourceExhaustedError() *APIError {
	return &APIError{
		Code:     ErrCodeResourceExhausted,
		Message:  "Wikipedia is rate limiting requests",
		Category: "wiki",
		Action:   "Please wait a moment and try again.",
	}
}

// NewUnavailableError は上流API到達不能エラーを生成する。
func NewUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUnavailable,
		Message:  "service unavailable",
		Category: "wiki",
		Action:   "Please try again later.",
	}
}

// NewDeadlineExceededError はリクエスト期限切れエラーを生成する。
func NewDeadlineExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeDeadlineExceeded,
		Message:  "request deadline exceeded",
		Category: "system",
		Action:   "Please try again later.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal error",
		Category: "system",
		Action:   "Please wait and try again.",
	}
}

// NewTooManyRequestsError はクライアントからのリクエスト過多エラーを生成する。
func NewTooManyRequestsError() *APIError {
	return &APIError{
		Code:     ErrCodeResourceExhausted,
		Message:  "too many requests",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewUserNotFoundError は内部ユーザーIDが存在しない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "user not found",
		Category: "validation",
		Action:   "Resolve the user first via /api/v1/users/resolve.",
	}
}
