package fetch

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotStarted はStart前のクライアントを使用した場合のエラー。
var ErrNotStarted = errors.New("fetch: client is not started")

// Kind はフェッチ失敗の分類。
type Kind int

const (
	// KindTransport は接続・TLS・タイムアウト・ボディ読み取りの失敗（一時的）。
	KindTransport Kind = iota + 1
	// KindTransientStatus は429または5xx（一時的）。
	KindTransientStatus
	// KindPermanentStatus はその他の非2xx（恒久的）。
	KindPermanentStatus
	// KindMalformed は2xxだがJSONとして不正なボディ（恒久的）。
	KindMalformed
	// KindCircuitOpen はサーキットブレーカーによる拒否（一時的）。
	KindCircuitOpen
)

// String はログ・メトリクス用のラベルを返す。
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTransientStatus:
		return "transient_status"
	case KindPermanentStatus:
		return "permanent_status"
	case KindMalformed:
		return "malformed"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// FetchError は分類済みのフェッチ失敗を表す。
type FetchError struct {
	Kind       Kind
	StatusCode int           // ステータス由来でない場合は0
	Transient  bool          // リトライで回復しうるか
	RetryAfter time.Duration // Retry-Afterヘッダーの値（なければ0）
	Attempts   int           // 実行した試行回数
	Err        error

	hasRetryAfter bool
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch: %s (status %d, attempts %d): %v", e.Kind, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch: %s (attempts %d): %v", e.Kind, e.Attempts, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError はerrチェーンからFetchErrorを取り出す。
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsTransient はerrが一時的なフェッチ失敗かを返す。
func IsTransient(err error) bool {
	fe, ok := AsFetchError(err)
	return ok && fe.Transient
}

// IsStatus はerrが指定ステータスコードのフェッチ失敗かを返す。
func IsStatus(err error, statusCode int) bool {
	fe, ok := AsFetchError(err)
	return ok && fe.StatusCode == statusCode
}
