// Package fetch はリトライ・バックオフ付きのJSON取得HTTPクライアントを提供する。
// ステータスコードとトランスポートエラーを一時的/恒久的に分類し、
// 一時的な失敗のみを指数バックオフでリトライする。
package fetch

import "time"

// Config はフェッチクライアントの設定を保持する。
type Config struct {
	UserAgent string

	TotalTimeout   time.Duration // 1試行あたりのリクエスト全体のタイムアウト
	ConnectTimeout time.Duration // TCP接続確立のタイムアウト
	ReadTimeout    time.Duration // レスポンスヘッダー受信までのタイムアウト

	MaxConns        int
	MaxConnsPerHost int
	IdleConnTimeout time.Duration // アイドル状態のプール接続を保持する期間

	Retries        int           // 初回に加えて行うリトライ回数
	RetryBaseDelay time.Duration // 指数バックオフの基準遅延

	// RequestsPerSecond は上流への送信レート上限。0以下は無制限。
	RequestsPerSecond float64

	Breaker BreakerConfig
}

// BreakerConfig はサーキットブレーカーの設定を保持する。
type BreakerConfig struct {
	Enabled bool
	// ConsecutiveFailures はオープンに遷移する連続失敗回数。
	ConsecutiveFailures uint32
	// OpenTimeout はオープン状態からハーフオープンに遷移するまでの時間。
	OpenTimeout time.Duration
	// HalfOpenRequests はハーフオープン時に許可するリクエスト数。
	HalfOpenRequests uint32
}

// DefaultConfig はデフォルト設定を返す。
func DefaultConfig() Config {
	return Config{
		UserAgent:       "tgwiki/1.0 (content service)",
		TotalTimeout:    10 * time.Second,
		ConnectTimeout:  5 * time.Second,
		ReadTimeout:     10 * time.Second,
		MaxConns:        50,
		MaxConnsPerHost: 20,
		IdleConnTimeout: 300 * time.Second,
		Retries:         2,
		RetryBaseDelay:  300 * time.Millisecond,
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
			HalfOpenRequests:    1,
		},
	}
}
