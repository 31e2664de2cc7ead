package fetch

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusClass はHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusClassOK は2xx。
	StatusClassOK StatusClass = iota
	// StatusClassTransient はリトライ対象（429/5xx）。
	StatusClassTransient
	// StatusClassPermanent はリトライしない（その他の非2xx）。
	StatusClassPermanent
)

// maxBackoff はバックオフ1回あたりの上限。
const maxBackoff = 30 * time.Second

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClassOK
	case statusCode == http.StatusTooManyRequests:
		return StatusClassTransient
	case statusCode >= 500 && statusCode <= 599:
		return StatusClassTransient
	default:
		return StatusClassPermanent
	}
}

// CalculateBackoff は試行番号（0始まり）に基づいて指数バックオフ遅延を計算する。
// base * 2^attempt、上限maxBackoff。
func CalculateBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ParseRetryAfter はRetry-Afterヘッダーを解析する。
// 秒数（小数可）またはHTTP日付を受け付ける。解析できない場合はfalseを返す。
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}

	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}
