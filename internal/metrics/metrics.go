// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// フェッチャーやサービス層から利用する。
type MetricsCollector interface {
	RecordUpstreamAttempt(outcome string)
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamRetry(reason string)
	RecordUpstreamLatency(duration time.Duration)
	RecordBreakerState(name string, state float64)
	RecordCacheResult(cache string, hit bool)
	RecordRecoAttempts(attempts int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamAttempts *prometheus.CounterVec
	upstreamStatus   *prometheus.CounterVec
	upstreamRetries  *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	breakerState     *prometheus.GaugeVec
	cacheRequests    *prometheus.CounterVec
	recoAttempts     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgwiki_upstream_attempts_total",
			Help: "Wikipedia APIへのリクエスト試行数（結果別）",
		}, []string{"outcome"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgwiki_upstream_http_status_total",
			Help: "Wikipedia APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgwiki_upstream_retries_total",
			Help: "Wikipedia APIへのリトライ数（理由別）",
		}, []string{"reason"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tgwiki_upstream_latency_seconds",
			Help:    "Wikipedia APIリクエストのレイテンシ（秒、リトライ込み）",
			Buckets: prometheus.DefBuckets,
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tgwiki_circuit_breaker_state",
			Help: "サーキットブレーカーの状態（0=closed, 1=half-open, 2=open）",
		}, []string{"name"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgwiki_cache_requests_total",
			Help: "キャッシュ参照数（キャッシュ種別・ヒット/ミス別）",
		}, []string{"cache", "result"}),
		recoAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tgwiki_reco_attempts",
			Help:    "おすすめ記事1件の取得に要したランダム記事の取得回数",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		}),
	}

	reg.MustRegister(
		c.upstreamAttempts,
		c.upstreamStatus,
		c.upstreamRetries,
		c.upstreamLatency,
		c.breakerState,
		c.cacheRequests,
		c.recoAttempts,
	)

	return c
}

// RecordUpstreamAttempt は上流リクエストの試行結果を記録する。
func (c *Collector) RecordUpstreamAttempt(outcome string) {
	c.upstreamAttempts.WithLabelValues(outcome).Inc()
}

// RecordUpstreamStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamRetry はリトライを記録する。
func (c *Collector) RecordUpstreamRetry(reason string) {
	c.upstreamRetries.WithLabelValues(reason).Inc()
}

// RecordUpstreamLatency は上流リクエストのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordBreakerState はサーキットブレーカーの状態を記録する。
func (c *Collector) RecordBreakerState(name string, state float64) {
	c.breakerState.WithLabelValues(name).Set(state)
}

// RecordCacheResult はキャッシュのヒット/ミスを記録する。
func (c *Collector) RecordCacheResult(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheRequests.WithLabelValues(cache, result).Inc()
}

// RecordRecoAttempts はおすすめ記事取得の試行回数を記録する。
func (c *Collector) RecordRecoAttempts(attempts int) {
	c.recoAttempts.Observe(float64(attempts))
}

// NopCollector は何も記録しないMetricsCollector。
// テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordUpstreamAttempt(string) {}
func (NopCollector) RecordUpstreamStatus(int) {}
func (NopCollector) RecordUpstreamRetry(string) {}
func (NopCollector) RecordUpstreamLatency(time.Duration) {}
func (NopCollector) RecordBreakerState(string, float64) {}
func (NopCollector) RecordCacheResult(string, bool) {}
func (NopCollector) RecordRecoAttempts(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
