package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は指定名のメトリクスファミリーを返す。見つからない場合はnil。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordUpstreamAttempt_IncrementsCounterWithLabel は試行結果ごとにカウンタが増加することを検証する。
func TestRecordUpstreamAttempt_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamAttempt("success")
	c.RecordUpstreamAttempt("success")
	c.RecordUpstreamAttempt("transient")

	mf := findMetricFamily(t, reg, "tgwiki_upstream_attempts_total")
	if mf == nil {
		t.Fatal("tgwiki_upstream_attempts_total metric not found")
	}
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		label := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		switch label {
		case "success":
			if val != 2 {
				t.Errorf("upstream_attempts_total{outcome=success} = %v, want 2", val)
			}
		case "transient":
			if val != 1 {
				t.Errorf("upstream_attempts_total{outcome=transient} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", label)
		}
	}
}

// TestRecordUpstreamStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordUpstreamStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamStatus(200)
	c.RecordUpstreamStatus(503)
	c.RecordUpstreamStatus(503)

	mf := findMetricFamily(t, reg, "tgwiki_upstream_http_status_total")
	if mf == nil {
		t.Fatal("tgwiki_upstream_http_status_total metric not found")
	}
	for _, m := range mf.GetMetric() {
		label := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		if label == "503" && val != 2 {
			t.Errorf("upstream_http_status_total{status_code=503} = %v, want 2", val)
		}
		if label == "200" && val != 1 {
			t.Errorf("upstream_http_status_total{status_code=200} = %v, want 1", val)
		}
	}
}

// TestRecordUpstreamLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordUpstreamLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamLatency(100 * time.Millisecond)
	c.RecordUpstreamLatency(2 * time.Second)

	mf := findMetricFamily(t, reg, "tgwiki_upstream_latency_seconds")
	if mf == nil {
		t.Fatal("tgwiki_upstream_latency_seconds metric not found")
	}
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordCacheResult_SeparatesHitAndMiss はキャッシュのヒットとミスが別ラベルで記録されることを検証する。
func TestRecordCacheResult_SeparatesHitAndMiss(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheResult("article", true)
	c.RecordCacheResult("article", false)
	c.RecordCacheResult("article", false)

	mf := findMetricFamily(t, reg, "tgwiki_cache_requests_total")
	if mf == nil {
		t.Fatal("tgwiki_cache_requests_total metric not found")
	}
	got := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		var result string
		for _, l := range m.GetLabel() {
			if l.GetName() == "result" {
				result = l.GetValue()
			}
		}
		got[result] = m.GetCounter().GetValue()
	}
	if got["hit"] != 1 {
		t.Errorf("cache hit = %v, want 1", got["hit"])
	}
	if got["miss"] != 2 {
		t.Errorf("cache miss = %v, want 2", got["miss"])
	}
}

// TestRecordBreakerState_SetsGauge はブレーカー状態のゲージが上書きされることを検証する。
func TestRecordBreakerState_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBreakerState("wikipedia", 2)
	c.RecordBreakerState("wikipedia", 1)

	mf := findMetricFamily(t, reg, "tgwiki_circuit_breaker_state")
	if mf == nil {
		t.Fatal("tgwiki_circuit_breaker_state metric not found")
	}
	if val := mf.GetMetric()[0].GetGauge().GetValue(); val != 1 {
		t.Errorf("circuit_breaker_state = %v, want 1", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamAttempt("success")
	c.RecordUpstreamRetry("status_503")
	c.RecordUpstreamStatus(200)
	c.RecordUpstreamLatency(500 * time.Millisecond)
	c.RecordRecoAttempts(3)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"tgwiki_upstream_attempts_total",
		"tgwiki_upstream_retries_total",
		"tgwiki_upstream_http_status_total",
		"tgwiki_upstream_latency_seconds",
		"tgwiki_reco_attempts",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordUpstreamAttempt("success")
	c2.RecordUpstreamAttempt("success")
	c2.RecordUpstreamAttempt("success")

	val1 := findMetricFamily(t, reg1, "tgwiki_upstream_attempts_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findMetricFamily(t, reg2, "tgwiki_upstream_attempts_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 upstream_attempts = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 upstream_attempts = %v, want 2", val2)
	}
}

// TestNopCollector_DoesNotPanic はNopCollectorの全メソッドが安全に呼べることを検証する。
func TestNopCollector_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = NopCollector{}
	c.RecordUpstreamAttempt("success")
	c.RecordUpstreamStatus(200)
	c.RecordUpstreamRetry("transport")
	c.RecordUpstreamLatency(time.Second)
	c.RecordBreakerState("wikipedia", 0)
	c.RecordCacheResult("article", true)
	c.RecordRecoAttempts(1)
}
