package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hitoshi/tgwiki/internal/metrics"
)

// maxBodySize はレスポンスボディの最大読み取りサイズ（8MB）。
const maxBodySize = 8 << 20

// Client はリトライ付きでJSONを取得するHTTPクライアント。
// Startで接続プールを構築し、Closeで解放する。
// 複数のgoroutineから同時に使用できる。
type Client struct {
	cfg     Config
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[json.RawMessage]

	// sleep はバックオフ待機関数。テスト用に差し替え可能。
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu         sync.RWMutex
	httpClient *http.Client
	transport  *http.Transport
	injected   *http.Client
}

// Option はClientのオプション設定関数。
type Option func(*Client)

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient は接続プールを自前で構築せず、指定のHTTPクライアントを使用する。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.injected = hc
	}
}

// New はClientの新しいインスタンスを生成する。
// 使用前にStartを呼び出す必要がある。
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: metrics.NopCollector{},
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.Breaker.Enabled {
		c.breaker = c.newBreaker(cfg.Breaker)
	}

	return c
}

// newBreaker は一時的な失敗のみをカウントするサーキットブレーカーを生成する。
func (c *Client) newBreaker(bc BreakerConfig) *gobreaker.CircuitBreaker[json.RawMessage] {
	threshold := bc.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "wikipedia",
		MaxRequests: bc.HalfOpenRequests,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("サーキットブレーカーの状態が変化しました",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			c.metrics.RecordBreakerState(name, breakerStateValue(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Start は接続プールを構築する。複数回呼び出しても安全。
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.httpClient != nil {
		return nil
	}
	if c.injected != nil {
		c.httpClient = c.injected
		return nil
	}

	dialer := &net.Dialer{
		Timeout:   c.cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	c.transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          c.cfg.MaxConns,
		MaxIdleConnsPerHost:   c.cfg.MaxConnsPerHost,
		MaxConnsPerHost:       c.cfg.MaxConnsPerHost,
		IdleConnTimeout:       c.cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   c.cfg.ConnectTimeout,
		ResponseHeaderTimeout: c.cfg.ReadTimeout,
	}
	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   c.cfg.TotalTimeout,
	}
	return nil
}

// Close はアイドル接続を解放する。Close後のリクエストはErrNotStartedを返す。
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport != nil {
		c.transport.CloseIdleConnections()
		c.transport = nil
	}
	c.httpClient = nil
	return nil
}

func (c *Client) client() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

// GetJSON はGETリクエストでJSONを取得する。
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values) (json.RawMessage, error) {
	return c.RequestJSON(ctx, http.MethodGet, rawURL, query, nil, nil)
}

// RequestJSON はリクエストを送信し、検証済みのJSONボディを返す。
// 429/5xxとトランスポートエラーはRetries回までリトライする。
// 待機時間はRetry-Afterヘッダーがあればその値、なければRetryBaseDelay * 2^attempt。
// 失敗時は*FetchErrorを返す。ctxが終了した場合はctx.Err()を返す。
func (c *Client) RequestJSON(
	ctx context.Context,
	method, rawURL string,
	query url.Values,
	body any,
	headers map[string]string,
) (json.RawMessage, error) {
	hc := c.client()
	if hc == nil {
		return nil, ErrNotStarted
	}

	reqURL, err := buildURL(rawURL, query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
	}

	start := c.now()
	defer func() {
		c.metrics.RecordUpstreamLatency(c.now().Sub(start))
	}()

	call := func() (json.RawMessage, error) {
		return c.doWithRetry(ctx, hc, method, reqURL, payload, headers)
	}
	if c.breaker == nil {
		return call()
	}

	data, err := c.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.RecordUpstreamAttempt(KindCircuitOpen.String())
		return nil, &FetchError{Kind: KindCircuitOpen, Transient: true, Err: err}
	}
	return data, err
}

func (c *Client) doWithRetry(
	ctx context.Context,
	hc *http.Client,
	method, reqURL string,
	payload []byte,
	headers map[string]string,
) (json.RawMessage, error) {
	attempts := c.cfg.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr *FetchError
	for attempt := 0; attempt < attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		data, err := c.attempt(ctx, hc, method, reqURL, payload, headers)
		if err == nil {
			c.metrics.RecordUpstreamAttempt("success")
			return data, nil
		}

		// 外側の期限切れ・キャンセルはリトライせずにそのまま返す
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			return nil, err
		}
		fe.Attempts = attempt + 1
		c.metrics.RecordUpstreamAttempt(fe.Kind.String())

		if !fe.Transient {
			c.logger.Error("上流APIの呼び出しに失敗しました",
				slog.String("url", reqURL),
				slog.String("kind", fe.Kind.String()),
				slog.Int("http_status", fe.StatusCode),
				slog.Int("attempts", fe.Attempts),
			)
			return nil, fe
		}

		lastErr = fe
		if attempt == attempts-1 {
			break
		}

		delay := CalculateBackoff(c.cfg.RetryBaseDelay, attempt)
		if fe.hasRetryAfter {
			delay = fe.RetryAfter
		}
		c.metrics.RecordUpstreamRetry(fe.Kind.String())
		c.logger.Warn("上流APIの一時的なエラーのためリトライします",
			slog.String("url", reqURL),
			slog.String("kind", fe.Kind.String()),
			slog.Int("http_status", fe.StatusCode),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	c.logger.Error("上流APIのリトライ上限に達しました",
		slog.String("url", reqURL),
		slog.String("kind", lastErr.Kind.String()),
		slog.Int("http_status", lastErr.StatusCode),
		slog.Int("attempts", lastErr.Attempts),
	)
	return nil, lastErr
}

// attempt は1回分のリクエストを実行し、結果を分類する。
func (c *Client) attempt(
	ctx context.Context,
	hc *http.Client,
	method, reqURL string,
	payload []byte,
	headers map[string]string,
) (json.RawMessage, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstreamStatus(resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{
			Kind:       KindTransport,
			StatusCode: resp.StatusCode,
			Transient:  true,
			Err:        fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err),
		}
	}

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case StatusClassOK:
		if !json.Valid(data) {
			return nil, &FetchError{
				Kind:       KindMalformed,
				StatusCode: resp.StatusCode,
				Err:        errors.New("レスポンスが不正なJSONです"),
			}
		}
		return json.RawMessage(data), nil

	case StatusClassTransient:
		fe := &FetchError{
			Kind:       KindTransientStatus,
			StatusCode: resp.StatusCode,
			Transient:  true,
			Err:        fmt.Errorf("上流APIがステータス %d を返しました", resp.StatusCode),
		}
		if d, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), c.now()); ok {
			fe.RetryAfter = d
			fe.hasRetryAfter = true
		}
		return nil, fe

	default:
		return nil, &FetchError{
			Kind:       KindPermanentStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("上流APIがステータス %d を返しました", resp.StatusCode),
		}
	}
}

// buildURL はベースURLにクエリパラメータを追加する。
func buildURL(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("URLのパースに失敗しました: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// sleepContext はdだけ待機する。ctxが先に終了した場合はctx.Err()を返す。
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
