package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/cache/memory"
	"github.com/hitoshi/tgwiki/internal/cache/rediscache"
	"github.com/hitoshi/tgwiki/internal/config"
	"github.com/hitoshi/tgwiki/internal/database"
	"github.com/hitoshi/tgwiki/internal/fetch"
	"github.com/hitoshi/tgwiki/internal/handler"
	"github.com/hitoshi/tgwiki/internal/logger"
	"github.com/hitoshi/tgwiki/internal/metrics"
	"github.com/hitoshi/tgwiki/internal/middleware"
	"github.com/hitoshi/tgwiki/internal/reco"
	"github.com/hitoshi/tgwiki/internal/render"
	"github.com/hitoshi/tgwiki/internal/repository"
	"github.com/hitoshi/tgwiki/internal/search"
	"github.com/hitoshi/tgwiki/internal/security"
	"github.com/hitoshi/tgwiki/internal/settings"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルを設定に合わせる
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("falling back to info log level", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, known := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if !known {
		slog.Warn("unknown command, falling back to serve",
			slog.String("command", args[0]),
			slog.String("usage", Usage()),
		)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB・キャッシュ・上流クライアントを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. キャッシュ
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	caches, rdb, err := openCaches(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open caches: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	checks := []handler.HealthCheck{{Name: "database", Ping: db.PingContext}}
	if rdb != nil {
		checks = append(checks, handler.HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	// 3. 依存関係のワイヤリング
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	comps, err := newComponents(cfg, db, caches, checks, reg, slog.Default())
	if err != nil {
		return err
	}
	defer comps.close()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           comps.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// components はserveモードで組み立てた依存関係を保持する。
type components struct {
	fetcher  *fetch.Client
	settings *settings.Service
	limiter  *middleware.RateLimiter
	router   http.Handler
}

// newComponents はDBとキャッシュから上流クライアント・サービス・ルーターを組み立てる。
// 戻り値のcloseで、設定の非同期更新の完了待ち・レート制限の停止・接続プールの解放を行う。
func newComponents(
	cfg *config.Config,
	db *sql.DB,
	caches *cache.Caches,
	checks []handler.HealthCheck,
	reg *prometheus.Registry,
	log *slog.Logger,
) (*components, error) {
	collector := metrics.NewCollector(reg)

	fetcher := fetch.New(fetchConfig(cfg),
		fetch.WithLogger(log),
		fetch.WithMetrics(collector),
	)
	if err := fetcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start upstream client: %w", err)
	}

	adapter := wiki.NewAdapter(fetcher, log)

	recoService := reco.NewService(adapter, caches.Articles, caches.LastView, log,
		reco.WithMaxAttempts(cfg.RecoMaxAttempts),
		reco.WithMetrics(collector),
	)
	searchService := search.NewService(adapter, caches.Articles, caches.LastView, log, collector,
		search.WithFlightTimeout(cfg.RequestTimeout),
	)
	settingsService := settings.NewService(
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresSettingsRepo(db),
		caches.Settings,
		caches.UserIDs,
		log,
		settings.WithMetrics(collector),
	)

	limiter := middleware.NewRateLimiter(rateLimiterConfig(cfg), log)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         log,
		RateLimiter:    limiter,
		RequestTimeout: cfg.RequestTimeout,
		HealthChecks:   checks,
		MetricsHandler: metrics.Handler(reg),
		Articles:       adapter,
		Searcher:       searchService,
		Users:          settingsService,
		Recommender:    recoService,
		UserArticles:   searchService,
		Renderer:       render.NewRenderer(security.NewContentSanitizer()),
	})

	return &components{
		fetcher:  fetcher,
		settings: settingsService,
		limiter:  limiter,
		router:   router,
	}, nil
}

// close はサーバー停止後に呼び出す。
func (c *components) close() {
	c.settings.Close()
	c.limiter.Stop()
	if err := c.fetcher.Close(); err != nil {
		slog.Warn("failed to close upstream client", slog.String("error", err.Error()))
	}
}

// openCaches は設定されたバックエンドのキャッシュを生成する。
// Redisバックエンドの場合は生成したクライアントも返す（memoryの場合はnil）。
func openCaches(ctx context.Context, cfg *config.Config) (*cache.Caches, *redis.Client, error) {
	if cfg.CacheBackend != config.CacheBackendRedis {
		caches, err := memory.NewCaches(memory.Config{
			MaxArticles:   cfg.CacheMaxArticles,
			RecentPerUser: cfg.CacheRecentPerUser,
			MaxUsers:      cfg.CacheMaxUsers,
		})
		if err != nil {
			return nil, nil, err
		}
		return caches, nil, nil
	}

	rdb, err := rediscache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	caches, err := rediscache.NewCaches(rdb, rediscache.Config{
		Prefix:        cfg.CachePrefix,
		RecentPerUser: cfg.CacheRecentPerUser,
		ArticleTTL:    cfg.CacheArticleTTL,
		RecentTTL:     cfg.CacheRecentTTL,
		SettingsTTL:   cfg.CacheSettingsTTL,
		UserIDTTL:     cfg.CacheUserIDTTL,
	})
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	slog.Info("redis cache connected", slog.String("prefix", cfg.CachePrefix))
	return caches, rdb, nil
}

// fetchConfig は上流クライアントの設定を組み立てる。ブレーカーの閾値はデフォルト値を使う。
func fetchConfig(cfg *config.Config) fetch.Config {
	fc := fetch.DefaultConfig()
	fc.UserAgent = cfg.WikiUserAgent
	fc.TotalTimeout = cfg.WikiTotalTimeout
	fc.ConnectTimeout = cfg.WikiConnectTimeout
	fc.ReadTimeout = cfg.WikiReadTimeout
	fc.MaxConns = cfg.WikiMaxConns
	fc.MaxConnsPerHost = cfg.WikiMaxConnsPerHost
	fc.Retries = cfg.WikiRetries
	fc.RetryBaseDelay = cfg.WikiRetryBaseDelay
	fc.RequestsPerSecond = cfg.WikiRateLimit
	fc.Breaker.Enabled = cfg.WikiBreakerEnabled
	return fc
}

// rateLimiterConfig は受信リクエストのレート制限設定を組み立てる。
// configの値はreq/min単位。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	return middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitSearch)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	sv, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(sv.Version)),
		slog.Bool("applied", sv.Applied),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
