package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tgwiki/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	RateLimiter    *middleware.RateLimiter
	RequestTimeout time.Duration

	// 運用エンドポイント
	HealthChecks   []HealthCheck
	MetricsHandler http.Handler

	// 記事（ユーザーに紐付かない取得・検索）
	Articles ArticleSource
	Searcher ArticleSearcher

	// ユーザー
	Users        UserService
	Recommender  Recommender
	UserArticles UserArticleService
	Renderer     PageRenderer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → (/api/v1) Timeout → RateLimit
//
// /health と /metrics はレート制限とタイムアウトの外に配置する。
// ユーザー配下のルートはuserIDごと、それ以外はクライアントIPごとにレート制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	articleHandler := NewArticleHandler(deps.Articles, deps.Searcher, deps.Logger)
	userHandler := NewUserHandler(deps.Users, deps.Recommender, deps.UserArticles, deps.Renderer, deps.Logger)

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecks, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewTimeoutMiddleware(deps.RequestTimeout))

		// 記事（クライアントIP単位のレート制限）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware(middleware.ClientIPKey))

			r.Get("/articles/random", articleHandler.RandomArticle)
			r.Get("/articles/by-title", articleHandler.ArticleByTitle)
			r.Get("/articles/{pageid}", articleHandler.ArticleByPageID)
			r.With(deps.RateLimiter.SearchMiddleware(middleware.ClientIPKey)).Get("/search", articleHandler.Search)

			r.Post("/users/resolve", userHandler.ResolveUser)
		})

		// ユーザー配下（userID単位のレート制限）
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware(middleware.UserKey))

			r.Get("/next", userHandler.NextArticle)
			r.With(deps.RateLimiter.SearchMiddleware(middleware.UserKey)).Get("/search", userHandler.Search)

			r.Route("/articles/{pageid}", func(r chi.Router) {
				r.Get("/", userHandler.GetArticle)
				r.Get("/pages/{page}", userHandler.GetArticlePage)
			})

			r.Get("/settings", userHandler.GetSettings)
			r.Patch("/settings", userHandler.UpdateSettings)
		})
	})

	return r
}
