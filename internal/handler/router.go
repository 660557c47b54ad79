// Package handler はコンパニオンサーバーのHTTPハンドラーを提供する。
//
// ブラウザのフロントエンドやスクリプトから、セッション・記事・いいね・フォローの
// 各機能をローカルのJSON APIとして呼べるようにする。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/preview"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker は/healthで疎通を確認する依存先（資格情報ストアのDB）。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	CookieSecure      bool
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	Session   SessionService
	Posts     PostLister
	Detail    DetailReader
	Likes     LikeToggler
	Follows   FollowService
	Directory FollowDirectory
	Excerpter preview.Excerpter

	// 記事一覧の1ページあたりの件数
	PostsPageSize int
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RateLimit → CSRF
//
// /healthと/metricsはCSRFとレート制限の外に置く。
// 状態を変更するいいね・フォローは加えてRequireSessionを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker).ServeHTTP)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	sessionHandler := NewSessionHandler(deps.Session, logger)
	postHandler := NewPostHandler(deps.Posts, deps.Detail, deps.Likes, deps.Excerpter, deps.PostsPageSize, logger)
	followHandler := NewFollowHandler(deps.Follows, deps.Directory, logger)
	csrfConfig := middleware.CSRFConfig{CookieSecure: deps.CookieSecure, Logger: logger}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(middleware.NewOptionalSession(deps.Session))

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig).ServeHTTP)

		r.Route("/api/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Current)
			r.Post("/login", sessionHandler.Login)
			r.Post("/signup", sessionHandler.Signup)
			r.Post("/logout", sessionHandler.Logout)
			r.Post("/refresh", sessionHandler.Refresh)
		})

		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", postHandler.ListPosts)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.GetPost)
				r.With(middleware.NewRequireSession(deps.Session)).Post("/like", postHandler.ToggleLike)
			})
		})

		r.Route("/api/users/{id}", func(r chi.Router) {
			r.Get("/follow-status", followHandler.Status)
			r.With(middleware.NewRequireSession(deps.Session)).Post("/follow", followHandler.Toggle)
			r.Get("/followers", followHandler.Followers)
			r.Get("/followings", followHandler.Followings)
			r.Get("/follow-counts", followHandler.Counts)
		})
	})

	return r
}
