package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/postline/internal/cache"
	"github.com/hitoshi/postline/internal/metrics"
	"github.com/hitoshi/postline/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ページキャッシュ
	Cache    cache.Store
	CacheTTL time.Duration

	// メトリクス
	Metrics        *metrics.Collector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	FeedService   FeedServiceInterface
	PostService   PostServiceInterface
	SocialService SocialServiceInterface
	FollowChecker FollowChecker
	UserService   UserServiceInterface

	MaxUploadSize int64
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → WithUser → RateLimit(General)
//
// 認証が必要なルートはさらにRequireUserを通し、
// 投稿系の書き込みルートには投稿専用レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// 型付きnilをインターフェースに入れない
	var cacheMetrics CacheMetrics
	var creationMetrics CreationMetrics
	if deps.Metrics != nil {
		cacheMetrics = deps.Metrics
		creationMetrics = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	feedHandler := NewFeedHandler(deps.FeedService, deps.Cache, deps.CacheTTL, cacheMetrics)
	postHandler := NewPostHandler(deps.PostService, creationMetrics, deps.MaxUploadSize)
	socialHandler := NewSocialHandler(deps.SocialService)
	userHandler := NewUserHandler(deps.UserService, deps.FeedService, deps.FollowChecker)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w)
	})

	// --- 運用エンドポイント（セッション・レート制限の外） ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証ルート（OAuthフロー） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- アプリケーションルート ---
	// WithUserで匿名も通し、認証必須の操作だけRequireUserで絞る
	r.Group(func(r chi.Router) {
		r.Use(middleware.WithUser(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", feedHandler.Index)
		r.Get("/groups", postHandler.ListGroups)
		r.Get("/group/{slug}", feedHandler.GroupFeed)

		r.With(middleware.RequireUser()).Get("/follow", feedHandler.FollowFeed)
		r.With(middleware.RequireUser(), deps.RateLimiter.PostingMiddleware()).
			Post("/new", postHandler.NewPost)
		r.With(middleware.RequireUser(), deps.RateLimiter.PostingMiddleware()).
			Post("/new_group", postHandler.NewGroup)

		// 静的ルートに一致しないパスはユーザー名として解釈する
		r.Route("/{username}", func(r chi.Router) {
			r.Get("/", userHandler.Profile)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser())

				r.Post("/follow", socialHandler.Follow)
				r.Post("/unfollow", socialHandler.Unfollow)
				r.Get("/profile_edit", userHandler.ProfileEditForm)
				r.Post("/profile_edit", userHandler.ProfileEdit)
			})

			r.Route("/{postID}", func(r chi.Router) {
				r.Get("/", postHandler.PostView)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireUser())

					r.Get("/edit", postHandler.EditPostForm)
					r.Post("/edit", postHandler.EditPost)
					r.Post("/delete", postHandler.DeletePost)
					r.With(deps.RateLimiter.PostingMiddleware()).
						Post("/comment", postHandler.AddComment)
					r.Post("/comment/{commentID}/delete", postHandler.DeleteComment)
					r.Post("/like", socialHandler.Like)
					r.Post("/unlike", socialHandler.Unlike)
					r.Post("/image", postHandler.UploadImage)
				})
			})
		})
	})

	return r
}
