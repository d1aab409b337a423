package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cliptube/internal/media"
	"github.com/hitoshi/cliptube/internal/middleware"
)

// DBPinger は死活確認に必要なインターフェース。*sql.DBが満たす。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.AccessTokenVerifier
	Accounts          middleware.AccountLoader
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	Cookies     CookieConfig

	// アカウント
	UserService UserServiceInterface

	// メディア（未構成時はnil）
	Uploader      media.UploaderService
	Fetcher       media.RemoteFetcherService
	MaxUploadSize int64

	// 運用
	DB             DBPinger
	MetricsHandler http.Handler
	StatusRecorder middleware.HTTPStatusRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//	→ (認証グループ: Auth → RateLimit(General) → CSRF)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies)
	userHandler := NewUserHandler(deps.UserService, deps.Uploader, deps.Fetcher, deps.MaxUploadSize)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Get("/metrics", deps.MetricsHandler.ServeHTTP)
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", userHandler.Register)
		r.Post("/login", authHandler.Login)
		// リフレッシュトークン自体が資格情報なので、認証ミドルウェアは通さない
		r.Post("/refresh-token", authHandler.RefreshToken)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.Accounts))
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.GeneralMiddleware())
			}
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Post("/logout", authHandler.Logout)
			r.Post("/change-password", authHandler.ChangePassword)
			r.Get("/profile", userHandler.Profile)
			r.Patch("/update-details", userHandler.UpdateDetails)
			r.Post("/update-avatar", userHandler.UpdateAvatar)
			r.Post("/update-coverimage", userHandler.UpdateCoverImage)
		})
	})

	return r
}

// newHealthHandler は死活確認エンドポイントのハンドラーを返す。
// DBへの疎通が取れない場合は503を返す。
func newHealthHandler(db DBPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
