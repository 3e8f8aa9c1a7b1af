package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/hagwonmatch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// ログイン状態
	Session SessionController
	Forms   FormSubmitter

	// ドメイン
	Onboarding OnboardingService
	Jobs       JobService

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS → CSRF → RateLimit(General)
//
// /health と /metrics はCSRFとレート制限の外に配置する。
// ログインが必要なルートにはさらにIdentityミドルウェアを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Session))
	r.Use(middleware.NewRecoveryMiddleware(logger))

	authHandler := NewAuthHandler(deps.Forms, deps.Session)
	profileHandler := NewProfileHandler(deps.Onboarding)
	jobHandler := NewJobHandler(deps.Jobs)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker, deps.Session))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRFConfig.CookieSecure))
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// --- ログイン不要のルート ---
		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.SignInMiddleware()).Post("/signup", authHandler.SignUp)
			r.With(deps.RateLimiter.SignInMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
		r.Get("/api/profile/options", profileHandler.Options)
		r.Get("/api/jobs", jobHandler.BrowseJobs)

		// --- ログインが必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewIdentityMiddleware(deps.Session))

			// プロフィール
			r.Post("/api/profile/refresh", authHandler.RefreshProfile)
			r.Post("/api/profile/teacher", profileHandler.CompleteTeacher)
			r.Post("/api/profile/hagwon", profileHandler.CompleteHagwon)

			// 求人
			r.Post("/api/jobs", jobHandler.PostJob)
			r.Get("/api/jobs/mine", jobHandler.ListOwnJobs)
			r.Get("/api/jobs/recommended", jobHandler.Recommend)
			r.Patch("/api/jobs/{id}", jobHandler.SetJobActive)
			r.Post("/api/jobs/{id}/applications", jobHandler.Apply)
			r.Get("/api/jobs/{id}/applications", jobHandler.ListApplicationsForJob)

			// 応募
			r.Get("/api/applications", jobHandler.ListOwnApplications)
			r.Patch("/api/applications/{id}/status", jobHandler.UpdateApplicationStatus)
		})

		// 掲載中の求人詳細はログイン不要
		r.Get("/api/jobs/{id}", jobHandler.GetJob)
	})

	return r
}
