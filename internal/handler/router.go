package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/fieldportal/internal/metrics"
	"github.com/hitoshi/fieldportal/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 稼働監視
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	// ドメインサービス
	AuthService    AuthServiceInterface
	BookingService BookingServiceInterface
	JobService     JobServiceInterface
	MessageService MessageServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeadersMiddleware → LoggingMiddleware → RecoveryMiddleware
//	→ (認証グループ) AuthMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 登録・ログイン、ヘルスチェック、メトリクスは認証グループの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	authHandler := NewAuthHandler(deps.AuthService)
	bookingHandler := NewBookingHandler(deps.BookingService)
	jobHandler := NewJobHandler(deps.JobService)
	messageHandler := NewMessageHandler(deps.MessageService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Check)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// ログアウトとプロフィールは有効なトークンが必要
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 予約照会
		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", bookingHandler.ListBookings)
			r.Get("/{id}", bookingHandler.GetBookingDetail)
		})

		// 予約の作成・変更・キャンセル
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jobHandler.CreateJob)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", jobHandler.UpdateJob)
				r.Delete("/", jobHandler.CancelJob)
			})
		})

		// メッセージスレッド
		r.Route("/messages/{jobId}", func(r chi.Router) {
			r.Get("/", messageHandler.ListMessages)
			// POST /messages/{jobId} - 送信専用レート制限を追加
			r.With(deps.RateLimiter.MessageSendMiddleware()).Post("/", messageHandler.SendMessage)
		})
	})

	return r
}
