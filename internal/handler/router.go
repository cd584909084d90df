package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chatman/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通確認する対象のインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	MetricsRecorder   middleware.HTTPMetricsRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// スレッド
	ThreadService ThreadServiceInterface

	// メッセージ
	MessageService MessageServiceInterface

	// ページネーション
	Pages PageConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）とヘルスチェックはミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア。Recoveryを最上位に置き、
	// 後続ミドルウェアやハンドラーのpanicも捕捉する。
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.MetricsRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	threadHandler := NewThreadHandler(deps.ThreadService, deps.Pages)
	messageHandler := NewMessageHandler(deps.MessageService, deps.Pages)

	// --- 認証不要のルート ---

	// ヘルスチェック（DB疎通込み）
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := deps.HealthChecker.PingContext(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// 認証ルート
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// スレッド管理
		r.Route("/chat/threads", func(r chi.Router) {
			r.Get("/", threadHandler.ListThreads)
			r.Post("/", threadHandler.CreateOrGetThread)
			r.Delete("/{id}/", threadHandler.DeleteThread)
		})

		// メッセージ管理
		r.Route("/chat/messages", func(r chi.Router) {
			r.Get("/", messageHandler.ListMessages)
			// POST /chat/messages/ - 送信専用レート制限を追加
			r.With(deps.RateLimiter.SendMiddleware()).Post("/", messageHandler.CreateMessage)
			r.Get("/unread/", messageHandler.UnreadCount)
			r.Post("/{id}/mark_as_read/", messageHandler.MarkAsRead)
		})
	})

	return r
}
