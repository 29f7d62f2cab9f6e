package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver          middleware.PrincipalResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.StatusRecorder

	// 運用エンドポイント
	HealthChecks   map[string]HealthCheck
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 予約
	AvailabilityService AvailabilityServiceInterface
	ReservationService  ReservationServiceInterface

	// 教室・ユーザー・通知
	RoomService       RoomServiceInterface
	UserService       UserServiceInterface
	NotificationStore NotificationStore
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  /api/*: Identity → RateLimit(General) → CSRF → [RequireRole(admin)]
//
// 認証ルート（/auth/*）と /health, /metrics は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var recorder middleware.StatusRecorder = metrics.Nop{}
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(recorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	resHandler := NewReservationHandler(deps.AvailabilityService, deps.ReservationService)
	roomHandler := NewRoomHandler(deps.RoomService)
	userHandler := NewUserHandler(deps.UserService)
	notifHandler := NewNotificationHandler(deps.NotificationStore)

	// --- 認証不要のルート ---

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecks))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Get("/login/success", authHandler.LoginSuccess)
		r.Get("/me", authHandler.Me)
		r.Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.Resolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 予約（学生・管理者）
		r.Get("/available-rooms", resHandler.AvailableRooms)
		r.With(deps.RateLimiter.ReservationMiddleware()).Post("/reserve-room", resHandler.ReserveRoom)
		r.Get("/rejected/{id}", resHandler.Rejections)
		r.Get("/reservations/student/{id}", resHandler.StudentReservations)

		// 教室参照
		r.Get("/get-classrooms", roomHandler.List)
		r.Get("/room/{id}", roomHandler.Get)
		r.Get("/room-name/{name}", roomHandler.GetByName)

		r.Get("/user/{email}", userHandler.GetByEmail)

		r.Get("/notifications", notifHandler.List)
		r.Post("/notifications/{id}/read", notifHandler.MarkRead)

		// 管理者のみ
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))

			r.Get("/future-reservations", resHandler.FutureReservations)
			r.Get("/past-reservations", resHandler.PastReservations)
			r.Post("/approve-request", resHandler.ApproveRequest)
			r.Post("/rejected-request", resHandler.RejectRequest)

			r.Post("/add-classroom", roomHandler.Add)
			r.Post("/edit-classroom", roomHandler.Edit)
			r.Post("/delete-classroom", roomHandler.Delete)

			r.Post("/add-user", userHandler.AddUser)
		})
	})

	return r
}
