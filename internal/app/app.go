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

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/config"
	"github.com/hitoshi/roombook/internal/database"
	"github.com/hitoshi/roombook/internal/handler"
	"github.com/hitoshi/roombook/internal/logger"
	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/notify"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/reservation"
	"github.com/hitoshi/roombook/internal/room"
	"github.com/hitoshi/roombook/internal/security"
	"github.com/hitoshi/roombook/internal/user"
	"github.com/hitoshi/roombook/internal/worker/cleanup"
)

const (
	// cleanupInterval はワーカーがクリーンアップジョブを実行する間隔。
	cleanupInterval = 24 * time.Hour

	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

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

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("timezone", cfg.Location.String()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandAddAdmin:
		return runAddAdmin(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. トークン失効リスト（Redis または インメモリ）
	revoked, redisClient := newRevocationList(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// 3. メトリクス
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	// 4. レートリミッター
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitReserve))
	defer limiter.Stop()

	// 5. ルーターの構築
	router := handler.NewRouter(buildRouterDeps(cfg, db, redisClient, revoked, collector, limiter, registry))

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("API server starting",
		slog.String("addr", server.Addr),
	)
	if err := serve(ctx, server); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// serve はctxがキャンセルされるまでサーバーを動かし、キャンセル後はグレースフルに停止する。
// 待ち受けに失敗した場合はその時点でエラーを返す。
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server listen error on %s: %w", server.Addr, err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...", slog.String("addr", server.Addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// newRegistry はGo・プロセスのコレクターを登録済みのレジストリを返す。
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// newWorkerMetricsServer はワーカーの /metrics を公開するサーバーを返す。
func newWorkerMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	r := http.NewServeMux()
	r.Handle("GET /metrics", metrics.Handler(gatherer))
	return &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// buildRouterDeps はリポジトリとドメインサービスを生成し、ルーターの依存関係を組み立てる。
// redisClientがnilの場合はRedisのヘルスチェックを登録しない。
func buildRouterDeps(
	cfg *config.Config,
	db *sql.DB,
	redisClient *redis.Client,
	revoked auth.RevocationList,
	collector *metrics.Collector,
	limiter *middleware.RateLimiter,
	gatherer prometheus.Gatherer,
) *handler.RouterDeps {
	// リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	roomRepo := repository.NewPostgresRoomRepo(db)
	reservationRepo := repository.NewPostgresReservationRepo(db, cfg.Location)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	// ドメインサービス
	sanitizer := security.NewTextSanitizer()
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		revoked,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	availability := reservation.NewAvailabilityChecker(roomRepo, reservationRepo, cfg.Location, collector)
	lifecycle := reservation.NewLifecycle(
		reservationRepo, userRepo,
		newNotifier(cfg, notificationRepo),
		sanitizer, collector, cfg.Location,
	)

	checks := map[string]handler.HealthCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	return &handler.RouterDeps{
		Resolver:          authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: limiter,
		Logger:      slog.Default(),
		Metrics:     collector,

		HealthChecks:   checks,
		MetricsHandler: metrics.Handler(gatherer),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		AvailabilityService: availability,
		ReservationService:  lifecycle,

		RoomService:       room.NewService(roomRepo, sanitizer),
		UserService:       user.NewService(userRepo, sanitizer),
		NotificationStore: notificationRepo,
	}
}

// newRevocationList はREDIS_ADDRが設定されていればRedisを、未設定ならインメモリの失効リストを返す。
// Redisを使う場合はクライアントも返す。呼び出し側でCloseすること。
func newRevocationList(cfg *config.Config) (auth.RevocationList, *redis.Client) {
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR is not set; token revocation is kept in process memory")
		return auth.NewMemoryRevocationList(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return auth.NewRedisRevocationList(client), client
}

// newNotifier は通知チャネルを組み立てる。アプリ内通知は常に有効で、
// SMTPが設定されている場合のみメール送信を加える。
func newNotifier(cfg *config.Config, notifications repository.NotificationRepository) notify.Notifier {
	inbox := notify.NewInboxNotifier(notifications)
	if !cfg.SMTPEnabled() {
		slog.Info("SMTP is not configured; email notifications are disabled")
		return notify.MultiNotifier{inbox, notify.NopNotifier{}}
	}
	email := notify.NewEmailNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, nil)
	return notify.MultiNotifier{inbox, email}
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、クリーンアップジョブを起動直後と日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続（ワーカーは同時実行が少ないためプールを絞る）
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. メトリクス（WORKER_METRICS_PORT の /metrics で公開する）
	registry := newRegistry()

	// 3. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db),
		repository.NewPostgresNotificationRepo(db),
		metrics.NewCollector(registry),
		slog.Default(),
	)
	cleanupJob.RetentionDays = cfg.NotificationRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// メトリクスサーバーが待ち受けに失敗した場合はジョブも止める
	metricsServer := newWorkerMetricsServer(cfg.WorkerMetricsPort, registry)
	metricsErr := make(chan error, 1)
	go func() {
		defer cancel()
		metricsErr <- serve(ctx, metricsServer)
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("notification_retention_days", cfg.NotificationRetentionDays),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cleanupInterval)

	if err := <-metricsErr; err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runAddAdmin は管理者ユーザーを事前登録する。
// 登録したメールアドレスで初回Googleログインすると管理者として扱われる。
func runAddAdmin(cfg *config.Config, args []string) error {
	email, name, err := addAdminArgs(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	svc := user.NewService(repository.NewPostgresUserRepo(db), security.NewTextSanitizer())
	admin, err := svc.AddUser(ctx, email, model.RoleAdmin, name)
	if err != nil {
		return fmt.Errorf("failed to add admin: %w", err)
	}

	slog.Info("admin user registered",
		slog.String("user_id", admin.ID),
		slog.String("email", admin.Email),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(url string) error {
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
