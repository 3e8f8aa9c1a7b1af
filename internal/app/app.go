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
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/hagwonmatch/internal/auth"
	"github.com/hitoshi/hagwonmatch/internal/authform"
	"github.com/hitoshi/hagwonmatch/internal/authsync"
	"github.com/hitoshi/hagwonmatch/internal/config"
	"github.com/hitoshi/hagwonmatch/internal/database"
	"github.com/hitoshi/hagwonmatch/internal/handler"
	"github.com/hitoshi/hagwonmatch/internal/job"
	"github.com/hitoshi/hagwonmatch/internal/localstore"
	"github.com/hitoshi/hagwonmatch/internal/logger"
	"github.com/hitoshi/hagwonmatch/internal/metrics"
	"github.com/hitoshi/hagwonmatch/internal/middleware"
	"github.com/hitoshi/hagwonmatch/internal/onboarding"
	"github.com/hitoshi/hagwonmatch/internal/repository"
	"github.com/hitoshi/hagwonmatch/internal/security"
	"github.com/hitoshi/hagwonmatch/internal/worker/cleanup"
	"github.com/hitoshi/hagwonmatch/internal/worker/refresh"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// cleanupInterval は期限切れセッション削除ジョブの実行間隔。
const cleanupInterval = 24 * time.Hour

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
		slog.String("auth_event_bus", cfg.AuthEventBus),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	pool.MaxIdleConns = cfg.DBMaxIdleConns
	return database.Connect(ctx, cfg.DatabaseURL, pool)
}

// newEventBus は設定に応じたセッション変更イベントの配信路を生成する。
func newEventBus(cfg *config.Config, db *sql.DB) (auth.EventBus, error) {
	switch cfg.AuthEventBus {
	case "postgres":
		return auth.NewPostgresBus(db, cfg.DatabaseURL, cfg.AuthEventChannel, slog.Default()), nil
	case "redis":
		bus, err := auth.NewRedisBus(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.AuthEventChannel, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return bus, nil
	default:
		return auth.NewMemoryBus(), nil
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバー・セッション同期・
// セッション自動延長を起動する。ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続とローカルセッション保存先
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established")

	store, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		return fmt.Errorf("failed to open local session store: %w", err)
	}
	defer store.Close()

	bus, err := newEventBus(cfg, db)
	if err != nil {
		return err
	}
	defer bus.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresAuthUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	teacherRepo := repository.NewPostgresTeacherProfileRepo(db)
	hagwonRepo := repository.NewPostgresHagwonProfileRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)
	applicationRepo := repository.NewPostgresApplicationRepo(db)

	// 4. 認証とセッション同期
	authService := auth.NewService(
		userRepo, sessionRepo, store, auth.NewTokenIssuer(cfg.SessionSecret), bus,
		auth.ServiceConfig{
			SessionMaxAge:            cfg.SessionMaxAge,
			RequireEmailConfirmation: cfg.RequireEmailConfirmation,
		},
		slog.Default(),
	)
	synchronizer := authsync.New(authService, profileRepo,
		authsync.WithLogger(slog.Default()),
		authsync.WithRecorder(collector),
	)
	if err := startSynchronizer(ctx, synchronizer); err != nil {
		return err
	}
	defer synchronizer.Close()

	// 5. ドメインサービスの初期化
	sanitizer := security.NewSanitizer()
	forms := authform.New(authService, slog.Default()).WithRecorder(collector)
	onboardingService := onboarding.NewService(
		synchronizer, profileRepo, teacherRepo, hagwonRepo,
		sanitizer, security.NewWebsiteGuard(cfg.WebsiteCheckTimeout), collector,
		onboarding.Config{CheckWebsite: cfg.WebsiteCheckEnabled},
		slog.Default(),
	)
	jobService := job.NewService(
		synchronizer, jobRepo, applicationRepo, sanitizer, collector,
		cfg.ApplicationDailyLimit, slog.Default(),
	)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSignIn),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    rateLimiter,
		Logger:         slog.Default(),
		Session:        synchronizer,
		Forms:          forms,
		Onboarding:     onboardingService,
		Jobs:           jobService,
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 7. セッション自動延長
	refresher := refresh.NewScheduler(authService, collector, cfg.RefreshThreshold, slog.Default())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		refresher.Start(gctx, cfg.RefreshInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("API server stopped gracefully")
	return nil
}

// startSynchronizer はシグナルによるキャンセルから切り離して同期ループを開始する。
// HTTPサーバーのドレイン中もリクエストが状態を参照できるよう、停止はCloseで行う。
func startSynchronizer(ctx context.Context, s *authsync.Synchronizer) error {
	if err := s.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to start session synchronizer: %w", err)
	}
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブを日次で実行し、/metricsを公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established (worker)")

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db), collector, cfg.SessionRetentionDays, slog.Default(),
	)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("retention_days", cleanupJob.RetentionDays),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		cleanupJob.Start(gctx, cleanupInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down worker...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
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

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
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
