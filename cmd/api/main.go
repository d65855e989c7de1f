package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumi-ajolote/lumi/backend/internal/config"
	"github.com/lumi-ajolote/lumi/backend/internal/database"
	"github.com/lumi-ajolote/lumi/backend/internal/handler"
	"github.com/lumi-ajolote/lumi/backend/internal/logger"
	"github.com/lumi-ajolote/lumi/backend/internal/metrics"
	"github.com/lumi-ajolote/lumi/backend/internal/middleware"
	"github.com/lumi-ajolote/lumi/backend/internal/model/persona"
	"github.com/lumi-ajolote/lumi/backend/internal/repository"
	"github.com/lumi-ajolote/lumi/backend/internal/service/ai"
	"github.com/lumi-ajolote/lumi/backend/internal/service/auth"
	"github.com/lumi-ajolote/lumi/backend/internal/service/chat"
	emotionservice "github.com/lumi-ajolote/lumi/backend/internal/service/emotion"
	"github.com/lumi-ajolote/lumi/backend/internal/service/profile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	stores, closeStores, err := openStores(ctx, cfg.Database, zl)
	if err != nil {
		return err
	}
	defer closeStores()

	var (
		recorder       metrics.Recorder = metrics.Nop{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewCollector(reg)
		metricsHandler = metrics.Handler(reg)
	}

	if !cfg.AI.Enabled() {
		return fmt.Errorf("%s 凭证未配置，无法生成回复", cfg.AI.Provider)
	}
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize chat model: %w", err)
	}
	zl.Info("chat model initialized", zap.String("provider", cfg.AI.Provider))

	personaStore := persona.NewMemoryStore(persona.Seed())
	replies, err := ai.NewService(ctx, chatModel, personaStore, ai.Config{Timeout: cfg.AI.Timeout}, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize reply generator: %w", err)
	}

	classifier, err := emotionservice.NewService(ctx, chatModel, emotionservice.Config{
		Enabled: cfg.AI.EmotionLLMEnabled,
		Timeout: cfg.AI.Timeout,
	}, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize emotion classifier: %w", err)
	}
	if !classifier.Enabled() {
		zl.Info("emotion classifier using keyword heuristics only")
	}

	aggregator := profile.NewAggregator(stores.Profiles, zl)
	chatSvc := chat.NewService(replies, classifier, aggregator, stores.Conversations, recorder, zl)
	authSvc := auth.NewService(stores.Users, zl)

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), zl, recorder)
	defer limiter.Stop()

	router := handler.NewRouter(handler.Dependencies{
		Auth:           authSvc,
		Chat:           chatSvc,
		Personas:       personaStore,
		Persona:        replies.Persona(),
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		RateLimiter:    limiter,
		RateLimit:      cfg.RateLimit,
		Metrics:        recorder,
		MetricsHandler: metricsHandler,
		Logger:         zl,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zl.Info("Lumi backend listening", zap.String("addr", cfg.Server.Addr))
	return serve(ctx, srv, cfg.Server.ShutdownTimeout)
}

func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStores 选择存储后端：配置了 DATABASE_URL 时使用 PostgreSQL，否则使用内存存储。
func openStores(ctx context.Context, cfg config.DatabaseConfig, zl *zap.Logger) (repository.Stores, func(), error) {
	if !cfg.UsePostgres() {
		zl.Warn("DATABASE_URL 未配置，使用内存存储，重启后数据会丢失")
		return repository.NewMemoryStores(), func() {}, nil
	}

	if cfg.AutoMigrate {
		version, err := database.RunMigrations(cfg.URL)
		if err != nil {
			return repository.Stores{}, nil, err
		}
		zl.Info("database migrations applied", zap.Uint("schema_version", version))
	}

	db, err := database.Open(cfg.URL)
	if err != nil {
		return repository.Stores{}, nil, err
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		_ = db.Close()
		return repository.Stores{}, nil, err
	}
	return database.NewStores(db), closeDB(db, zl), nil
}

func closeDB(db *sql.DB, zl *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			zl.Warn("failed to close database", zap.Error(err))
		}
	}
}
