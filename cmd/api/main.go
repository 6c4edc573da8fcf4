package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/rupeevault/backend/internal/admin"
	"github.com/rupeevault/backend/internal/config"
	"github.com/rupeevault/backend/internal/engine"
	"github.com/rupeevault/backend/internal/escalation"
	"github.com/rupeevault/backend/internal/kyc"
	"github.com/rupeevault/backend/internal/ledger"
	"github.com/rupeevault/backend/internal/notify"
	"github.com/rupeevault/backend/internal/registry"
	"github.com/rupeevault/backend/internal/router"
	"github.com/rupeevault/backend/internal/timers"
	"github.com/rupeevault/backend/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running and DATABASE_URL is correct", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations (the job queue tables back the durable timers).
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unreachable, notifications will be dropped", "error", err)
	}

	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo)
	registryRepo := registry.NewRepository(pool)
	ticketSvc := escalation.NewService(escalation.NewRepository(pool))
	notifier := notify.NewPublisher(rdb, cfg.NotifyChannel, logger)
	kycClient := kyc.NewClient(cfg.KYCBaseURL)

	// Timer insert funcs are set after the River client is created (breaks
	// the engine -> coordinator -> workers -> engine init cycle).
	var insertMu sync.Mutex
	var insertTxFn timers.InsertExpiryTxFunc
	var insertFn timers.InsertExpiryFunc
	insertExpiryTx := func(ctx context.Context, tx pgx.Tx, args timers.ProcessingExpiryArgs, at time.Time) error {
		insertMu.Lock()
		fn := insertTxFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args, at)
	}
	insertExpiry := func(ctx context.Context, args timers.ProcessingExpiryArgs, at time.Time) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, args, at)
	}

	coordinator := timers.NewCoordinator(insertExpiryTx, insertExpiry, registryRepo, logger)

	eng := engine.New(engine.Config{
		MinWindowMinutes:  cfg.ProcessingWindowMin,
		MaxWindowMinutes:  cfg.ProcessingWindowMax,
		RetryCeiling:      cfg.RetryCeiling,
		KYCThresholdPaise: cfg.KYCThresholdPaise,
	}, registry.NewPoolRunner(pool), registryRepo, ledgerSvc,
		coordinator, ticketSvc, notifier, kycClient, registryRepo, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, timers.NewProcessingExpiryWorker(eng, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.TimerWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertTxFn = func(ctx context.Context, tx pgx.Tx, args timers.ProcessingExpiryArgs, at time.Time) error {
		_, err := riverClient.InsertTx(ctx, tx, args, &river.InsertOpts{ScheduledAt: at})
		return err
	}
	insertFn = func(ctx context.Context, args timers.ProcessingExpiryArgs, at time.Time) error {
		_, err := riverClient.Insert(ctx, args, &river.InsertOpts{ScheduledAt: at})
		return err
	}
	insertMu.Unlock()

	// Re-arm persisted deadlines before accepting requests: overdue windows
	// expire synchronously here.
	if err := coordinator.Rescan(ctx, eng); err != nil {
		slog.Error("Timer rescan failed", "error", err)
		os.Exit(1)
	}

	walletHandler := wallet.NewHandler(eng, ledgerSvc, ticketSvc, logger)
	adminHandler := admin.NewHandler(eng, ledgerSvc, ticketSvc, logger)
	apiRouter := router.New(walletHandler, adminHandler, []byte(cfg.JWTSecret))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	var handler slog.Handler
	if cfg.AppEnv == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "wallet-engine")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
