// Package main is the entry point for the inventory ledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/core/tx"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/engine"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/lock"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/pgstore"
	"stockledger/pkg/compress"
	"stockledger/pkg/config"
	"stockledger/pkg/logger"
)

// devJWTSecret signs tokens only when APP_ENV=development and no secret is set.
const devJWTSecret = "stockledger-dev-secret"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting stockledger server", "env", cfg.App.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.URL)
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	postgres.LogPoolStats(ctx, pool)

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.Tx.StatementTimeout
	txManager := postgres.NewTxManager(pool, txOpts)

	codec, err := compress.NewCodec(compress.DefaultThreshold)
	if err != nil {
		log.Fatalw("failed to create payload codec", "error", err)
	}
	defer codec.Close()

	healthChecks := map[string]handlers.HealthCheck{
		"database": pool.Ping,
	}

	// --- Period close lock ---
	// Redis when configured, otherwise a transaction-scoped advisory lock.
	var locker tx.Locker
	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalw("invalid REDIS_URL", "error", err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		locker = lock.NewRedisLocker(rdb, "stockledger", lock.DefaultTTL)
		healthChecks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
		log.Infow("period close lock backed by redis", "addr", opts.Addr)
	}

	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.MaxAttempts = cfg.Tx.MaxRetries
	ledgerCfg.VerifyConservation = cfg.Inventory.VerifyConservation

	eng := engine.New(pgstore.Backend(txManager, pgstore.Options{
		Locker: locker,
		Codec:  codec,
	}), ledgerCfg)

	// --- Auth ---
	secret := cfg.JWT.Secret
	if secret == "" {
		log.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(secret, cfg.JWT.Issuer))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Engine:          eng,
		Logger:          log,
		JWTValidator:    jwtService,
		Auditor:         postgres.NewAuditLog(txManager, codec),
		HealthChecks:    healthChecks,
		CORSOrigins:     cfg.App.CORSOrigins,
		AllowAllOrigins: cfg.App.IsDevelopment() && len(cfg.App.CORSOrigins) == 0,
		Development:     cfg.App.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.App.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
