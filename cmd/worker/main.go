// Package main is the entry point for the outbox relay worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/infrastructure/messaging"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/config"
	"stockledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DB.URL == "" {
		fmt.Println("DATABASE_URL is required")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting stockledger outbox worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.URL)
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, postgres.DefaultTxOptions())

	var handler postgres.OutboxHandler = messaging.LogHandler{}
	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalw("invalid REDIS_URL", "error", err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalw("failed to ping redis", "error", err)
		}
		handler = messaging.NewRedisHandler(rdb, cfg.Outbox.Channel)
		log.Infow("publishing outbox to redis", "addr", opts.Addr, "channel", cfg.Outbox.Channel)
	} else {
		log.Warn("REDIS_URL not set, outbox messages are only logged")
	}

	relayCfg := postgres.DefaultRelayConfig()
	if cfg.Outbox.BatchSize > 0 {
		relayCfg.BatchSize = cfg.Outbox.BatchSize
	}
	relay := postgres.NewOutboxRelay(txManager, handler, relayCfg)

	interval := cfg.Outbox.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	run(ctx, log.WithComponent("outbox"), relay, relayCfg.BatchSize, interval)
	log.Info("worker stopped")
}

// run polls the outbox until ctx is cancelled. A full batch is followed
// immediately by the next one; exhausted messages move to the DLQ hourly.
func run(ctx context.Context, log *logger.Logger, relay *postgres.OutboxRelay, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dlqTicker := time.NewTicker(time.Hour)
	defer dlqTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for ctx.Err() == nil {
				n, err := relay.ProcessBatch(ctx)
				if err != nil {
					log.Errorw("outbox batch failed", "error", err)
					break
				}
				if n > 0 {
					log.Debugw("outbox batch delivered", "count", n)
				}
				if n < batchSize {
					break
				}
			}

		case <-dlqTicker.C:
			moved, err := relay.MoveToDLQ(ctx)
			if err != nil {
				log.Errorw("move to dead letter queue failed", "error", err)
				continue
			}
			if moved > 0 {
				log.Warnw("outbox messages moved to dead letter queue", "count", moved)
			}
		}
	}
}
