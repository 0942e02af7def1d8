package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"stencil/internal/config"
	"stencil/internal/pkg/logger"
	"stencil/internal/pkg/shutdown"
	"stencil/internal/queue"
	"stencil/internal/repositories"
	"stencil/internal/worker"
)

// popWait bounds each BRPOP so the worker notices shutdown promptly.
const popWait = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("failed to load configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "stencil-worker",
		AddSource:   cfg.Log.Source,
	})

	if err := cfg.Validate(); err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, cfg.Shutdown.Timeout)

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)

	if err := repositories.EnsureSchema(ctx, pool); err != nil {
		log.LogFatal("failed to apply schema", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	deps := worker.Deps{
		Queue:  queue.NewRedisQueue(rdb, cfg.Analytics.QueueName, popWait),
		Events: repositories.NewEventRepository(pool),
		Log:    log,
	}

	log.Info("stencil worker started", "queue", cfg.Analytics.QueueName)
	err = shutdownMgr.Run(ctx, shutdown.Service{
		Name: "analytics-worker",
		Run: func(ctx context.Context) error {
			return worker.Run(ctx, deps)
		},
	})
	if err != nil {
		log.Error("stencil worker stopped with error", "error", err.Error())
		os.Exit(1)
	}
}
