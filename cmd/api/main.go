package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"stencil/internal/analytics"
	"stencil/internal/catalog"
	"stencil/internal/config"
	"stencil/internal/engine"
	"stencil/internal/httpapi"
	"stencil/internal/httpapi/handlers"
	"stencil/internal/importer"
	"stencil/internal/pkg/logger"
	"stencil/internal/pkg/shutdown"
	"stencil/internal/queue"
	"stencil/internal/repositories"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("failed to load configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "stencil-api",
		AddSource:   cfg.Log.Source,
	})

	log.Info("starting stencil API",
		"version", version,
		"catalog", cfg.Catalog.BaseURL,
	)

	if err := cfg.Validate(); err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ctx := context.Background()

	shutdownMgr := shutdown.NewManager(log, cfg.Shutdown.Timeout)

	// Connect to PostgreSQL
	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)

	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	if err := repositories.EnsureSchema(ctx, pool); err != nil {
		log.LogFatal("failed to apply schema", err)
	}
	log.Info("PostgreSQL connected")

	// Connect to Redis
	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL,
		config.StaticVersion(cfg.Catalog.ReleasedVersion),
		catalog.WithTimeout(cfg.Catalog.HTTPTimeout),
	)
	sink := analytics.NewQueueSink(queue.NewRedisQueue(rdb, cfg.Analytics.QueueName, 0))
	imp := importer.New(catalogClient, engine.NewPostgres(repositories.NewApplicationRepository(pool)), sink)

	router := httpapi.NewRouter(httpapi.Deps{
		Catalog:  catalogClient,
		Importer: imp,
		Checks: map[string]handlers.Check{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
		Version:        version,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Log:            log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	err = shutdownMgr.Run(ctx, shutdown.Service{
		Name: "http-server",
		Run: func(context.Context) error {
			log.Info("HTTP server listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
	if err != nil {
		log.Error("stencil API stopped with error", "error", err.Error())
		os.Exit(1)
	}
}
