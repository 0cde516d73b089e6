// Package main runs the HPC directory HTTP server with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpcadmin/server/config"
	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/events"
	"github.com/hpcadmin/server/internal/postgres"
	"github.com/hpcadmin/server/internal/server"
	"github.com/hpcadmin/server/pkg/database"
	"github.com/hpcadmin/server/pkg/logger"
	"github.com/hpcadmin/server/pkg/queue"
	"github.com/hpcadmin/server/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("store", zap.Error(err))
	}
	defer closeStore()

	opts := []directory.Option{directory.WithSponsorValidation(cfg.Directory.ValidateSponsor)}
	if cfg.Redis.EventsEnabled {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		jobQueue := queue.NewQueue(rdb.Client, log)
		opts = append(opts, directory.WithNotifier(events.NewQueueNotifier(jobQueue, log)))
		log.Info("directory events enabled", zap.String("queue", jobQueue.Key()))
	}
	svc := directory.NewService(store, log, opts...)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.NewRouter(svc, log, cfg.Server.CORSAllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Directory.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

// openStore returns the configured entity store and its cleanup.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (directory.Store, func(), error) {
	if cfg.Directory.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store; data is lost on exit")
		return directory.NewMemStore(), func() {}, nil
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, log)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return postgres.NewStore(pool), pool.Close, nil
}
