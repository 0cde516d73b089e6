// Package main runs the directory sync worker: directory events in, S3
// snapshots out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpcadmin/server/config"
	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/postgres"
	"github.com/hpcadmin/server/internal/worker"
	"github.com/hpcadmin/server/pkg/database"
	"github.com/hpcadmin/server/pkg/logger"
	"github.com/hpcadmin/server/pkg/queue"
	"github.com/hpcadmin/server/pkg/redis"
	"github.com/hpcadmin/server/pkg/storage"
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

	// A memory store would only ever export an empty directory.
	if cfg.Directory.StoreDriver != config.StoreDriverPostgres {
		log.Fatal("worker requires STORE_DRIVER=postgres", zap.String("store", cfg.Directory.StoreDriver))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		ExportBucket:    cfg.AWS.ExportBucket,
		ExportPrefix:    cfg.AWS.ExportPrefix,
	}, log)
	if err != nil {
		log.Fatal("s3", zap.Error(err))
	}

	svc := directory.NewService(postgres.NewStore(pool), log)
	jobQueue := queue.NewQueue(rdb.Client, log)
	processor := worker.NewSyncProcessor(svc, s3Client, jobQueue, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if spec := cfg.Worker.ExportSchedule; spec != "" {
		scheduler, err := worker.NewScheduler(workerCtx, spec, processor, log)
		if err != nil {
			log.Fatal("scheduler", zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	log.Info("worker started", zap.String("queue", jobQueue.Key()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("worker did not stop in time")
	}
	log.Info("worker stopped")
}
