package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"workforce/internal/attendance"
	"workforce/internal/config"
	"workforce/internal/logging"
	"workforce/internal/queue"
	"workforce/internal/store"
)

// Worker consumes attendance lifecycle events and appends them to the audit trail.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With("component", "worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if cfg.QueueBackend == "memory" {
		log.Fatal("worker requires QUEUE_BACKEND=redis; the in-memory queue is process local")
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)

	repo := attendance.NewRepository(db.Gorm)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	logger.Info("worker started, waiting for messages")
	stored := attendance.RecordEvents(ctx, repo, messages, logger)
	logger.Info("worker stopped", "stored", stored)
}
