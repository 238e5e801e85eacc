// Package main runs the standalone payment worker: the stale-pending sweep
// plus the job processor (webhook archive, order reconciliation).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-travel/backend/config"
	"github.com/atlas-travel/backend/internal/bookings"
	"github.com/atlas-travel/backend/internal/payments"
	"github.com/atlas-travel/backend/internal/worker"
	"github.com/atlas-travel/backend/pkg/database"
	"github.com/atlas-travel/backend/pkg/gateway"
	"github.com/atlas-travel/backend/pkg/queue"
	"github.com/atlas-travel/backend/pkg/redis"
	"github.com/atlas-travel/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			AuditBucket:     cfg.AWS.AuditBucket,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("audit archive disabled", zap.Error(err))
		}
	}

	gw := gateway.NewRazorpay(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.TimeoutSec, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	bookingRepo := bookings.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)
	paymentSvc := payments.NewService(paymentRepo, bookingRepo, gw,
		cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret, logger)

	processor := worker.NewProcessor(paymentSvc, s3Client, jobQueue, logger)
	sweeper := worker.NewSweeper(paymentRepo, jobQueue,
		time.Duration(cfg.Worker.SweepIntervalSec)*time.Second,
		time.Duration(cfg.Worker.StalePendingMin)*time.Minute,
		logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go sweeper.Run(workerCtx)
	logger.Info("payment worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("payment worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
