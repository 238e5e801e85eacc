// Package main runs the booking and payment reconciliation HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-travel/backend/config"
	"github.com/atlas-travel/backend/internal/auth"
	"github.com/atlas-travel/backend/internal/bookings"
	"github.com/atlas-travel/backend/internal/inventory"
	"github.com/atlas-travel/backend/internal/middleware"
	"github.com/atlas-travel/backend/internal/payments"
	"github.com/atlas-travel/backend/internal/worker"
	"github.com/atlas-travel/backend/pkg/database"
	"github.com/atlas-travel/backend/pkg/gateway"
	"github.com/atlas-travel/backend/pkg/queue"
	"github.com/atlas-travel/backend/pkg/redis"
	"github.com/atlas-travel/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Inventory and bookings
	inventoryRepo := inventory.NewRepository(pool)
	checker := inventory.NewChecker(inventoryRepo)
	bookingRepo := bookings.NewRepository(pool)
	bookingSvc := bookings.NewService(bookingRepo, checker, logger)
	bookingHandler := bookings.NewHandler(bookingSvc, logger)

	// Payments
	paymentRepo := payments.NewRepository(pool)
	paymentSvc := payments.NewService(paymentRepo, bookingRepo, gw,
		cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret, logger)
	paymentHandler := payments.NewHandler(paymentSvc, logger)
	webhookHandler := payments.NewWebhookHandler(paymentSvc, jobQueue, logger)

	processor := worker.NewProcessor(paymentSvc, s3Client, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Bookings
	router.POST("/bookings/hotel", bookingHandler.CreateHotel)
	router.POST("/bookings/flight", bookingHandler.CreateFlight)
	router.GET("/bookings/:type/:id", bookingHandler.Get)

	// Payments
	router.POST("/payments/order", paymentHandler.CreateOrder)
	router.POST("/payments/verify", paymentHandler.Verify)
	router.GET("/payments/status", paymentHandler.Status)

	// Webhooks (no JWT; signature validated in the service)
	router.POST("/webhooks/razorpay", webhookHandler.Handle)

	// Operator endpoints (JWT issued by the platform auth service)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	api.POST("/payments/refund", middleware.RequireRole("admin", "operator"), paymentHandler.Refund)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background job processor (webhook archive, order reconciliation)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go processor.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
