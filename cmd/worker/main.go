// cmd/worker/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civicdesk/correspondence-backend/internal/config"
	"github.com/civicdesk/correspondence-backend/internal/db"
	"github.com/civicdesk/correspondence-backend/internal/metrics"
	"github.com/civicdesk/correspondence-backend/internal/queue"
	"github.com/civicdesk/correspondence-backend/internal/repository"
	"github.com/civicdesk/correspondence-backend/internal/transport"
	"github.com/civicdesk/correspondence-backend/internal/worker"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer conn.Close()

	q, err := queue.Dial(cfg.AMQPURL, cfg.OutboxQueue)
	if err != nil {
		logger.Fatal("rabbitmq connection failed", zap.Error(err))
	}
	defer q.Close()

	metrics.Init()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint started", zap.String("port", cfg.MetricsPort))
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			logger.Error("metrics endpoint error", zap.Error(err))
		}
	}()

	sender := transport.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	limiter := rate.NewLimiter(rate.Limit(cfg.SendRatePerSecond), cfg.SendRatePerSecond)

	dispatcher := worker.NewDispatcher(
		&repository.OutboxRepository{DB: conn},
		&repository.LockRepository{DB: conn},
		&repository.BulkResponseRepository{DB: conn},
		sender,
		limiter,
		logger,
	)
	dispatcher.BatchSize = cfg.WorkerBatchSize
	dispatcher.PollInterval = time.Duration(cfg.WorkerPollSeconds) * time.Second
	dispatcher.LockTTL = time.Duration(cfg.LockTTLSeconds) * time.Second
	dispatcher.ClaimStale = time.Duration(cfg.ClaimStaleSeconds) * time.Second
	dispatcher.RetryBackoffBase = time.Duration(cfg.RetryBackoffSeconds) * time.Second
	dispatcher.SendRetries = cfg.SendRetryAttempts

	ctx, cancel := context.WithCancel(context.Background())

	// Queue deliveries are acked on receipt and collapsed into wake-up
	// kicks; a burst of publishes triggers at most one extra drain.
	kicks := make(chan struct{}, 1)
	deliveries, err := q.Consume()
	if err != nil {
		logger.Fatal("consume failed", zap.Error(err))
	}
	go func() {
		for d := range deliveries {
			if err := d.Ack(false); err != nil {
				logger.Warn("ack failed", zap.Error(err))
			}
			select {
			case kicks <- struct{}{}:
			default:
			}
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	dispatcher.Run(ctx, kicks)
}
