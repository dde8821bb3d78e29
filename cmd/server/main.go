// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/civicdesk/correspondence-backend/internal/audit"
	"github.com/civicdesk/correspondence-backend/internal/config"
	"github.com/civicdesk/correspondence-backend/internal/controller"
	"github.com/civicdesk/correspondence-backend/internal/db"
	"github.com/civicdesk/correspondence-backend/internal/metrics"
	"github.com/civicdesk/correspondence-backend/internal/queue"
	"github.com/civicdesk/correspondence-backend/internal/repository"
	"github.com/civicdesk/correspondence-backend/internal/service"
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

	// Repositories
	messageRepo := &repository.MessageRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	constituentRepo := &repository.ConstituentRepository{DB: conn}
	bulkResponseRepo := &repository.BulkResponseRepository{DB: conn}
	outboxRepo := &repository.OutboxRepository{DB: conn}
	lockRepo := &repository.LockRepository{DB: conn}
	legacyRepo := &repository.LegacyEmailRepository{DB: conn}

	// Services
	resolver := &service.ResolverService{Constituents: constituentRepo}
	matcher := &service.CampaignMatcher{Messages: messageRepo, Campaigns: campaignRepo}
	ingestService := &service.IngestService{
		Messages: messageRepo,
		Matcher:  matcher,
		Resolver: resolver,
		Logger:   logger,
	}
	triageService := &service.TriageService{
		Messages: messageRepo,
		Legacy:   legacyRepo,
		Matcher:  matcher,
		Audit:    &audit.PostgresRecorder{DB: conn},
		Logger:   logger,
	}
	dispatchService := &service.DispatchService{
		DB:          conn,
		Queue:       q,
		Logger:      logger,
		OfficeName:  cfg.OfficeName,
		MaxAttempts: cfg.OutboxMaxAttempts,
	}

	// Controllers
	messageController := &controller.MessageController{IngestService: ingestService}
	triageController := &controller.TriageController{TriageService: triageService, MessageRepo: messageRepo}
	campaignController := &controller.CampaignController{CampaignRepo: campaignRepo, OutboxRepo: outboxRepo}
	dispatchController := &controller.DispatchController{
		DispatchService:  dispatchService,
		BulkResponseRepo: bulkResponseRepo,
		LockRepo:         lockRepo,
	}

	r := chi.NewRouter()

	r.Post("/messages", messageController.Ingest)

	r.Get("/triage/queue", triageController.ListQueue)
	r.Post("/triage/mark", triageController.MarkAsTriaged)
	r.Post("/triage/confirm", triageController.ConfirmTriage)
	r.Post("/triage/dismiss", triageController.DismissTriage)
	r.Post("/triage/legacy/confirm", triageController.ConfirmLegacyTriage)
	r.Post("/triage/legacy/dismiss", triageController.DismissLegacyTriage)

	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/close", campaignController.CloseCampaign)

	r.Post("/bulk-responses", dispatchController.CreateBulkResponse)
	r.Post("/bulk-responses/{id}/dispatch", dispatchController.PlanDispatch)
	r.Get("/bulk-responses/{id}/logs", dispatchController.ListLogs)
	r.Get("/dispatch/lock", dispatchController.LockStatus)

	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + cfg.APIPort, Handler: r}

	go func() {
		logger.Info("server started", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
