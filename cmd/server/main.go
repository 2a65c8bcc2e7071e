package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/banking-server/internal/access"
	"github.com/rongwang/banking-server/internal/api"
	"github.com/rongwang/banking-server/internal/config"
	"github.com/rongwang/banking-server/internal/events"
	"github.com/rongwang/banking-server/internal/events/kafka"
	"github.com/rongwang/banking-server/internal/locale"
	"github.com/rongwang/banking-server/internal/repository"
	"github.com/rongwang/banking-server/internal/service"
	"github.com/rongwang/banking-server/internal/session"
	"github.com/rongwang/banking-server/internal/telemetry"
	"github.com/rongwang/banking-server/internal/utils"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// Set up database connection
	db, err := config.SetupDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up database", zap.Error(err))
	}
	defer db.Close()

	// Create repository
	repo := repository.NewSQLRepository(db)

	policy, err := access.NewPolicy(cfg.Bank.Policy)
	if err != nil {
		logger.Fatal("Invalid bank policy", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("Publishing transactions", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	locales := locale.New()

	// Create service
	svc := service.NewDefaultService(repo, session.NewRegistry(), locales, publisher, logger, service.Config{
		Policy:              policy,
		AccessPageSize:      cfg.Bank.AccessPageSize,
		TransactionPageSize: cfg.Bank.TransactionPageSize,
		DashboardLimit:      cfg.Bank.DashboardLimit,
		JWTSecret:           cfg.Auth.JWTSecret,
		HostKeyHash:         cfg.Auth.HostKeyHash,
		TokenDuration:       time.Duration(cfg.Auth.TokenHours) * time.Hour,
	})
	if cfg.Auth.HostKeyHash == "" {
		logger.Warn("HOST_KEY_HASH is not set, token requests will be refused")
	}

	// Create API handler
	handler := api.NewHandler(svc, locales, logger)

	// Set up Gin router
	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		api.RequestIDMiddleware(),
		api.LoggerMiddleware(logger),
		api.JWTSecretMiddleware(cfg.Auth.JWTSecret),
	)

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down server", zap.Error(err))
	}
}
