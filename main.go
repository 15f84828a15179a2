package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"unichat-relay/environments"
	"unichat-relay/handlers"
	"unichat-relay/internal/media"
	"unichat-relay/internal/platform"
	"unichat-relay/internal/repository"
	"unichat-relay/internal/service"
	"unichat-relay/internal/sweeper"
	"unichat-relay/pkg/cache"
	"unichat-relay/pkg/database"
	"unichat-relay/pkg/logger"
	"unichat-relay/pkg/validator"
	"unichat-relay/routes"
)

func main() {
	logger.Init()

	// Load config
	cfg := environments.Load()

	// Hard-fail if required secrets are missing
	if cfg.WhatsApp.VerifyToken == "" {
		logger.Fatalf("WHATSAPP_VERIFY_TOKEN is required but not set")
	}
	if cfg.WhatsApp.AccessToken == "" {
		logger.Fatalf("WHATSAPP_ACCESS_TOKEN is required but not set")
	}
	if cfg.Messenger.VerifyToken == "" {
		logger.Fatalf("MESSENGER_VERIFY_TOKEN is required but not set")
	}
	if cfg.Messenger.PageAccessToken == "" {
		logger.Fatalf("PAGE_ACCESS_TOKEN is required but not set")
	}

	logger.Infof("Starting unichat relay...")

	// Init DB
	db, err := database.NewMySQLDB(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed data
	if os.Getenv("SEED_DATA") == "true" {
		if err := database.SeedTestData(db); err != nil {
			logger.Warnf("Failed to seed test data: %v", err)
		}
	}

	// Init media store
	mediaStore, err := media.NewStore(cfg.Media.Root, cfg.WhatsApp.Timeout)
	if err != nil {
		logger.Fatalf("Failed to init media store: %v", err)
	}

	// Init cache (optional)
	var cacheClient *cache.Client
	cacheClient, err = cache.NewClient(cfg.Cache)
	if err != nil {
		logger.Warnf("Cache not available, webhook dedup fast path disabled: %v", err)
		cacheClient = nil
	}

	// Platform adapters
	whatsapp := platform.NewWhatsAppAdapter(cfg.WhatsApp)
	messenger := platform.NewMessengerAdapter(cfg.Messenger)
	adapters := []platform.Adapter{whatsapp, messenger}

	// Repository and services
	messageRepo := repository.NewMessageRepository(db)

	var ingestService *service.IngestService
	if cacheClient != nil {
		ingestService = service.NewIngestService(messageRepo, mediaStore, cacheClient)
	} else {
		ingestService = service.NewIngestService(messageRepo, mediaStore, nil)
	}
	sendService := service.NewSendService(messageRepo)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init sweeper
	sweep := sweeper.New(messageRepo, mediaStore, cfg.Sweeper.Interval, cfg.Sweeper.MinAge)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, cacheClient)
	webhookHandler := handlers.NewWebhookHandler(ingestService)
	messageHandler := handlers.NewMessageHandler(sendService, mediaStore)
	adminHandler := handlers.NewAdminHandler(messageRepo, sweep, ctx)

	// Auto-start sweeper
	if os.Getenv("AUTO_START_SWEEPER") != "false" {
		logger.Infof("Auto-starting media sweeper...")
		if err := sweep.Start(ctx); err != nil {
			logger.Warnf("Failed to auto-start sweeper: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"x-relay-auth-key",
		},
	}))

	// Setup routes
	routes.RegisterRoutes(e, healthHandler, webhookHandler, messageHandler, adminHandler, adapters, cfg)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	// Cancel context to signal all goroutines to stop
	cancel()

	// Stop sweeper first (with timeout)
	if sweep.IsRunning() {
		logger.Infof("Stopping sweeper...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()

		done := make(chan error, 1)
		go func() {
			done <- sweep.Stop()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Errorf("Error stopping sweeper: %v", err)
			} else {
				logger.Infof("Sweeper stopped successfully")
			}
		case <-stopCtx.Done():
			logger.Warnf("Sweeper stop timeout, forcing shutdown")
		}
	}

	// Shutdown HTTP server (with timeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Infof("HTTP server stopped successfully")
	}

	// Close database connection
	logger.Infof("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Errorf("Error closing database: %v", err)
	}

	// Close cache connection
	if cacheClient != nil {
		logger.Infof("Closing cache connection...")
		if err := cacheClient.Close(); err != nil {
			logger.Errorf("Error closing cache: %v", err)
		}
	}

	logger.Infof("Graceful shutdown completed")
}
