package routes

import (
	"github.com/labstack/echo/v4"

	"unichat-relay/environments"
	"unichat-relay/handlers"
	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
	"unichat-relay/internal/middlewares"
	"unichat-relay/internal/platform"
)

// RegisterRoutes registers all API routes with middleware. Webhook endpoints
// are unauthenticated (the platform authenticates via the verify token);
// client-facing and admin groups carry their own API keys.
func RegisterRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	webhookHandler *handlers.WebhookHandler,
	messageHandler *handlers.MessageHandler,
	adminHandler *handlers.AdminHandler,
	adapters []platform.Adapter,
	cfg *environments.Config,
) {
	e.GET("/health", healthHandler.Health)

	for _, adapter := range adapters {
		prefix := "/" + string(adapter.Platform())

		e.GET(prefix+"/webhook", webhookHandler.Verify(adapter))
		e.POST(prefix+"/webhook", webhookHandler.Receive(adapter))

		client := e.Group(prefix, middlewares.APIKeyAuth(cfg.Auth.ClientAPIKey))
		client.POST("/send", messageHandler.SendText(adapter))
		client.POST("/send-media", messageHandler.SendMedia(adapter))
		client.GET("/sent", messageHandler.List(adapter.Platform(), domain.DirectionSent))
		client.GET("/received", messageHandler.List(adapter.Platform(), domain.DirectionReceived))
	}

	// Persisted attachments are served straight off the media root; the
	// paths here are exactly what attachment.localUrl stores.
	e.Static(media.URLPrefix, cfg.Media.Root)

	admin := e.Group("/api/v1/admin", middlewares.APIKeyAuth(cfg.Auth.AdminAPIKey))
	admin.GET("/stats", adminHandler.GetStats)
	admin.GET("/sweeper/status", adminHandler.GetSweeperStatus)
	admin.POST("/sweeper/start", adminHandler.StartSweeper)
	admin.POST("/sweeper/stop", adminHandler.StopSweeper)
}
