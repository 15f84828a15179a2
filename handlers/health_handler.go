package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"unichat-relay/pkg/cache"
)

// HealthHandler handles health checks.
type HealthHandler struct {
	db           *sqlx.DB
	cache        *cache.Client
	checkTimeout time.Duration
}

func NewHealthHandler(db *sqlx.DB, cacheClient *cache.Client) *HealthHandler {
	return &HealthHandler{
		db:           db,
		cache:        cacheClient,
		checkTimeout: 2 * time.Second,
	}
}

// Health returns overall status and component statuses for the database and
// the optional dedup cache.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.checkTimeout)
	defer cancel()

	overallStatus := "ok"

	dbStatus := "up"
	if h.db == nil {
		dbStatus = "down"
		overallStatus = "down"
	} else if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "down"
		overallStatus = "down"
	}

	cacheStatus := "disabled"
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			cacheStatus = "down"
			if overallStatus == "ok" {
				overallStatus = "degraded"
			}
		} else {
			cacheStatus = "up"
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"components": map[string]any{
			"database": map[string]any{
				"status": dbStatus,
			},
			"cache": map[string]any{
				"status": cacheStatus,
			},
		},
	})
}
