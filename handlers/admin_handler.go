package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"unichat-relay/internal/domain"
	"unichat-relay/internal/repository"
	"unichat-relay/internal/sweeper"
	"unichat-relay/pkg/response"
)

type statsProvider interface {
	GetStats(ctx context.Context, platform domain.Platform) (*repository.StatusCounts, error)
}

// AdminHandler serves the operator-facing stats and sweeper controls.
type AdminHandler struct {
	stats   statsProvider
	sweeper *sweeper.Sweeper
	ctx     context.Context
}

func NewAdminHandler(stats statsProvider, sw *sweeper.Sweeper, ctx context.Context) *AdminHandler {
	return &AdminHandler{
		stats:   stats,
		sweeper: sw,
		ctx:     ctx,
	}
}

// GetStats returns per-status message counts for both platforms.
func (h *AdminHandler) GetStats(c echo.Context) error {
	result := map[string]any{}

	for _, platform := range []domain.Platform{domain.PlatformWhatsApp, domain.PlatformMessenger} {
		counts, err := h.stats.GetStats(c.Request().Context(), platform)
		if err != nil {
			return response.InternalServerError(c, err)
		}
		result[string(platform)] = counts
	}

	return response.Ok(c, result)
}

func (h *AdminHandler) StartSweeper(c echo.Context) error {
	if h.sweeper.IsRunning() {
		return response.Ok(c, h.sweeper.GetStatus())
	}

	if err := h.sweeper.Start(h.ctx); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, h.sweeper.GetStatus())
}

func (h *AdminHandler) StopSweeper(c echo.Context) error {
	if !h.sweeper.IsRunning() {
		return response.Ok(c, h.sweeper.GetStatus())
	}

	if err := h.sweeper.Stop(); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, h.sweeper.GetStatus())
}

func (h *AdminHandler) GetSweeperStatus(c echo.Context) error {
	return response.Ok(c, h.sweeper.GetStatus())
}
