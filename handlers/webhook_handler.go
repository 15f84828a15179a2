package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"unichat-relay/internal/domain"
	"unichat-relay/internal/platform"
	"unichat-relay/pkg/logger"
)

type batchIngester interface {
	IngestBatch(ctx context.Context, adapter platform.Adapter, body []byte) error
}

// WebhookHandler exposes the two webhook states per platform: the
// verification handshake and event delivery.
type WebhookHandler struct {
	ingest batchIngester
}

func NewWebhookHandler(ingest batchIngester) *WebhookHandler {
	return &WebhookHandler{ingest: ingest}
}

// Verify answers the platform's subscription handshake: echo the challenge
// when the mode and token match, 403 otherwise. Nothing transitions here;
// it is purely a gate check.
func (h *WebhookHandler) Verify(adapter platform.Adapter) echo.HandlerFunc {
	return func(c echo.Context) error {
		mode := c.QueryParam("hub.mode")
		token := c.QueryParam("hub.verify_token")
		challenge := c.QueryParam("hub.challenge")

		if mode == "subscribe" && token != "" && token == adapter.VerifyToken() {
			logger.Infof("%s webhook verified", adapter.Platform())
			return c.String(http.StatusOK, challenge)
		}

		return c.NoContent(http.StatusForbidden)
	}
}

// Receive accepts an event-delivery batch. Foreign or malformed top-level
// shapes get a 404; anything recognized is acknowledged with 200 no matter
// how many individual entries failed, since the platform would otherwise
// redeliver the whole batch.
func (h *WebhookHandler) Receive(adapter platform.Adapter) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.NoContent(http.StatusNotFound)
		}

		if err := h.ingest.IngestBatch(c.Request().Context(), adapter, body); err != nil {
			if errors.Is(err, domain.ErrForeignPayload) {
				return c.NoContent(http.StatusNotFound)
			}
			logger.Errorf("Failed to ingest %s batch: %v", adapter.Platform(), err)
			return c.NoContent(http.StatusNotFound)
		}

		return c.NoContent(http.StatusOK)
	}
}
