package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
	"unichat-relay/internal/platform"
	"unichat-relay/pkg/response"
	"unichat-relay/pkg/validator"
)

type sendOrchestrator interface {
	SendText(ctx context.Context, adapter platform.Adapter, peer, body string) (*domain.Message, error)
	SendMedia(ctx context.Context, adapter platform.Adapter, peer string, kind domain.MessageKind, staged *media.StagedFile, originalFilename, caption string) (*domain.Message, error)
	ListMessages(ctx context.Context, p domain.Platform, d domain.Direction, since int64) ([]domain.Message, error)
}

type mediaStager interface {
	Stage(p domain.Platform, src io.Reader, ext string) (*media.StagedFile, error)
}

// MessageHandler serves the client-facing send and list endpoints.
type MessageHandler struct {
	sender sendOrchestrator
	stager mediaStager
}

func NewMessageHandler(sender sendOrchestrator, stager mediaStager) *MessageHandler {
	return &MessageHandler{sender: sender, stager: stager}
}

type SendTextRequest struct {
	Text string `json:"text" validate:"required"`
	To   string `json:"to,omitempty"`
}

// SendText posts a text message through the platform adapter and returns
// the persisted row.
func (h *MessageHandler) SendText(adapter platform.Adapter) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req SendTextRequest
		if err := c.Bind(&req); err != nil {
			return response.BadRequest(c, err)
		}

		if err := c.Validate(&req); err != nil {
			return validator.HandleValidationError(c, err)
		}

		msg, err := h.sender.SendText(c.Request().Context(), adapter, req.To, req.Text)
		if err != nil {
			return response.InternalServerError(c, err)
		}

		return response.Sent(c, msg)
	}
}

// SendMedia stages the multipart upload on disk, then runs the two-phase
// platform send. The staged file is what attachment.localUrl points at; a
// failed send leaves it unreferenced for the sweeper.
func (h *MessageHandler) SendMedia(adapter platform.Adapter) echo.HandlerFunc {
	return func(c echo.Context) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return response.BadRequest(c, err)
		}

		kind := platform.NormalizeKind(c.FormValue("type"))
		caption := c.FormValue("caption")
		peer := c.FormValue("to")

		src, err := fileHeader.Open()
		if err != nil {
			return response.BadRequest(c, err)
		}
		defer src.Close()

		ext := filepath.Ext(fileHeader.Filename)
		if ext == "" {
			ext = defaultExt(kind)
		}

		staged, err := h.stager.Stage(adapter.Platform(), src, ext)
		if err != nil {
			return response.InternalServerError(c, err)
		}

		msg, err := h.sender.SendMedia(
			c.Request().Context(),
			adapter,
			peer,
			kind,
			staged,
			fileHeader.Filename,
			caption,
		)
		if err != nil {
			return response.InternalServerError(c, err)
		}

		return response.MediaSent(c, msg)
	}
}

// List returns one direction of a platform's timeline as a plain JSON
// array ordered by timestamp ascending. Clients poll this on an interval
// and merge sent and received themselves.
func (h *MessageHandler) List(p domain.Platform, d domain.Direction) echo.HandlerFunc {
	return func(c echo.Context) error {
		var since int64
		if raw := c.QueryParam("since"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed < 0 {
				return response.BadRequest(c, fmt.Errorf("since must be a non-negative integer"))
			}
			since = parsed
		}

		messages, err := h.sender.ListMessages(c.Request().Context(), p, d, since)
		if err != nil {
			return response.InternalServerError(c, err)
		}

		// Pollers must always see fresh rows.
		c.Response().Header().Set("Cache-Control", "no-store")

		if messages == nil {
			messages = []domain.Message{}
		}

		return c.JSON(http.StatusOK, messages)
	}
}

func defaultExt(kind domain.MessageKind) string {
	switch kind {
	case domain.KindImage:
		return ".jpg"
	case domain.KindAudio:
		return ".mp3"
	case domain.KindVideo:
		return ".mp4"
	}
	return ".bin"
}
