package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
	"unichat-relay/internal/platform"
	"unichat-relay/pkg/validator"
)

type stubSender struct {
	textMsg  *domain.Message
	textErr  error
	textPeer string
	textBody string

	mediaMsg  *domain.Message
	mediaErr  error
	mediaKind domain.MessageKind
	mediaName string

	listResult []domain.Message
	listErr    error
	listSince  int64
}

func (s *stubSender) SendText(ctx context.Context, adapter platform.Adapter, peer, body string) (*domain.Message, error) {
	s.textPeer = peer
	s.textBody = body
	return s.textMsg, s.textErr
}

func (s *stubSender) SendMedia(
	ctx context.Context,
	adapter platform.Adapter,
	peer string,
	kind domain.MessageKind,
	staged *media.StagedFile,
	originalFilename, caption string,
) (*domain.Message, error) {
	s.mediaKind = kind
	s.mediaName = originalFilename
	return s.mediaMsg, s.mediaErr
}

func (s *stubSender) ListMessages(ctx context.Context, p domain.Platform, d domain.Direction, since int64) ([]domain.Message, error) {
	s.listSince = since
	return s.listResult, s.listErr
}

type stubStager struct {
	staged *media.StagedFile
	err    error
	ext    string
}

func (s *stubStager) Stage(p domain.Platform, src io.Reader, ext string) (*media.StagedFile, error) {
	s.ext = ext
	if s.err != nil {
		return nil, s.err
	}
	return s.staged, nil
}

func newTextContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = validator.New()
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSendText_Success(t *testing.T) {
	sender := &stubSender{textMsg: &domain.Message{ID: "wamid.1", Status: domain.StatusSent}}
	h := NewMessageHandler(sender, &stubStager{})
	adapter := &stubAdapter{platform: domain.PlatformWhatsApp}

	c, rec := newTextContext(t, `{"text":"hello","to":"15550001111"}`)
	if err := h.SendText(adapter)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool            `json:"success"`
		Message *domain.Message `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.Message == nil || resp.Message.ID != "wamid.1" {
		t.Errorf("unexpected response body: %s", rec.Body.String())
	}
	if sender.textPeer != "15550001111" || sender.textBody != "hello" {
		t.Errorf("unexpected service call: peer=%q body=%q", sender.textPeer, sender.textBody)
	}
}

func TestSendText_MalformedJSONBadRequest(t *testing.T) {
	h := NewMessageHandler(&stubSender{}, &stubStager{})
	adapter := &stubAdapter{platform: domain.PlatformWhatsApp}

	c, rec := newTextContext(t, `{not json`)
	if err := h.SendText(adapter)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendText_MissingTextUnprocessable(t *testing.T) {
	h := NewMessageHandler(&stubSender{}, &stubStager{})
	adapter := &stubAdapter{platform: domain.PlatformWhatsApp}

	c, rec := newTextContext(t, `{"to":"15550001111"}`)
	if err := h.SendText(adapter)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp validator.ValidationErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := resp.Details["text"]; !ok {
		t.Errorf("expected a detail entry for the text field, got %+v", resp.Details)
	}
}

func TestSendText_ServiceFailureInternalError(t *testing.T) {
	sender := &stubSender{textErr: errors.New("platform rejected")}
	h := NewMessageHandler(sender, &stubStager{})
	adapter := &stubAdapter{platform: domain.PlatformMessenger}

	c, rec := newTextContext(t, `{"text":"hello"}`)
	if err := h.SendText(adapter)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func newMediaContext(t *testing.T, filename, mediaType string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to build multipart body: %v", err)
		}
		part.Write([]byte("file-bytes"))
	}
	if mediaType != "" {
		mw.WriteField("type", mediaType)
	}
	mw.Close()

	e := echo.New()
	e.Validator = validator.New()
	req := httptest.NewRequest(http.MethodPost, "/send-media", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSendMedia_Success(t *testing.T) {
	sender := &stubSender{mediaMsg: &domain.Message{ID: "wamid.m1"}}
	stager := &stubStager{staged: &media.StagedFile{Path: "/tmp/x.jpg", LocalURL: "/media/whatsapp/sent/x.jpg", Size: 10}}
	h := NewMessageHandler(sender, stager)
	adapter := &stubAdapter{platform: domain.PlatformWhatsApp}

	c, rec := newMediaContext(t, "photo.jpg", "image")
	if err := h.SendMedia(adapter)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if sender.mediaKind != domain.KindImage || sender.mediaName != "photo.jpg" {
		t.Errorf("unexpected service call: kind=%q name=%q", sender.mediaKind, sender.mediaName)
	}
	if stager.ext != ".jpg" {
		t.Errorf("expected extension from the uploaded filename, got %q", stager.ext)
	}

	var resp struct {
		Success  bool            `json:"success"`
		SendData *domain.Message `json:"sendData"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.SendData == nil || resp.SendData.ID != "wamid.m1" {
		t.Errorf("unexpected response body: %s", rec.Body.String())
	}
}

func TestSendMedia_VoiceAliasAndDefaultExt(t *testing.T) {
	sender := &stubSender{mediaMsg: &domain.Message{ID: "m.v1"}}
	stager := &stubStager{staged: &media.StagedFile{Path: "/tmp/v.mp3", LocalURL: "/media/messenger/sent/v.mp3", Size: 10}}
	h := NewMessageHandler(sender, stager)
	adapter := &stubAdapter{platform: domain.PlatformMessenger}

	c, rec := newMediaContext(t, "recording", "voice")
	if err := h.SendMedia(adapter)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sender.mediaKind != domain.KindAudio {
		t.Errorf("expected voice to normalize to audio, got %q", sender.mediaKind)
	}
	if stager.ext != ".mp3" {
		t.Errorf("expected the audio default extension, got %q", stager.ext)
	}
}

func TestSendMedia_MissingFileBadRequest(t *testing.T) {
	h := NewMessageHandler(&stubSender{}, &stubStager{})
	adapter := &stubAdapter{platform: domain.PlatformWhatsApp}

	c, rec := newMediaContext(t, "", "image")
	if err := h.SendMedia(adapter)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendMedia_SendFailureInternalError(t *testing.T) {
	sender := &stubSender{mediaErr: &domain.SendError{Platform: domain.PlatformWhatsApp, Phase: domain.SendPhaseUpload, Err: errors.New("nope")}}
	stager := &stubStager{staged: &media.StagedFile{Path: "/tmp/x.jpg", LocalURL: "/media/whatsapp/sent/x.jpg", Size: 10}}
	h := NewMessageHandler(sender, stager)
	adapter := &stubAdapter{platform: domain.PlatformWhatsApp}

	c, rec := newMediaContext(t, "photo.jpg", "image")
	if err := h.SendMedia(adapter)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func listRequest(t *testing.T, h *MessageHandler, target string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()

	handler := h.List(domain.PlatformWhatsApp, domain.DirectionReceived)
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestList_ReturnsPlainArrayWithNoStore(t *testing.T) {
	sender := &stubSender{listResult: []domain.Message{
		{ID: "a", Timestamp: 1},
		{ID: "b", Timestamp: 2},
	}}
	h := NewMessageHandler(sender, &stubStager{})

	rec := listRequest(t, h, "/received?since=100")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected Cache-Control: no-store, got %q", got)
	}
	if sender.listSince != 100 {
		t.Errorf("expected since=100 to reach the service, got %d", sender.listSince)
	}

	var messages []domain.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
		t.Fatalf("expected a plain JSON array: %v", err)
	}
	if len(messages) != 2 || messages[0].ID != "a" {
		t.Errorf("unexpected list body: %s", rec.Body.String())
	}
}

func TestList_EmptyResultIsEmptyArray(t *testing.T) {
	h := NewMessageHandler(&stubSender{}, &stubStager{})

	rec := listRequest(t, h, "/received")

	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected [] for an empty timeline, got %s", rec.Body.String())
	}
}

func TestList_BadSinceBadRequest(t *testing.T) {
	h := NewMessageHandler(&stubSender{}, &stubStager{})

	for _, raw := range []string{"abc", "-5"} {
		rec := listRequest(t, h, "/received?since="+raw)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("since=%q: expected 400, got %d", raw, rec.Code)
		}
	}
}
