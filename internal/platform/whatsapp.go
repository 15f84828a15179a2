package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"unichat-relay/environments"
	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
)

const whatsappObjectName = "whatsapp_business_account"

// WhatsAppAdapter talks to the Cloud API for the phone-number-based
// platform. Inbound media arrives as a media id that must be resolved to a
// download URL; outbound media is uploaded to the media endpoint first and
// then referenced by id in the send call.
type WhatsAppAdapter struct {
	cfg        environments.WhatsAppConfig
	httpClient *resty.Client
}

func NewWhatsAppAdapter(cfg environments.WhatsAppConfig) *WhatsAppAdapter {
	client := resty.New().
		SetBaseURL(cfg.GraphBaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.AccessToken)

	return &WhatsAppAdapter{cfg: cfg, httpClient: client}
}

func (a *WhatsAppAdapter) Platform() domain.Platform { return domain.PlatformWhatsApp }
func (a *WhatsAppAdapter) ObjectName() string        { return whatsappObjectName }
func (a *WhatsAppAdapter) VerifyToken() string       { return a.cfg.VerifyToken }
func (a *WhatsAppAdapter) DefaultPeer() string       { return a.cfg.DefaultPeer }

// Webhook payload shapes. The Cloud API nests events three levels deep:
// entry -> changes -> value, with messages, statuses and contact shares as
// sibling arrays inside value.
type whatsappWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []whatsappMessage `json:"messages"`
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type whatsappMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *whatsappMedia `json:"image"`
	Audio    *whatsappMedia `json:"audio"`
	Video    *whatsappMedia `json:"video"`
	Document *whatsappMedia `json:"document"`
	Sticker  *whatsappMedia `json:"sticker"`
	Contacts []struct {
		Name struct {
			FormattedName string `json:"formatted_name"`
		} `json:"name"`
		Phones []struct {
			WaID  string `json:"wa_id"`
			Phone string `json:"phone"`
		} `json:"phones"`
	} `json:"contacts"`
}

type whatsappMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}

func (a *WhatsAppAdapter) ParseEvents(body []byte) ([]domain.InboundEvent, error) {
	var payload whatsappWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.ErrForeignPayload
	}
	if payload.Object != whatsappObjectName {
		return nil, domain.ErrForeignPayload
	}

	var events []domain.InboundEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				events = append(events, a.normalizeMessage(msg))
			}
			for _, st := range change.Value.Statuses {
				status, ok := whatsappStatus(st.Status)
				if !ok {
					continue
				}
				events = append(events, domain.InboundEvent{
					Kind:      domain.EventStatus,
					Platform:  domain.PlatformWhatsApp,
					MessageID: st.ID,
					Status:    status,
					Timestamp: time.Now().UnixMilli(),
				})
			}
		}
	}

	return events, nil
}

func (a *WhatsAppAdapter) normalizeMessage(msg whatsappMessage) domain.InboundEvent {
	ev := domain.InboundEvent{
		Kind:      domain.EventMessage,
		Platform:  domain.PlatformWhatsApp,
		MessageID: msg.ID,
		Sender:    msg.From,
		Timestamp: whatsappTimestamp(msg.Timestamp),
	}

	switch msg.Type {
	case "text":
		ev.MessageKind = domain.KindText
		if msg.Text != nil {
			ev.Text = msg.Text.Body
		}
	case "contacts":
		ev.Kind = domain.EventContact
		ev.MessageKind = domain.KindContact
		if len(msg.Contacts) > 0 {
			contact := msg.Contacts[0]
			info := &domain.ContactInfo{Name: contact.Name.FormattedName}
			if info.Name == "" {
				info.Name = "Unknown"
			}
			if len(contact.Phones) > 0 {
				info.Phone = contact.Phones[0].WaID
				if info.Phone == "" {
					info.Phone = contact.Phones[0].Phone
				}
			}
			ev.Contact = info
		}
	case "image", "audio", "video", "document", "sticker":
		ev.MessageKind = domain.MessageKind(msg.Type)
		if m := msg.media(); m != nil {
			ev.Media = &domain.MediaRef{
				Kind:     ev.MessageKind,
				MediaID:  m.ID,
				Filename: m.Filename,
				MimeType: m.MimeType,
			}
		}
	default:
		// Unknown attachment types degrade to a generic document.
		ev.MessageKind = domain.KindDocument
	}

	return ev
}

func (m whatsappMessage) media() *whatsappMedia {
	switch m.Type {
	case "image":
		return m.Image
	case "audio":
		return m.Audio
	case "video":
		return m.Video
	case "document":
		return m.Document
	case "sticker":
		return m.Sticker
	}
	return nil
}

func whatsappStatus(s string) (domain.MessageStatus, bool) {
	switch s {
	case "sent":
		return domain.StatusSent, true
	case "delivered":
		return domain.StatusDelivered, true
	case "read":
		return domain.StatusRead, true
	}
	return "", false
}

// whatsappTimestamp converts the Cloud API's unix-seconds string to
// milliseconds, falling back to now for absent or malformed values.
func whatsappTimestamp(raw string) int64 {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return secs * 1000
	}
	return time.Now().UnixMilli()
}

func (a *WhatsAppAdapter) MediaFetch(ref domain.MediaRef) media.FetchRequest {
	return media.FetchRequest{
		ResolveURL: fmt.Sprintf("%s/%s", a.cfg.GraphBaseURL, ref.MediaID),
		AuthToken:  a.cfg.AccessToken,
		Ext:        whatsappExt(ref),
	}
}

func whatsappExt(ref domain.MediaRef) string {
	switch ref.Kind {
	case domain.KindImage:
		return ".jpg"
	case domain.KindAudio:
		return ".mp3"
	case domain.KindVideo:
		return ".mp4"
	case domain.KindSticker:
		return ".webp"
	case domain.KindDocument:
		if ext := filepath.Ext(ref.Filename); ext != "" {
			return ext
		}
	}
	return ".bin"
}

type whatsappSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *graphError `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *graphError) String() string {
	return fmt.Sprintf("graph error %d: %s", e.Code, e.Message)
}

func (a *WhatsAppAdapter) SendText(ctx context.Context, peer, body string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                peer,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}

	var result whatsappSendResponse
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/%s/messages", a.cfg.PhoneNumberID))
	if err != nil {
		return "", &domain.SendError{Platform: domain.PlatformWhatsApp, Phase: domain.SendPhaseSend, Err: err}
	}
	if resp.IsError() || len(result.Messages) == 0 {
		return "", &domain.SendError{
			Platform: domain.PlatformWhatsApp,
			Phase:    domain.SendPhaseSend,
			Err:      graphFailure(resp.StatusCode(), result.Error),
		}
	}

	return result.Messages[0].ID, nil
}

func (a *WhatsAppAdapter) SendMedia(
	ctx context.Context,
	peer string,
	kind domain.MessageKind,
	staged *media.StagedFile,
	originalFilename string,
	caption string,
) (*MediaSendResult, error) {
	// Phase 1: upload the binary to obtain a remote media handle.
	var upload struct {
		ID    string      `json:"id"`
		Error *graphError `json:"error"`
	}

	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetFile("file", staged.Path).
		SetFormData(map[string]string{"messaging_product": "whatsapp"}).
		SetResult(&upload).
		SetError(&upload).
		Post(fmt.Sprintf("/%s/media", a.cfg.PhoneNumberID))
	if err != nil {
		return nil, &domain.SendError{Platform: domain.PlatformWhatsApp, Phase: domain.SendPhaseUpload, Err: err}
	}
	if resp.IsError() || upload.ID == "" {
		return nil, &domain.SendError{
			Platform: domain.PlatformWhatsApp,
			Phase:    domain.SendPhaseUpload,
			Err:      graphFailure(resp.StatusCode(), upload.Error),
		}
	}

	// Phase 2: reference the handle in a send call. The uploaded handle is
	// not reclaimed when this fails; the failure is reported with its own
	// phase instead.
	attachment := map[string]any{"id": upload.ID}
	if caption != "" {
		attachment["caption"] = caption
	}
	if kind == domain.KindDocument && originalFilename != "" {
		attachment["filename"] = originalFilename
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                peer,
		"type":              string(kind),
		string(kind):        attachment,
	}

	var result whatsappSendResponse
	resp, err = a.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/%s/messages", a.cfg.PhoneNumberID))
	if err != nil {
		return nil, &domain.SendError{Platform: domain.PlatformWhatsApp, Phase: domain.SendPhaseSendAfterUpload, Err: err}
	}
	if resp.IsError() || len(result.Messages) == 0 {
		return nil, &domain.SendError{
			Platform: domain.PlatformWhatsApp,
			Phase:    domain.SendPhaseSendAfterUpload,
			Err:      graphFailure(resp.StatusCode(), result.Error),
		}
	}

	return &MediaSendResult{MessageID: result.Messages[0].ID, RemoteMediaID: upload.ID}, nil
}

func graphFailure(statusCode int, gerr *graphError) error {
	if gerr != nil && gerr.Message != "" {
		return fmt.Errorf("%s (http %d)", gerr.String(), statusCode)
	}
	return fmt.Errorf("unexpected status %d", statusCode)
}
