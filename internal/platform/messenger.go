package platform

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"

	"unichat-relay/environments"
	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
)

const messengerObjectName = "page"

// MessengerAdapter talks to the Send API for the page-scoped platform.
// Inbound attachments carry a direct download URL. Outbound media uses the
// attachment-upload endpoint to obtain a reusable handle, then references it
// in the send call, mirroring the phone platform's two-phase protocol.
type MessengerAdapter struct {
	cfg        environments.MessengerConfig
	httpClient *resty.Client
}

func NewMessengerAdapter(cfg environments.MessengerConfig) *MessengerAdapter {
	client := resty.New().
		SetBaseURL(cfg.GraphBaseURL).
		SetTimeout(cfg.Timeout).
		SetQueryParam("access_token", cfg.PageAccessToken)

	return &MessengerAdapter{cfg: cfg, httpClient: client}
}

func (a *MessengerAdapter) Platform() domain.Platform { return domain.PlatformMessenger }
func (a *MessengerAdapter) ObjectName() string        { return messengerObjectName }
func (a *MessengerAdapter) VerifyToken() string       { return a.cfg.VerifyToken }
func (a *MessengerAdapter) DefaultPeer() string       { return a.cfg.DefaultPeer }

// Event-delivery payload: entries each carry a messaging array of
// (sender, message-or-receipt) tuples.
type messengerWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []messengerEvent `json:"messaging"`
	} `json:"entry"`
}

type messengerEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		Mid         string `json:"mid"`
		Text        string `json:"text"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
	Delivery *struct {
		Mids []string `json:"mids"`
	} `json:"delivery"`
	Read *struct {
		Watermark int64 `json:"watermark"`
	} `json:"read"`
}

func (a *MessengerAdapter) ParseEvents(body []byte) ([]domain.InboundEvent, error) {
	var payload messengerWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.ErrForeignPayload
	}
	if payload.Object != messengerObjectName {
		return nil, domain.ErrForeignPayload
	}

	var events []domain.InboundEvent
	for _, entry := range payload.Entry {
		for _, raw := range entry.Messaging {
			events = append(events, a.normalizeEvent(raw)...)
		}
	}

	return events, nil
}

func (a *MessengerAdapter) normalizeEvent(raw messengerEvent) []domain.InboundEvent {
	if raw.Delivery != nil {
		events := make([]domain.InboundEvent, 0, len(raw.Delivery.Mids))
		for _, mid := range raw.Delivery.Mids {
			events = append(events, domain.InboundEvent{
				Kind:      domain.EventStatus,
				Platform:  domain.PlatformMessenger,
				MessageID: mid,
				Status:    domain.StatusDelivered,
				Timestamp: raw.Timestamp,
			})
		}
		return events
	}

	if raw.Message == nil {
		return nil
	}

	ev := domain.InboundEvent{
		Kind:        domain.EventMessage,
		Platform:    domain.PlatformMessenger,
		MessageID:   raw.Message.Mid,
		Sender:      raw.Sender.ID,
		MessageKind: domain.KindText,
		Text:        raw.Message.Text,
		Timestamp:   raw.Timestamp,
	}

	if len(raw.Message.Attachments) > 0 {
		att := raw.Message.Attachments[0]
		ev.MessageKind = messengerKind(att.Type)
		ev.Text = ""
		ev.Media = &domain.MediaRef{
			Kind: ev.MessageKind,
			URL:  att.Payload.URL,
		}
	}

	return []domain.InboundEvent{ev}
}

func messengerKind(attachmentType string) domain.MessageKind {
	switch attachmentType {
	case "image":
		return domain.KindImage
	case "audio":
		return domain.KindAudio
	case "video":
		return domain.KindVideo
	default:
		// "file" and anything unrecognized.
		return domain.KindDocument
	}
}

func (a *MessengerAdapter) MediaFetch(ref domain.MediaRef) media.FetchRequest {
	return media.FetchRequest{
		URL:       ref.URL,
		AuthToken: a.cfg.PageAccessToken,
		Ext:       messengerExt(ref.Kind),
	}
}

func messengerExt(kind domain.MessageKind) string {
	switch kind {
	case domain.KindImage:
		return ".jpg"
	case domain.KindAudio:
		return ".mp3"
	case domain.KindVideo:
		return ".mp4"
	case domain.KindDocument:
		return ".pdf"
	}
	return ".bin"
}

type messengerSendResponse struct {
	MessageID string      `json:"message_id"`
	Error     *graphError `json:"error"`
}

func (a *MessengerAdapter) SendText(ctx context.Context, peer, body string) (string, error) {
	payload := map[string]any{
		"recipient": map[string]string{"id": peer},
		"message":   map[string]string{"text": body},
	}

	var result messengerSendResponse
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post("/me/messages")
	if err != nil {
		return "", &domain.SendError{Platform: domain.PlatformMessenger, Phase: domain.SendPhaseSend, Err: err}
	}
	if resp.IsError() || result.MessageID == "" {
		return "", &domain.SendError{
			Platform: domain.PlatformMessenger,
			Phase:    domain.SendPhaseSend,
			Err:      graphFailure(resp.StatusCode(), result.Error),
		}
	}

	return result.MessageID, nil
}

// messengerAttachmentType maps the internal kind onto the Send API's
// attachment types. Stickers have no outbound type of their own and go out
// as images; documents ride the generic file type.
func messengerAttachmentType(kind domain.MessageKind) string {
	switch kind {
	case domain.KindImage, domain.KindSticker:
		return "image"
	case domain.KindAudio:
		return "audio"
	case domain.KindVideo:
		return "video"
	default:
		return "file"
	}
}

func (a *MessengerAdapter) SendMedia(
	ctx context.Context,
	peer string,
	kind domain.MessageKind,
	staged *media.StagedFile,
	originalFilename string,
	caption string,
) (*MediaSendResult, error) {
	attachmentType := messengerAttachmentType(kind)

	// Phase 1: upload to the attachment endpoint for a reusable handle.
	uploadMessage, err := json.Marshal(map[string]any{
		"attachment": map[string]any{
			"type":    attachmentType,
			"payload": map[string]any{"is_reusable": true},
		},
	})
	if err != nil {
		return nil, &domain.SendError{Platform: domain.PlatformMessenger, Phase: domain.SendPhaseUpload, Err: err}
	}

	var upload struct {
		AttachmentID string      `json:"attachment_id"`
		Error        *graphError `json:"error"`
	}

	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetFile("filedata", staged.Path).
		SetFormData(map[string]string{"message": string(uploadMessage)}).
		SetResult(&upload).
		SetError(&upload).
		Post("/me/message_attachments")
	if err != nil {
		return nil, &domain.SendError{Platform: domain.PlatformMessenger, Phase: domain.SendPhaseUpload, Err: err}
	}
	if resp.IsError() || upload.AttachmentID == "" {
		return nil, &domain.SendError{
			Platform: domain.PlatformMessenger,
			Phase:    domain.SendPhaseUpload,
			Err:      graphFailure(resp.StatusCode(), upload.Error),
		}
	}

	// Phase 2: send a message referencing the uploaded handle. The handle
	// is left orphaned on the platform when this fails.
	payload := map[string]any{
		"recipient": map[string]string{"id": peer},
		"message": map[string]any{
			"attachment": map[string]any{
				"type":    attachmentType,
				"payload": map[string]string{"attachment_id": upload.AttachmentID},
			},
		},
	}

	var result messengerSendResponse
	resp, err = a.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post("/me/messages")
	if err != nil {
		return nil, &domain.SendError{Platform: domain.PlatformMessenger, Phase: domain.SendPhaseSendAfterUpload, Err: err}
	}
	if resp.IsError() || result.MessageID == "" {
		return nil, &domain.SendError{
			Platform: domain.PlatformMessenger,
			Phase:    domain.SendPhaseSendAfterUpload,
			Err:      graphFailure(resp.StatusCode(), result.Error),
		}
	}

	return &MediaSendResult{MessageID: result.MessageID, RemoteMediaID: upload.AttachmentID}, nil
}
