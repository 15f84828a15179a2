package domain

type EventKind string

const (
	EventMessage EventKind = "message"
	EventStatus  EventKind = "status"
	EventContact EventKind = "contact"
)

// MediaRef describes an attachment as it appears in an inbound webhook
// payload, before any bytes have been fetched. WhatsApp delivers a media id
// that must be resolved to a URL first; Messenger delivers the URL directly.
type MediaRef struct {
	Kind     MessageKind
	MediaID  string
	URL      string
	Filename string
	MimeType string
}

// InboundEvent is the normalized form of one platform webhook entry. Exactly
// one of the optional fields is populated depending on Kind.
type InboundEvent struct {
	Kind      EventKind
	Platform  Platform
	MessageID string
	Sender    string
	Timestamp int64

	// EventMessage
	MessageKind MessageKind
	Text        string
	Media       *MediaRef

	// EventContact
	Contact *ContactInfo

	// EventStatus
	Status MessageStatus
}
