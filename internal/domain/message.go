package domain

import "time"

type Platform string

const (
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformMessenger Platform = "messenger"
)

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindAudio    MessageKind = "audio"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
	KindContact  MessageKind = "contact"
	KindSticker  MessageKind = "sticker"
)

type MessageStatus string

const (
	StatusReceived  MessageStatus = "received"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// StatusRank orders the outbound delivery lifecycle. A transition is applied
// only when the new status ranks strictly higher than the current one, so
// late-arriving receipts can never regress a message from read back to sent.
func StatusRank(s MessageStatus) int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Attachment points at media bytes that have already been written under the
// media root. LocalURL is never set before the file exists on disk.
type Attachment struct {
	LocalURL         string `db:"media_url" json:"localUrl"`
	OriginalFilename string `db:"filename" json:"originalFilename,omitempty"`
	RemoteMediaID    string `db:"remote_media_id" json:"remoteMediaId,omitempty"`
}

type ContactInfo struct {
	Name  string `db:"contact_name" json:"name"`
	Phone string `db:"contact_phone" json:"phone"`
}

// Message is the internal model both platforms are translated into.
// ID is the platform-assigned identifier for sent messages and for received
// ones that carry one; received messages without an id get a locally
// generated timestamp-based id.
type Message struct {
	ID          string        `db:"id" json:"id"`
	Platform    Platform      `db:"platform" json:"platform"`
	Direction   Direction     `db:"direction" json:"direction"`
	Peer        string        `db:"peer" json:"peer,omitempty"`
	Kind        MessageKind   `db:"kind" json:"kind"`
	Body        string        `db:"body" json:"body,omitempty"`
	Attachment  *Attachment   `json:"attachment,omitempty"`
	ContactInfo *ContactInfo  `json:"contactInfo,omitempty"`
	Status      MessageStatus `db:"status" json:"status"`
	Timestamp   int64         `db:"timestamp" json:"timestamp"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}
