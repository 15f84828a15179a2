// Package platform translates between the external messaging platforms'
// wire formats and the internal message model. Both adapters implement the
// same capability set with different payload shapes; everything else in the
// relay is platform-agnostic.
package platform

import (
	"context"

	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
)

// Adapter is the per-platform capability set: normalize inbound webhook
// batches, describe how to fetch their media, and drive the outbound send
// endpoints.
type Adapter interface {
	Platform() domain.Platform

	// ObjectName is the required top-level discriminator of event-delivery
	// payloads. Bodies carrying anything else are foreign and rejected.
	ObjectName() string

	// VerifyToken is the configured secret for the verification handshake.
	VerifyToken() string

	// DefaultPeer is the recipient used when a send request names none.
	DefaultPeer() string

	// ParseEvents normalizes an event-delivery body into inbound events.
	// Returns domain.ErrForeignPayload when the discriminator mismatches.
	ParseEvents(body []byte) ([]domain.InboundEvent, error)

	// MediaFetch builds the fetch recipe for an inbound attachment.
	MediaFetch(ref domain.MediaRef) media.FetchRequest

	// SendText posts a text message and returns the platform message id.
	SendText(ctx context.Context, peer, body string) (string, error)

	// SendMedia runs the two-phase upload-then-reference protocol. A
	// failure after a successful upload surfaces as
	// SendError{Phase: send-after-upload}.
	SendMedia(ctx context.Context, peer string, kind domain.MessageKind, staged *media.StagedFile, originalFilename, caption string) (*MediaSendResult, error)
}

// MediaSendResult reports both platform-side identifiers of a completed
// media send: the message id and the remote handle minted by the upload.
type MediaSendResult struct {
	MessageID     string
	RemoteMediaID string
}

// NormalizeKind maps a client-supplied media type to the internal kind.
// The mobile client sends "voice" for audio clips; unknown values fall back
// to document rather than failing.
func NormalizeKind(mediaType string) domain.MessageKind {
	switch mediaType {
	case "text":
		return domain.KindText
	case "image":
		return domain.KindImage
	case "audio", "voice":
		return domain.KindAudio
	case "video":
		return domain.KindVideo
	case "document", "file":
		return domain.KindDocument
	case "sticker":
		return domain.KindSticker
	default:
		return domain.KindDocument
	}
}
