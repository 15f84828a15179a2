package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID is returned by the store when a row with the same
	// (platform, direction, id) already exists. Webhook redeliveries trip
	// this guard and are dropped silently.
	ErrDuplicateID = errors.New("duplicate message id")

	// ErrForeignPayload marks an event-delivery body whose top-level object
	// discriminator does not match the platform.
	ErrForeignPayload = errors.New("foreign webhook payload")
)

// SendError phases. A failure in the reference call after a successful
// upload leaves an orphaned remote media handle, which callers may want to
// treat differently from a plain rejection.
const (
	SendPhaseUpload          = "upload"
	SendPhaseSend            = "send"
	SendPhaseSendAfterUpload = "send-after-upload"
)

// SendError is returned when the platform rejects or times out an outbound
// call. No message row is written when one of these surfaces.
type SendError struct {
	Platform Platform
	Phase    string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send failed (%s): %v", e.Platform, e.Phase, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// MediaFetchError is returned when resolving or downloading remote media
// fails. Inbound ingestion treats it as non-fatal.
type MediaFetchError struct {
	Platform Platform
	Ref      string
	Err      error
}

func (e *MediaFetchError) Error() string {
	return fmt.Sprintf("%s media fetch failed for %q: %v", e.Platform, e.Ref, e.Err)
}

func (e *MediaFetchError) Unwrap() error { return e.Err }
