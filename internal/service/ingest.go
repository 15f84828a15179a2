package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
	"unichat-relay/internal/platform"
	"unichat-relay/pkg/logger"
)

// Small consumer-side interfaces so the services can be tested with fakes
// instead of a real database, media root, or cache.
type messageRepository interface {
	Append(ctx context.Context, m *domain.Message) error
	UpdateStatus(ctx context.Context, p domain.Platform, messageID string, status domain.MessageStatus) (bool, error)
	List(ctx context.Context, p domain.Platform, d domain.Direction, since int64) ([]domain.Message, error)
}

type mediaFetcher interface {
	FetchAndPersist(ctx context.Context, p domain.Platform, req media.FetchRequest) (string, error)
}

type eventCache interface {
	MarkEventSeen(ctx context.Context, p domain.Platform, eventID string) (bool, error)
}

// IngestService is the processing half of the webhook ingestion state
// machine: it takes an already-received event-delivery body, normalizes it
// through the platform adapter, and persists the results. Failures are
// isolated per event; a batch never fails as a whole once its shape is
// recognized.
type IngestService struct {
	repo       messageRepository
	mediaStore mediaFetcher
	cache      eventCache
}

func NewIngestService(repo messageRepository, mediaStore mediaFetcher, cache eventCache) *IngestService {
	return &IngestService{
		repo:       repo,
		mediaStore: mediaStore,
		cache:      cache,
	}
}

// IngestBatch normalizes and processes one event-delivery body. The only
// error it returns is domain.ErrForeignPayload (unrecognized top-level
// shape); everything past that point is logged and swallowed per event.
func (s *IngestService) IngestBatch(ctx context.Context, adapter platform.Adapter, body []byte) error {
	events, err := adapter.ParseEvents(body)
	if err != nil {
		return err
	}

	for _, ev := range events {
		switch ev.Kind {
		case domain.EventStatus:
			s.applyStatus(ctx, ev)
		case domain.EventMessage, domain.EventContact:
			s.storeInbound(ctx, adapter, ev)
		}
	}

	return nil
}

func (s *IngestService) applyStatus(ctx context.Context, ev domain.InboundEvent) {
	applied, err := s.repo.UpdateStatus(ctx, ev.Platform, ev.MessageID, ev.Status)
	if err != nil {
		logger.Errorf("Failed to apply status %s to %s message %s: %v", ev.Status, ev.Platform, ev.MessageID, err)
		return
	}
	if !applied {
		// Unknown id or a receipt older than the stored status. Both are
		// expected under redelivery and dropped.
		logger.Debugf("Ignored status %s for %s message %s", ev.Status, ev.Platform, ev.MessageID)
	}
}

func (s *IngestService) storeInbound(ctx context.Context, adapter platform.Adapter, ev domain.InboundEvent) {
	if ev.MessageID != "" && s.cache != nil {
		seen, err := s.cache.MarkEventSeen(ctx, ev.Platform, ev.MessageID)
		if err != nil {
			logger.Warnf("Event dedup cache unavailable: %v", err)
		} else if seen {
			logger.Debugf("Dropped redelivered %s event %s", ev.Platform, ev.MessageID)
			return
		}
	}

	msg := &domain.Message{
		ID:          ev.MessageID,
		Platform:    ev.Platform,
		Direction:   domain.DirectionReceived,
		Peer:        ev.Sender,
		Kind:        ev.MessageKind,
		Body:        ev.Text,
		ContactInfo: ev.Contact,
		Status:      domain.StatusReceived,
		Timestamp:   ev.Timestamp,
	}
	if msg.ID == "" {
		msg.ID = localMessageID()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	if ev.Media != nil {
		localURL, err := s.mediaStore.FetchAndPersist(ctx, ev.Platform, adapter.MediaFetch(*ev.Media))
		if err != nil {
			// The message row is still written; the client shows a message
			// without its attachment rather than no message at all.
			logger.Errorf("Media download failed for %s message %s: %v", ev.Platform, msg.ID, err)
		} else {
			msg.Attachment = &domain.Attachment{
				LocalURL:         localURL,
				OriginalFilename: ev.Media.Filename,
				RemoteMediaID:    ev.Media.MediaID,
			}
		}
	}

	if err := s.repo.Append(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrDuplicateID) {
			logger.Debugf("Dropped duplicate %s message %s", ev.Platform, msg.ID)
			return
		}
		logger.Errorf("Failed to store inbound %s message %s: %v", ev.Platform, msg.ID, err)
	}
}

// localMessageID generates a timestamp-based id for inbound events the
// platform delivered without one.
func localMessageID() string {
	return fmt.Sprintf("m_%d", time.Now().UnixMilli())
}
