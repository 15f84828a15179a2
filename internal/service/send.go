package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
	"unichat-relay/internal/platform"
	"unichat-relay/pkg/logger"
)

// SendService coordinates outbound sends: validate, run the platform call
// (two-phase for media), and persist the row only after the platform has
// acknowledged with a message id. A failure at any step leaves no partial
// row behind.
type SendService struct {
	repo messageRepository
}

func NewSendService(repo messageRepository) *SendService {
	return &SendService{repo: repo}
}

func (s *SendService) resolvePeer(adapter platform.Adapter, peer string) (string, error) {
	if peer != "" {
		return peer, nil
	}
	if fallback := adapter.DefaultPeer(); fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no recipient given and no default peer configured for %s", adapter.Platform())
}

// SendText posts a text message and persists the acknowledged row.
func (s *SendService) SendText(ctx context.Context, adapter platform.Adapter, peer, body string) (*domain.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("text must not be empty")
	}

	peer, err := s.resolvePeer(adapter, peer)
	if err != nil {
		return nil, err
	}

	messageID, err := adapter.SendText(ctx, peer, body)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        messageID,
		Platform:  adapter.Platform(),
		Direction: domain.DirectionSent,
		Peer:      peer,
		Kind:      domain.KindText,
		Body:      body,
		Status:    domain.StatusSent,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := s.repo.Append(ctx, msg); err != nil {
		// The platform accepted the message; losing the row here is worth
		// surfacing to the caller even though the send went out.
		return nil, fmt.Errorf("message sent but not recorded: %w", err)
	}

	logger.Infof("Sent %s text message %s to %s", msg.Platform, msg.ID, peer)

	return msg, nil
}

// SendMedia runs the two-phase media send for a file already staged on disk
// and persists the acknowledged row, including the staged file's local URL.
func (s *SendService) SendMedia(
	ctx context.Context,
	adapter platform.Adapter,
	peer string,
	kind domain.MessageKind,
	staged *media.StagedFile,
	originalFilename string,
	caption string,
) (*domain.Message, error) {
	if staged == nil {
		return nil, fmt.Errorf("no staged file to send")
	}
	if info, err := os.Stat(staged.Path); err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("staged file %s is not readable", staged.Path)
	}

	peer, err := s.resolvePeer(adapter, peer)
	if err != nil {
		return nil, err
	}

	result, err := adapter.SendMedia(ctx, peer, kind, staged, originalFilename, caption)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        result.MessageID,
		Platform:  adapter.Platform(),
		Direction: domain.DirectionSent,
		Peer:      peer,
		Kind:      kind,
		Body:      caption,
		Status:    domain.StatusSent,
		Timestamp: time.Now().UnixMilli(),
		Attachment: &domain.Attachment{
			LocalURL:         staged.LocalURL,
			OriginalFilename: originalFilename,
			RemoteMediaID:    result.RemoteMediaID,
		},
	}

	if err := s.repo.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("message sent but not recorded: %w", err)
	}

	logger.Infof("Sent %s %s message %s to %s", msg.Platform, kind, msg.ID, peer)

	return msg, nil
}

// ListMessages returns one direction of a platform's timeline, ordered by
// timestamp ascending.
func (s *SendService) ListMessages(
	ctx context.Context,
	p domain.Platform,
	d domain.Direction,
	since int64,
) ([]domain.Message, error) {
	return s.repo.List(ctx, p, d, since)
}
