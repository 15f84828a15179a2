package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"unichat-relay/environments"
	"unichat-relay/internal/domain"
	"unichat-relay/pkg/logger"
)

// Client is an optional dedup cache in front of the database's unique
// constraint. Platforms redeliver webhook events aggressively; remembering
// recently seen event ids lets the ingestion path drop repeats without a
// round trip to MySQL. The relay runs fine without it.
type Client struct {
	client valkey.Client
}

const (
	seenEventKeyPrefix = "seen_event:"
	seenEventTTL       = 24 * time.Hour
)

func NewClient(cfg environments.CacheConfig) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()

		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	logger.Infof("Connected to cache (via Valkey client)")

	return &Client{client: client}, nil
}

// MarkEventSeen records a platform event id with SET NX and reports whether
// it was already present. Errors are returned so the caller can fall through
// to the database guard instead of dropping events on a flaky cache.
func (c *Client) MarkEventSeen(ctx context.Context, platform domain.Platform, eventID string) (bool, error) {
	key := fmt.Sprintf("%s%s:%s", seenEventKeyPrefix, platform, eventID)

	result := c.client.Do(ctx, c.client.B().Set().Key(key).Value("1").Nx().Ex(seenEventTTL).Build())
	if err := result.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			// SET NX answers nil when the key already existed.
			return true, nil
		}
		return false, fmt.Errorf("failed to mark event seen: %w", err)
	}

	return false, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}
