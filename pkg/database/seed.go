package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"unichat-relay/internal/domain"
	"unichat-relay/pkg/logger"
)

// SeedTestData inserts a small demo conversation on both platforms so the
// mobile client has something to render against a fresh database.
func SeedTestData(db *sqlx.DB) error {
	var count int

	if err := db.Get(&count, "SELECT COUNT(*) FROM messages"); err != nil {
		return err
	}

	if count > 0 {
		logger.Infof("Database already has %d messages, skipping seed", count)
		return nil
	}

	base := time.Now().Add(-time.Hour).UnixMilli()

	seedMessages := []struct {
		platform  domain.Platform
		direction domain.Direction
		id        string
		peer      string
		body      string
		status    domain.MessageStatus
		offset    int64
	}{
		{domain.PlatformWhatsApp, domain.DirectionReceived, "wamid.demo.1", "15550001111", "Hey, is this the unified inbox?", domain.StatusReceived, 0},
		{domain.PlatformWhatsApp, domain.DirectionSent, "wamid.demo.2", "15550001111", "It is! Both platforms land here.", domain.StatusRead, 60_000},
		{domain.PlatformWhatsApp, domain.DirectionReceived, "wamid.demo.3", "15550001111", "Nice, works on my end.", domain.StatusReceived, 120_000},
		{domain.PlatformMessenger, domain.DirectionReceived, "m_demo.1", "24400000001", "Hello from the page side!", domain.StatusReceived, 30_000},
		{domain.PlatformMessenger, domain.DirectionSent, "m_demo.2", "24400000001", "Hi! Reading you loud and clear.", domain.StatusDelivered, 90_000},
	}

	for _, msg := range seedMessages {
		_, err := db.Exec(
			`INSERT INTO messages (platform, direction, id, peer, kind, body, status, timestamp)
			 VALUES (?, ?, ?, ?, 'text', ?, ?, ?)`,
			msg.platform, msg.direction, msg.id, msg.peer, msg.body, msg.status, base+msg.offset,
		)
		if err != nil {
			return fmt.Errorf("failed to seed test data: %w", err)
		}
	}

	logger.Infof("Seeded %d demo messages", len(seedMessages))
	return nil
}
