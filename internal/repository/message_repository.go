package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"unichat-relay/internal/domain"
)

// MessageRepository handles database operations for relayed messages.
type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// messageRow flattens the nested Message model onto the table columns.
type messageRow struct {
	Platform      domain.Platform      `db:"platform"`
	Direction     domain.Direction     `db:"direction"`
	ID            string               `db:"id"`
	Peer          sql.NullString       `db:"peer"`
	Kind          domain.MessageKind   `db:"kind"`
	Body          sql.NullString       `db:"body"`
	MediaURL      sql.NullString       `db:"media_url"`
	Filename      sql.NullString       `db:"filename"`
	RemoteMediaID sql.NullString       `db:"remote_media_id"`
	ContactName   sql.NullString       `db:"contact_name"`
	ContactPhone  sql.NullString       `db:"contact_phone"`
	Status        domain.MessageStatus `db:"status"`
	Timestamp     int64                `db:"timestamp"`
	CreatedAt     sql.NullTime         `db:"created_at"`
}

func toRow(m *domain.Message) messageRow {
	row := messageRow{
		Platform:  m.Platform,
		Direction: m.Direction,
		ID:        m.ID,
		Peer:      nullable(m.Peer),
		Kind:      m.Kind,
		Body:      nullable(m.Body),
		Status:    m.Status,
		Timestamp: m.Timestamp,
	}
	if m.Attachment != nil {
		row.MediaURL = nullable(m.Attachment.LocalURL)
		row.Filename = nullable(m.Attachment.OriginalFilename)
		row.RemoteMediaID = nullable(m.Attachment.RemoteMediaID)
	}
	if m.ContactInfo != nil {
		row.ContactName = nullable(m.ContactInfo.Name)
		row.ContactPhone = nullable(m.ContactInfo.Phone)
	}
	return row
}

func (r messageRow) toMessage() domain.Message {
	m := domain.Message{
		Platform:  r.Platform,
		Direction: r.Direction,
		ID:        r.ID,
		Peer:      r.Peer.String,
		Kind:      r.Kind,
		Body:      r.Body.String,
		Status:    r.Status,
		Timestamp: r.Timestamp,
		CreatedAt: r.CreatedAt.Time,
	}
	if r.MediaURL.Valid {
		m.Attachment = &domain.Attachment{
			LocalURL:         r.MediaURL.String,
			OriginalFilename: r.Filename.String,
			RemoteMediaID:    r.RemoteMediaID.String,
		}
	}
	if r.ContactName.Valid || r.ContactPhone.Valid {
		m.ContactInfo = &domain.ContactInfo{
			Name:  r.ContactName.String,
			Phone: r.ContactPhone.String,
		}
	}
	return m
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Append inserts a new message row. The composite primary key makes the
// insert the idempotency check: a redelivered webhook event hits a
// duplicate-key error, reported as domain.ErrDuplicateID.
func (r *MessageRepository) Append(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages
			(platform, direction, id, peer, kind, body, media_url, filename,
			 remote_media_id, contact_name, contact_phone, status, timestamp)
		VALUES
			(:platform, :direction, :id, :peer, :kind, :body, :media_url, :filename,
			 :remote_media_id, :contact_name, :contact_phone, :status, :timestamp)
	`

	if _, err := r.db.NamedExecContext(ctx, query, toRow(m)); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return domain.ErrDuplicateID
		}
		return fmt.Errorf("failed to append message: %w", err)
	}

	return nil
}

// UpdateStatus applies a delivery-receipt status to an outbound message.
// The FIELD predicate makes the transition monotonic and race-free under
// concurrent deliveries: the row only changes when the new status ranks
// strictly higher than the stored one. Returns whether a row was updated.
func (r *MessageRepository) UpdateStatus(
	ctx context.Context,
	platform domain.Platform,
	messageID string,
	status domain.MessageStatus,
) (bool, error) {
	query := `
		UPDATE messages
		SET status = ?
		WHERE platform = ? AND direction = 'sent' AND id = ?
		  AND FIELD(?, 'sent', 'delivered', 'read') > FIELD(status, 'sent', 'delivered', 'read')
	`

	result, err := r.db.ExecContext(ctx, query, status, platform, messageID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update message status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// List returns messages for one platform and direction ordered by timestamp
// ascending. Clients merge sent and received lists into one timeline, so the
// ordering here is part of the external contract. since filters to rows with
// a strictly later timestamp when positive.
func (r *MessageRepository) List(
	ctx context.Context,
	platform domain.Platform,
	direction domain.Direction,
	since int64,
) ([]domain.Message, error) {
	query := `
		SELECT platform, direction, id, peer, kind, body, media_url, filename,
		       remote_media_id, contact_name, contact_phone, status, timestamp, created_at
		FROM messages
		WHERE platform = ? AND direction = ? AND timestamp > ?
		ORDER BY timestamp ASC
	`

	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, platform, direction, since); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.toMessage())
	}

	return messages, nil
}

// MediaURLReferenced reports whether any row points at the given local media
// URL. The sweeper uses this to tell staged orphans from delivered files.
func (r *MessageRepository) MediaURLReferenced(ctx context.Context, localURL string) (bool, error) {
	var count int64
	query := "SELECT COUNT(*) FROM messages WHERE media_url = ?"
	if err := r.db.GetContext(ctx, &count, query, localURL); err != nil {
		return false, fmt.Errorf("failed to check media reference: %w", err)
	}
	return count > 0, nil
}

type StatusCounts struct {
	Received  int64 `db:"received" json:"received"`
	Sent      int64 `db:"sent" json:"sent"`
	Delivered int64 `db:"delivered" json:"delivered"`
	Read      int64 `db:"read" json:"read"`
}

// GetStats returns per-status row counts for one platform.
func (r *MessageRepository) GetStats(ctx context.Context, platform domain.Platform) (*StatusCounts, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'received' THEN 1 ELSE 0 END), 0)  AS received,
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0)      AS sent,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = 'read' THEN 1 ELSE 0 END), 0)      AS ` + "`read`" + `
		FROM messages
		WHERE platform = ?
	`

	var counts StatusCounts
	if err := r.db.GetContext(ctx, &counts, query, platform); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &counts, nil
}
