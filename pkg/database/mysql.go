package database

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"unichat-relay/environments"
	"unichat-relay/pkg/logger"
)

func NewMySQLDB(cfg environments.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
	)

	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infof("Connected to MySQL database")
	return db, nil
}

// RunMigrations creates the unified messages table. Sent and received rows
// for both platforms share it; the composite primary key is the idempotency
// guard for webhook redeliveries, so duplicate inserts fail at the database
// rather than via a racy check-then-insert.
func RunMigrations(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		platform VARCHAR(16) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		id VARCHAR(128) NOT NULL,
		peer VARCHAR(64) NULL,
		kind VARCHAR(16) NOT NULL,
		body TEXT NULL,
		media_url VARCHAR(255) NULL,
		filename VARCHAR(255) NULL,
		remote_media_id VARCHAR(128) NULL,
		contact_name VARCHAR(128) NULL,
		contact_phone VARCHAR(64) NULL,
		status VARCHAR(16) NOT NULL,
		timestamp BIGINT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (platform, direction, id),
		INDEX idx_messages_timestamp (timestamp),
		INDEX idx_messages_media_url (media_url)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Infof("Database migrations completed")

	return nil
}
