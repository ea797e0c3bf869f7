// Package db provides database schema migration management.
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents one applied schema migration.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// migration is a built-in schema step. Migrations ship compiled into the
// binary; an extension bundle cannot carry loose SQL files.
type migration struct {
	version     int
	description string
	statements  []string
}

// migrations is the ordered schema ladder. Append only; never edit an
// entry that has shipped.
var migrations = []migration{
	{
		version:     1,
		description: "users, chats, messages",
		statements: []string{
			`CREATE TABLE users (
				id TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				queue_endpoint TEXT NOT NULL,
				last_sequence INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL
			);`,
			`CREATE TABLE chats (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				muted INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL
			);`,
			`CREATE TABLE messages (
				id TEXT PRIMARY KEY,
				chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
				sender TEXT NOT NULL,
				body TEXT NOT NULL,
				sequence INTEGER NOT NULL DEFAULT 0,
				sent_at INTEGER NOT NULL,
				read INTEGER NOT NULL DEFAULT 0,
				fetched INTEGER NOT NULL DEFAULT 0
			);`,
			`CREATE INDEX idx_messages_chat ON messages(chat_id);`,
			`CREATE INDEX idx_messages_read ON messages(read);`,
		},
	},
	{
		version:     2,
		description: "pending notifications",
		statements: []string{
			`CREATE TABLE pending_notifications (
				identifier TEXT PRIMARY KEY,
				message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				delivered_at INTEGER NOT NULL
			);`,
			`CREATE INDEX idx_pending_message ON pending_notifications(message_id);`,
		},
	},
}

// Migrator applies the built-in schema ladder.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations in order, each in its own transaction.
func (m *Migrator) Up() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", mig.version, mig.description, err)
		}
	}
	return nil
}

func (m *Migrator) apply(mig migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range mig.statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	_, err = tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
		mig.version, time.Now().Unix(), mig.description,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// AppliedMigrations returns all applied migrations, oldest first.
func (m *Migrator) AppliedMigrations() ([]Migration, error) {
	rows, err := m.db.Query(
		"SELECT version, applied_at, description FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []Migration
	for rows.Next() {
		var mig Migration
		var appliedAt int64
		if err := rows.Scan(&mig.Version, &appliedAt, &mig.Description); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(appliedAt, 0)
		applied = append(applied, mig)
	}
	return applied, rows.Err()
}
