// Package db provides repository operations for the client data models.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/airmsg/core/internal/models"
)

// Repository provides the queries the background pipeline needs.
type Repository struct {
	db *sql.DB

	// Prepared statement cache; statements are prepared on first use.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// User Operations
// =====================================================

// CreateUser creates the device-local user record.
func (r *Repository) CreateUser(user *models.User) error {
	if user.ID == "" {
		user.ID = models.NewUUID()
	}
	user.CreatedAt = time.Now().Unix()

	query := `
	INSERT INTO users (id, display_name, queue_endpoint, last_sequence, created_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, user.ID, user.DisplayName, user.QueueEndpoint,
		user.LastSequence, user.CreatedAt)
	return err
}

// DefaultUser loads the default (oldest) user, the one the extension acts
// for. Returns sql.ErrNoRows when the database holds no user.
func (r *Repository) DefaultUser() (*models.User, error) {
	query := `
	SELECT id, display_name, queue_endpoint, last_sequence, created_at
	FROM users ORDER BY created_at, id LIMIT 1
	`
	var user models.User
	err := r.db.QueryRow(query).Scan(&user.ID, &user.DisplayName,
		&user.QueueEndpoint, &user.LastSequence, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserSequence persists the highest queue sequence drained so far.
func (r *Repository) UpdateUserSequence(id models.UUID, sequence int64) error {
	_, err := r.db.Exec("UPDATE users SET last_sequence = ? WHERE id = ?", sequence, id)
	return err
}

// =====================================================
// Chat Operations
// =====================================================

// CreateChat creates a chat row.
func (r *Repository) CreateChat(chat *models.Chat) error {
	if chat.ID == "" {
		chat.ID = models.NewUUID()
	}
	chat.CreatedAt = time.Now().Unix()

	query := `INSERT INTO chats (id, title, muted, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.Exec(query, chat.ID, chat.Title, chat.Muted, chat.CreatedAt)
	return err
}

// GetChat retrieves a chat by ID.
func (r *Repository) GetChat(id models.UUID) (*models.Chat, error) {
	query := `SELECT id, title, muted, created_at FROM chats WHERE id = ?`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var chat models.Chat
	err = stmt.QueryRow(id).Scan(&chat.ID, &chat.Title, &chat.Muted, &chat.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// SetChatMuted flips a chat's muted flag.
func (r *Repository) SetChatMuted(id models.UUID, muted bool) error {
	_, err := r.db.Exec("UPDATE chats SET muted = ? WHERE id = ?", muted, id)
	return err
}

// =====================================================
// Message Operations
// =====================================================

// UpsertMessage stores a message drained from the server queue. Re-delivered
// messages (same id) are ignored, so draining is idempotent.
func (r *Repository) UpsertMessage(msg *models.Message) error {
	query := `
	INSERT INTO messages (id, chat_id, sender, body, sequence, sent_at, read, fetched)
	VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	ON CONFLICT(id) DO NOTHING
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(msg.ID, msg.ChatID, msg.Sender, msg.Body,
		msg.Sequence, msg.SentAt, msg.Read)
	return err
}

// MarkMessageRead marks a message as read.
func (r *Repository) MarkMessageRead(id models.UUID) error {
	_, err := r.db.Exec("UPDATE messages SET read = 1 WHERE id = ?", id)
	return err
}

// UnreadCount returns the number of unread messages across all chats.
// This is the app badge value; muted chats still count.
func (r *Repository) UnreadCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM messages WHERE read = 0").Scan(&count)
	return count, err
}

// ListNotifiable returns unread messages in non-muted chats that have no
// pending notification yet, oldest first.
func (r *Repository) ListNotifiable() ([]models.Message, error) {
	query := `
	SELECT m.id, m.chat_id, m.sender, m.body, m.sequence, m.sent_at, m.read, m.fetched
	FROM messages m
	INNER JOIN chats c ON c.id = m.chat_id
	WHERE m.read = 0
	  AND c.muted = 0
	  AND NOT EXISTS (
		SELECT 1 FROM pending_notifications p WHERE p.message_id = m.id
	  )
	ORDER BY m.sent_at, m.sequence
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Sender, &msg.Body,
			&msg.Sequence, &msg.SentAt, &msg.Read, &msg.Fetched)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// =====================================================
// Pending Notification Operations
// =====================================================

// RecordPendingNotification remembers that a notification was handed to the
// host for a message.
func (r *Repository) RecordPendingNotification(p *models.PendingNotification) error {
	if p.DeliveredAt == 0 {
		p.DeliveredAt = time.Now().Unix()
	}
	query := `
	INSERT INTO pending_notifications (identifier, message_id, delivered_at)
	VALUES (?, ?, ?)
	ON CONFLICT(identifier) DO NOTHING
	`
	_, err := r.db.Exec(query, p.Identifier, p.MessageID, p.DeliveredAt)
	return err
}

// ReadRemovals returns identifiers of pending notifications whose messages
// have been read since delivery. The host should remove these.
func (r *Repository) ReadRemovals() ([]models.UUID, error) {
	query := `
	SELECT p.identifier
	FROM pending_notifications p
	INNER JOIN messages m ON m.id = p.message_id
	WHERE m.read = 1
	ORDER BY p.delivered_at
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identifiers []models.UUID
	for rows.Next() {
		var id models.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		identifiers = append(identifiers, id)
	}
	return identifiers, rows.Err()
}

// ClearPending deletes pending notification records by identifier.
func (r *Repository) ClearPending(identifiers []models.UUID) error {
	if len(identifiers) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(identifiers))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf("DELETE FROM pending_notifications WHERE identifier IN (%s)", placeholders)

	args := make([]interface{}, len(identifiers))
	for i, id := range identifiers {
		args[i] = id
	}
	_, err := r.db.Exec(query, args...)
	return err
}
