package models

import "time"

// User represents the device-local account loaded during background execution.
type User struct {
	ID            UUID   `db:"id" json:"id"`
	DisplayName   string `db:"display_name" json:"display_name"`
	QueueEndpoint string `db:"queue_endpoint" json:"queue_endpoint"`
	// LastSequence is the highest server queue sequence number already
	// persisted locally. Draining resumes after it.
	LastSequence int64 `db:"last_sequence" json:"last_sequence"`
	CreatedAt    int64 `db:"created_at" json:"created_at"`
}

// Chat represents a conversation the user participates in.
type Chat struct {
	ID        UUID   `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	Muted     bool   `db:"muted" json:"muted"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// Message represents one chat message row. Body is markdown as authored.
type Message struct {
	ID       UUID   `db:"id" json:"id"`
	ChatID   UUID   `db:"chat_id" json:"chat_id"`
	Sender   string `db:"sender" json:"sender"`
	Body     string `db:"body" json:"body"`
	Sequence int64  `db:"sequence" json:"sequence"`
	SentAt   int64  `db:"sent_at" json:"sent_at"`
	Read     bool   `db:"read" json:"read"`
	Fetched  bool   `db:"fetched" json:"fetched"`
}

// SentAtTime returns SentAt as time.Time.
func (m *Message) SentAtTime() time.Time {
	return time.Unix(m.SentAt, 0)
}

// PendingNotification records a notification the host has presented for a
// message, so it can be removed once the message is read elsewhere.
type PendingNotification struct {
	Identifier  UUID  `db:"identifier" json:"identifier"`
	MessageID   UUID  `db:"message_id" json:"message_id"`
	DeliveredAt int64 `db:"delivered_at" json:"delivered_at"`
}
