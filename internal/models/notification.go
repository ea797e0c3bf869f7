package models

// IncomingContent is the payload handed to the core by the host extension
// when new messages are waiting. Both paths point into the app group
// container shared with the main application.
type IncomingContent struct {
	// Path is the directory holding the client database.
	Path string `json:"path"`
	// LogFilePath is where background log records should be written.
	LogFilePath string `json:"log_file_path"`
}

// NotificationContent describes one notification the host should present.
type NotificationContent struct {
	// Identifier doubles as the host-side notification identifier, so a
	// later batch can remove it by the same value.
	Identifier UUID   `json:"identifier"`
	ChatID     UUID   `json:"chat_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

// NotificationBatch is the result of one background execution: notifications
// to add, previously delivered ones to remove, and the new app badge count.
type NotificationBatch struct {
	BadgeCount int                   `json:"badge_count"`
	Removals   []UUID                `json:"removals"`
	Additions  []NotificationContent `json:"additions"`
}

// EmptyBatch returns a batch that presents nothing and clears nothing.
// It is the value returned to the host on any internal failure.
func EmptyBatch() *NotificationBatch {
	return &NotificationBatch{
		Removals:  []UUID{},
		Additions: []NotificationContent{},
	}
}
