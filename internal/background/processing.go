// Package background implements one background execution: parse the host
// payload, bring up logging, drain the message queue, and report the
// notification batch back to the host.
package background

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/airmsg/core/internal/apperrors"
	"github.com/airmsg/core/internal/db"
	"github.com/airmsg/core/internal/logging"
	"github.com/airmsg/core/internal/models"
	"github.com/airmsg/core/internal/preview"
	"github.com/airmsg/core/internal/queue"
)

// DefaultDrainTimeout bounds the queue drain. The host gives the extension
// roughly 30 seconds; leave headroom for storing and batch building.
const DefaultDrainTimeout = 20 * time.Second

// Fetcher drains the server message queue. Satisfied by *queue.Client;
// tests substitute a stub.
type Fetcher interface {
	Drain(ctx context.Context, endpoint string, after int64) ([]models.Message, int64, error)
}

// Runner executes the background pipeline.
type Runner struct {
	Fetch        Fetcher
	DrainTimeout time.Duration
}

// NewRunner creates a Runner with the production queue client.
func NewRunner() *Runner {
	return &Runner{
		Fetch:        queue.NewClient(),
		DrainTimeout: DefaultDrainTimeout,
	}
}

// Run handles one invocation. It returns an error only when the payload is
// unusable before logging can be brought up; every later failure is logged
// and collapses to the empty batch, so the host never crashes on us.
func (r *Runner) Run(content string) (*models.NotificationBatch, error) {
	var incoming models.IncomingContent
	if err := json.Unmarshal([]byte(content), &incoming); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrParseFailed, "failed to parse incoming payload", err)
	}
	if incoming.Path == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "incoming payload has no database path")
	}

	logging.Init(incoming.LogFilePath)
	logging.Info("background execution started", map[string]interface{}{"path": incoming.Path})

	return r.retrieve(incoming.Path), nil
}

// errorBatch logs the failure and returns the batch that presents nothing.
func errorBatch(message string, err error) *models.NotificationBatch {
	logging.Error(message, err)
	return models.EmptyBatch()
}

// retrieve opens the client database, drains the queue, and builds the batch.
func (r *Runner) retrieve(path string) *models.NotificationBatch {
	database, err := db.Open(path)
	if err != nil {
		return errorBatch("failed to open client database",
			apperrors.Wrap(apperrors.ErrDatabase, path, err))
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		return errorBatch("failed to initialize migrator",
			apperrors.Wrap(apperrors.ErrMigration, path, err))
	}
	if err := migrator.Up(); err != nil {
		return errorBatch("failed to apply migrations",
			apperrors.Wrap(apperrors.ErrMigration, path, err))
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	user, err := repo.DefaultUser()
	if errors.Is(err, sql.ErrNoRows) {
		return errorBatch("user not found",
			apperrors.New(apperrors.ErrUserNotFound, "the database contained no user data"))
	}
	if err != nil {
		return errorBatch("failed to load user",
			apperrors.Wrap(apperrors.ErrDatabase, "users", err))
	}

	r.drain(repo, user)

	batch := models.EmptyBatch()
	r.collectAdditions(repo, batch)
	r.collectRemovals(repo, batch)

	badge, err := repo.UnreadCount()
	if err != nil {
		return errorBatch("failed to count unread messages",
			apperrors.Wrap(apperrors.ErrDatabase, "messages", err))
	}
	batch.BadgeCount = badge

	logging.Info("background execution finished", map[string]interface{}{
		"additions": len(batch.Additions),
		"removals":  len(batch.Removals),
		"badge":     batch.BadgeCount,
	})
	return batch
}

// drain pulls queued messages and stores them. Queue failure is not fatal:
// whatever arrived before the failure still gets notified.
func (r *Runner) drain(repo *db.Repository, user *models.User) {
	timeout := r.DrainTimeout
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	messages, lastSeq, err := r.Fetch.Drain(ctx, user.QueueEndpoint, user.LastSequence)
	if err != nil {
		logging.Warn("queue drain incomplete", map[string]interface{}{
			"error":    err.Error(),
			"received": len(messages),
		})
	}

	for i := range messages {
		if err := repo.UpsertMessage(&messages[i]); err != nil {
			logging.Error("failed to store message",
				apperrors.Wrap(apperrors.ErrDatabase, "messages", err),
				map[string]interface{}{"message_id": messages[i].ID.String()})
		}
	}

	if lastSeq > user.LastSequence {
		if err := repo.UpdateUserSequence(user.ID, lastSeq); err != nil {
			logging.Error("failed to advance queue sequence",
				apperrors.Wrap(apperrors.ErrDatabase, "users", err))
		}
	}
}

// collectAdditions turns unnotified unread messages into notifications and
// records them as pending.
func (r *Runner) collectAdditions(repo *db.Repository, batch *models.NotificationBatch) {
	candidates, err := repo.ListNotifiable()
	if err != nil {
		logging.Error("failed to list notifiable messages",
			apperrors.Wrap(apperrors.ErrDatabase, "messages", err))
		return
	}

	chatTitles := make(map[models.UUID]string)
	for _, msg := range candidates {
		title, ok := chatTitles[msg.ChatID]
		if !ok {
			chat, err := repo.GetChat(msg.ChatID)
			if err != nil {
				logging.Error("failed to load chat for notification",
					apperrors.Wrap(apperrors.ErrDatabase, "chats", err),
					map[string]interface{}{"chat_id": msg.ChatID.String()})
				continue
			}
			title = chat.Title
			chatTitles[msg.ChatID] = title
		}
		if title == "" {
			title = msg.Sender
		}

		pending := &models.PendingNotification{
			Identifier: msg.ID,
			MessageID:  msg.ID,
		}
		if err := repo.RecordPendingNotification(pending); err != nil {
			logging.Error("failed to record pending notification",
				apperrors.Wrap(apperrors.ErrDatabase, "pending_notifications", err),
				map[string]interface{}{"message_id": msg.ID.String()})
			continue
		}

		batch.Additions = append(batch.Additions, models.NotificationContent{
			Identifier: msg.ID,
			ChatID:     msg.ChatID,
			Title:      title,
			Body:       preview.Body(msg.Body),
		})
	}
}

// collectRemovals reports notifications whose messages were read since
// delivery and forgets them.
func (r *Runner) collectRemovals(repo *db.Repository, batch *models.NotificationBatch) {
	removals, err := repo.ReadRemovals()
	if err != nil {
		logging.Error("failed to list read removals",
			apperrors.Wrap(apperrors.ErrDatabase, "pending_notifications", err))
		return
	}
	if len(removals) == 0 {
		return
	}

	if err := repo.ClearPending(removals); err != nil {
		logging.Error("failed to clear pending notifications",
			apperrors.Wrap(apperrors.ErrDatabase, "pending_notifications", err))
	}
	batch.Removals = append(batch.Removals, removals...)
}
