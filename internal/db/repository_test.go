// Package db tests for repository operations.
package db

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/airmsg/core/internal/models"
)

// seedChat creates a chat and returns it.
func seedChat(t *testing.T, repo *Repository, title string, muted bool) *models.Chat {
	t.Helper()
	chat := &models.Chat{Title: title, Muted: muted}
	if err := repo.CreateChat(chat); err != nil {
		t.Fatalf("CreateChat() failed: %v", err)
	}
	return chat
}

// seedMessage stores a message in a chat and returns it.
func seedMessage(t *testing.T, repo *Repository, chatID models.UUID, body string, seq int64) *models.Message {
	t.Helper()
	msg := &models.Message{
		ID:       models.NewUUID(),
		ChatID:   chatID,
		Sender:   "alice",
		Body:     body,
		Sequence: seq,
		SentAt:   time.Now().Unix(),
	}
	if err := repo.UpsertMessage(msg); err != nil {
		t.Fatalf("UpsertMessage() failed: %v", err)
	}
	return msg
}

// =====================================================
// User Operations
// =====================================================

// TestRepository_defaultUser verifies user creation and default lookup.
func TestRepository_defaultUser(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)
	defer repo.Close()

	if _, err := repo.DefaultUser(); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("DefaultUser() on empty db = %v, want sql.ErrNoRows", err)
	}

	user := &models.User{
		DisplayName:   "alice",
		QueueEndpoint: "wss://queue.example.com/v1",
	}
	if err := repo.CreateUser(user); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if user.ID == "" {
		t.Error("CreateUser() did not assign an ID")
	}

	loaded, err := repo.DefaultUser()
	if err != nil {
		t.Fatalf("DefaultUser() failed: %v", err)
	}
	if loaded.ID != user.ID {
		t.Errorf("DefaultUser().ID = %s, want %s", loaded.ID, user.ID)
	}
	if loaded.QueueEndpoint != user.QueueEndpoint {
		t.Errorf("QueueEndpoint = %q, want %q", loaded.QueueEndpoint, user.QueueEndpoint)
	}

	if err := repo.UpdateUserSequence(user.ID, 42); err != nil {
		t.Fatalf("UpdateUserSequence() failed: %v", err)
	}
	loaded, err = repo.DefaultUser()
	if err != nil {
		t.Fatalf("DefaultUser() failed: %v", err)
	}
	if loaded.LastSequence != 42 {
		t.Errorf("LastSequence = %d, want 42", loaded.LastSequence)
	}
}

// =====================================================
// Message Operations
// =====================================================

// TestRepository_upsertMessage verifies idempotent message storage.
func TestRepository_upsertMessage(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)
	defer repo.Close()

	chat := seedChat(t, repo, "general", false)
	msg := seedMessage(t, repo, chat.ID, "hello", 1)

	// Re-delivery of the same message must not duplicate it.
	if err := repo.UpsertMessage(msg); err != nil {
		t.Fatalf("second UpsertMessage() failed: %v", err)
	}

	count, err := repo.UnreadCount()
	if err != nil {
		t.Fatalf("UnreadCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("UnreadCount() = %d, want 1", count)
	}
}

// TestRepository_unreadCount verifies the badge count includes muted chats.
func TestRepository_unreadCount(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)
	defer repo.Close()

	loud := seedChat(t, repo, "general", false)
	muted := seedChat(t, repo, "noisy", true)

	seedMessage(t, repo, loud.ID, "one", 1)
	seedMessage(t, repo, muted.ID, "two", 2)
	read := seedMessage(t, repo, loud.ID, "three", 3)

	if err := repo.MarkMessageRead(read.ID); err != nil {
		t.Fatalf("MarkMessageRead() failed: %v", err)
	}

	count, err := repo.UnreadCount()
	if err != nil {
		t.Fatalf("UnreadCount() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("UnreadCount() = %d, want 2 (muted chats count toward the badge)", count)
	}
}

// TestRepository_listNotifiable verifies muted chats, read messages, and
// already-notified messages are excluded.
func TestRepository_listNotifiable(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)
	defer repo.Close()

	loud := seedChat(t, repo, "general", false)
	muted := seedChat(t, repo, "noisy", true)

	wanted := seedMessage(t, repo, loud.ID, "notify me", 1)
	seedMessage(t, repo, muted.ID, "muted away", 2)
	read := seedMessage(t, repo, loud.ID, "already read", 3)
	notified := seedMessage(t, repo, loud.ID, "already notified", 4)

	if err := repo.MarkMessageRead(read.ID); err != nil {
		t.Fatalf("MarkMessageRead() failed: %v", err)
	}
	err := repo.RecordPendingNotification(&models.PendingNotification{
		Identifier: notified.ID,
		MessageID:  notified.ID,
	})
	if err != nil {
		t.Fatalf("RecordPendingNotification() failed: %v", err)
	}

	msgs, err := repo.ListNotifiable()
	if err != nil {
		t.Fatalf("ListNotifiable() failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("ListNotifiable() returned %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != wanted.ID {
		t.Errorf("ListNotifiable()[0].ID = %s, want %s", msgs[0].ID, wanted.ID)
	}
}

// =====================================================
// Pending Notification Operations
// =====================================================

// TestRepository_readRemovals verifies the read-since-delivery flow.
func TestRepository_readRemovals(t *testing.T) {
	database := openTestDB(t)
	repo := NewRepository(database.DB)
	defer repo.Close()

	chat := seedChat(t, repo, "general", false)
	msg := seedMessage(t, repo, chat.ID, "hello", 1)

	err := repo.RecordPendingNotification(&models.PendingNotification{
		Identifier: msg.ID,
		MessageID:  msg.ID,
	})
	if err != nil {
		t.Fatalf("RecordPendingNotification() failed: %v", err)
	}

	// Unread message: nothing to remove yet.
	removals, err := repo.ReadRemovals()
	if err != nil {
		t.Fatalf("ReadRemovals() failed: %v", err)
	}
	if len(removals) != 0 {
		t.Errorf("ReadRemovals() = %v, want empty", removals)
	}

	if err := repo.MarkMessageRead(msg.ID); err != nil {
		t.Fatalf("MarkMessageRead() failed: %v", err)
	}

	removals, err = repo.ReadRemovals()
	if err != nil {
		t.Fatalf("ReadRemovals() failed: %v", err)
	}
	if len(removals) != 1 || removals[0] != msg.ID {
		t.Errorf("ReadRemovals() = %v, want [%s]", removals, msg.ID)
	}

	if err := repo.ClearPending(removals); err != nil {
		t.Fatalf("ClearPending() failed: %v", err)
	}
	removals, err = repo.ReadRemovals()
	if err != nil {
		t.Fatalf("ReadRemovals() after clear failed: %v", err)
	}
	if len(removals) != 0 {
		t.Errorf("ReadRemovals() after clear = %v, want empty", removals)
	}
}
