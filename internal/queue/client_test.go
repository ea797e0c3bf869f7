// Package queue tests for the drain client.
package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/airmsg/core/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// queueServer runs a fake queue endpoint driven by handle.
func queueServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// mustEnvelope marshals data into an envelope of the given type.
func mustEnvelope(t *testing.T, envType string, data interface{}) Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %T: %v", data, err)
	}
	return Envelope{Type: envType, Data: raw, Timestamp: time.Now().Unix()}
}

// TestClient_drain verifies a full drain exchange.
func TestClient_drain(t *testing.T) {
	chatID := models.NewUUID()
	endpoint := queueServer(t, func(conn *websocket.Conn) {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Errorf("server read failed: %v", err)
			return
		}
		if env.Type != TypeDrain {
			t.Errorf("first envelope type = %q, want %q", env.Type, TypeDrain)
		}
		var req DrainRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			t.Errorf("malformed drain request: %v", err)
		}
		if req.After != 7 {
			t.Errorf("DrainRequest.After = %d, want 7", req.After)
		}

		for i, body := range []string{"first", "second"} {
			queued := QueuedMessage{
				Sequence: int64(8 + i),
				Message: models.Message{
					ID:     models.NewUUID(),
					ChatID: chatID,
					Sender: "alice",
					Body:   body,
					SentAt: time.Now().Unix(),
				},
			}
			if err := conn.WriteJSON(mustEnvelope(t, TypeMessage, queued)); err != nil {
				t.Errorf("server write failed: %v", err)
				return
			}
		}
		conn.WriteJSON(Envelope{Type: TypeDone, Timestamp: time.Now().Unix()})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, lastSeq, err := NewClient().Drain(ctx, endpoint, 7)
	if err != nil {
		t.Fatalf("Drain() failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Drain() returned %d messages, want 2", len(messages))
	}
	if messages[0].Body != "first" || messages[1].Body != "second" {
		t.Errorf("messages out of order: %q, %q", messages[0].Body, messages[1].Body)
	}
	if messages[1].Sequence != 9 {
		t.Errorf("Sequence = %d, want 9", messages[1].Sequence)
	}
	if lastSeq != 9 {
		t.Errorf("lastSeq = %d, want 9", lastSeq)
	}
}

// TestClient_drainEmpty verifies an immediate done is a valid empty drain.
func TestClient_drainEmpty(t *testing.T) {
	endpoint := queueServer(t, func(conn *websocket.Conn) {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		conn.WriteJSON(Envelope{Type: TypeDone, Timestamp: time.Now().Unix()})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, lastSeq, err := NewClient().Drain(ctx, endpoint, 3)
	if err != nil {
		t.Fatalf("Drain() failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Drain() returned %d messages, want 0", len(messages))
	}
	if lastSeq != 3 {
		t.Errorf("lastSeq = %d, want 3 (unchanged)", lastSeq)
	}
}

// TestClient_drainSkipsUnknownTypes verifies forward compatibility.
func TestClient_drainSkipsUnknownTypes(t *testing.T) {
	endpoint := queueServer(t, func(conn *websocket.Conn) {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		conn.WriteJSON(Envelope{Type: "queue.stats", Timestamp: time.Now().Unix()})
		queued := QueuedMessage{
			Sequence: 1,
			Message:  models.Message{ID: models.NewUUID(), ChatID: models.NewUUID(), Body: "hi"},
		}
		conn.WriteJSON(mustEnvelope(t, TypeMessage, queued))
		conn.WriteJSON(Envelope{Type: TypeDone, Timestamp: time.Now().Unix()})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, _, err := NewClient().Drain(ctx, endpoint, 0)
	if err != nil {
		t.Fatalf("Drain() failed: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("Drain() returned %d messages, want 1", len(messages))
	}
}

// TestClient_drainPartial verifies a dropped connection still yields the
// messages received before the failure.
func TestClient_drainPartial(t *testing.T) {
	endpoint := queueServer(t, func(conn *websocket.Conn) {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		queued := QueuedMessage{
			Sequence: 5,
			Message:  models.Message{ID: models.NewUUID(), ChatID: models.NewUUID(), Body: "partial"},
		}
		conn.WriteJSON(mustEnvelope(t, TypeMessage, queued))
		// Drop without sending done.
		conn.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, lastSeq, err := NewClient().Drain(ctx, endpoint, 0)
	if err == nil {
		t.Fatal("Drain() on dropped connection should return an error")
	}
	if len(messages) != 1 {
		t.Errorf("Drain() kept %d partial messages, want 1", len(messages))
	}
	if lastSeq != 5 {
		t.Errorf("lastSeq = %d, want 5", lastSeq)
	}
}

// TestClient_drainUnreachable verifies dial failure is reported.
func TestClient_drainUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, err := NewClient().Drain(ctx, "ws://127.0.0.1:1/queue", 0)
	if err == nil {
		t.Fatal("Drain() against unreachable endpoint should fail")
	}
}
