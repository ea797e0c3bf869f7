// Package queue drains the server-side message queue during background
// execution. The extension gets a short execution window, so a drain is a
// single bounded websocket exchange, not a persistent connection.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/airmsg/core/internal/models"
)

// Envelope wraps all queue protocol messages.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// =====================================================
// Queue Protocol Types
// =====================================================

const (
	// TypeDrain is sent by the client to request queued messages.
	TypeDrain = "queue.drain"
	// TypeMessage carries one queued message from the server.
	TypeMessage = "queue.message"
	// TypeDone ends a drain; no more messages are queued.
	TypeDone = "queue.done"
)

// DrainRequest asks for all messages queued after a sequence number.
type DrainRequest struct {
	After int64 `json:"after"`
}

// QueuedMessage is the payload of a TypeMessage envelope.
type QueuedMessage struct {
	Sequence int64          `json:"sequence"`
	Message  models.Message `json:"message"`
}

// Client drains the user's message queue over websocket.
type Client struct {
	dialer *websocket.Dialer
}

// NewClient creates a queue client.
func NewClient() *Client {
	return &Client{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
	}
}

// Drain connects to endpoint, requests everything queued after the given
// sequence number, and reads until the server signals done or the context
// deadline passes. It returns the messages received, the highest sequence
// seen, and any error. A non-nil error may still come with partial results;
// the pipeline stores whatever arrived.
func (c *Client) Drain(ctx context.Context, endpoint string, after int64) ([]models.Message, int64, error) {
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, after, fmt.Errorf("failed to dial queue endpoint: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	request, err := json.Marshal(DrainRequest{After: after})
	if err != nil {
		return nil, after, err
	}
	err = conn.WriteJSON(Envelope{
		Type:      TypeDrain,
		Data:      request,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return nil, after, fmt.Errorf("failed to send drain request: %w", err)
	}

	var messages []models.Message
	lastSeq := after

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return messages, lastSeq, fmt.Errorf("queue read failed: %w", err)
		}

		switch env.Type {
		case TypeMessage:
			var queued QueuedMessage
			if err := json.Unmarshal(env.Data, &queued); err != nil {
				return messages, lastSeq, fmt.Errorf("malformed queued message: %w", err)
			}
			queued.Message.Sequence = queued.Sequence
			messages = append(messages, queued.Message)
			if queued.Sequence > lastSeq {
				lastSeq = queued.Sequence
			}
		case TypeDone:
			return messages, lastSeq, nil
		default:
			// Unknown envelope types are skipped so the protocol can
			// grow without breaking older extensions.
		}
	}
}
