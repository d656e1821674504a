// Package memory keeps per-course conversation history with a bounded
// recall window.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narau/narau/internal/models"
	"github.com/narau/narau/internal/storage"
)

// Memory records question and answer turns and serves the recent window
// used as generation context. Storage keeps every turn; only reads are
// capped at the window.
type Memory struct {
	store  storage.ConversationStore
	window int
}

// New creates a Memory with the given recall window.
func New(store storage.ConversationStore, window int) *Memory {
	if window <= 0 {
		window = 10
	}
	return &Memory{store: store, window: window}
}

// Append records a completed turn. The message ID and timestamp are
// assigned here so callers never hand-build messages.
func (m *Memory) Append(ctx context.Context, course, userID, query, response string) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.New().String(),
		Course:    course,
		UserID:    userID,
		UserQuery: query,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History returns up to the window's worth of most recent turns for a
// course and user, oldest first, ready to replay into a chat prompt.
func (m *Memory) History(ctx context.Context, course, userID string) ([]*models.Message, error) {
	msgs, err := m.store.LastMessages(ctx, course, userID, m.window)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	// LastMessages returns newest first; reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Messages returns a user's full conversation for a course in insertion order.
func (m *Memory) Messages(ctx context.Context, course, userID string) ([]*models.Message, error) {
	return m.store.Messages(ctx, course, userID)
}

// SetReaction records a user reaction on a message.
func (m *Memory) SetReaction(ctx context.Context, messageID string, reaction int) error {
	return m.store.SetReaction(ctx, messageID, reaction)
}
