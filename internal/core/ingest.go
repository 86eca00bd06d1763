package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parleychat/parley-server/internal/store"
)

// Ingest validates chat submissions, persists them, and produces the
// canonical event to distribute. Nothing is broadcast unless the write
// succeeded; a failed write must never reach recipients.
type Ingest struct {
	messages store.MessageStore
	now      func() time.Time
}

// NewIngest creates a message ingest gate over the storage collaborator.
func NewIngest(messages store.MessageStore) *Ingest {
	return &Ingest{
		messages: messages,
		now:      time.Now,
	}
}

// Group validates and persists a room message submission.
func (g *Ingest) Group(ctx context.Context, fromUser, room, body string) (*GroupMessageEvent, error) {
	fromUser = strings.TrimSpace(fromUser)
	room = strings.TrimSpace(room)
	body = strings.TrimSpace(body)
	if fromUser == "" || room == "" || body == "" {
		return nil, ErrMissingField
	}

	msg := &store.GroupMessage{
		FromUser: fromUser,
		Room:     room,
		Body:     body,
		SentAt:   g.now(),
	}
	if err := g.messages.AppendGroupMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append group message: %w", err)
	}

	return &GroupMessageEvent{
		ID:       msg.ID,
		FromUser: msg.FromUser,
		Room:     msg.Room,
		Message:  msg.Body,
		DateSent: msg.SentAt,
	}, nil
}

// Private validates and persists a one-to-one message submission.
func (g *Ingest) Private(ctx context.Context, fromUser, toUser, body string) (*PrivateMessageEvent, error) {
	fromUser = strings.TrimSpace(fromUser)
	toUser = strings.TrimSpace(toUser)
	body = strings.TrimSpace(body)
	if fromUser == "" || toUser == "" || body == "" {
		return nil, ErrMissingField
	}

	msg := &store.PrivateMessage{
		FromUser: fromUser,
		ToUser:   toUser,
		Body:     body,
		SentAt:   g.now(),
	}
	if err := g.messages.AppendPrivateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append private message: %w", err)
	}

	return &PrivateMessageEvent{
		ID:       msg.ID,
		FromUser: msg.FromUser,
		ToUser:   msg.ToUser,
		Message:  msg.Body,
		DateSent: msg.SentAt,
	}, nil
}
