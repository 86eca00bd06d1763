package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/parleychat/parley-server/internal/log"
	"github.com/parleychat/parley-server/internal/store"
)

// delivery records one event handed to a single connection.
type delivery struct {
	connID  string
	event   string
	payload any
}

// fakeTransport implements Transport with in-memory rosters and a flat
// record of every per-connection delivery, broadcasts expanded.
type fakeTransport struct {
	mu         sync.Mutex
	rooms      map[string]map[string]struct{}
	deliveries []delivery

	joinErr error
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{rooms: make(map[string]map[string]struct{})}
}

func (t *fakeTransport) SendTo(connID, event string, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.deliveries = append(t.deliveries, delivery{connID: connID, event: event, payload: payload})
	return nil
}

func (t *fakeTransport) BroadcastToRoom(room, event string, payload any, excluding ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	for connID := range t.rooms[room] {
		skip := false
		for _, ex := range excluding {
			if connID == ex {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		t.deliveries = append(t.deliveries, delivery{connID: connID, event: event, payload: payload})
	}
	return nil
}

func (t *fakeTransport) JoinRoom(connID, room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.joinErr != nil {
		return t.joinErr
	}
	roster, ok := t.rooms[room]
	if !ok {
		roster = make(map[string]struct{})
		t.rooms[room] = roster
	}
	roster[connID] = struct{}{}
	return nil
}

func (t *fakeTransport) LeaveRoom(connID, room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms[room], connID)
	return nil
}

func (t *fakeTransport) eventsFor(connID string) []delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []delivery
	for _, d := range t.deliveries {
		if d.connID == connID {
			out = append(out, d)
		}
	}
	return out
}

func (t *fakeTransport) count(connID, event string) int {
	n := 0
	for _, d := range t.eventsFor(connID) {
		if d.event == event {
			n++
		}
	}
	return n
}

// fakeMessageStore implements store.MessageStore in memory with injectable
// write failures.
type fakeMessageStore struct {
	mu      sync.Mutex
	group   []*store.GroupMessage
	private []*store.PrivateMessage
	nextID  int64

	failWrites bool
}

var errStoreDown = errors.New("store unavailable")

func (s *fakeMessageStore) AppendGroupMessage(_ context.Context, msg *store.GroupMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errStoreDown
	}
	s.nextID++
	msg.ID = s.nextID
	s.group = append(s.group, msg)
	return nil
}

func (s *fakeMessageStore) AppendPrivateMessage(_ context.Context, msg *store.PrivateMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errStoreDown
	}
	s.nextID++
	msg.ID = s.nextID
	s.private = append(s.private, msg)
	return nil
}

func (s *fakeMessageStore) RecentGroupMessages(_ context.Context, room string, limit int) ([]*store.GroupMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.GroupMessage
	for _, msg := range s.group {
		if msg.Room == room {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) RecentPrivateMessages(_ context.Context, userA, userB string, limit int) ([]*store.PrivateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.PrivateMessage
	for _, msg := range s.private {
		if (msg.FromUser == userA && msg.ToUser == userB) || (msg.FromUser == userB && msg.ToUser == userA) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func newTestRouter(t *testing.T) (*Router, *Registry, *fakeTransport, *fakeMessageStore) {
	t.Helper()

	registry := NewRegistry()
	transport := newFakeTransport()
	messages := &fakeMessageStore{}
	router := NewRouter(registry, transport, messages, log.Nop())
	return router, registry, transport, messages
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func noticeText(t *testing.T, d delivery) string {
	t.Helper()

	notice, ok := d.payload.(SystemNotice)
	if !ok {
		t.Fatalf("expected SystemNotice payload, got %T", d.payload)
	}
	return notice.Message
}
