package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const outboundBuffer = 32

type client struct {
	id  string
	out chan outFrame
}

// Transport implements core.Transport over live websocket connections. It
// owns the connection table and the room rosters; writes to a connection are
// serialized through its outbound channel and drained by that connection's
// write loop.
type Transport struct {
	mu    sync.RWMutex
	conns map[string]*client
	rooms map[string]map[string]struct{}
	log   *zerolog.Logger
}

// NewTransport creates an empty websocket transport.
func NewTransport(logger *zerolog.Logger) *Transport {
	return &Transport{
		conns: make(map[string]*client),
		rooms: make(map[string]map[string]struct{}),
		log:   logger,
	}
}

// SendTo queues an event for a single connection. A connection that has
// already closed resolves to zero deliveries, not an error.
func (t *Transport) SendTo(connID, event string, payload any) error {
	t.mu.RLock()
	cl := t.conns[connID]
	t.mu.RUnlock()

	if cl == nil {
		return nil
	}
	t.enqueue(cl, outFrame{Event: event, Data: payload})
	return nil
}

// BroadcastToRoom queues an event for every connection joined to the room,
// minus exclusions.
func (t *Transport) BroadcastToRoom(room, event string, payload any, excluding ...string) error {
	frame := outFrame{Event: event, Data: payload}

	t.mu.RLock()
	targets := make([]*client, 0, len(t.rooms[room]))
	for connID := range t.rooms[room] {
		if excluded(connID, excluding) {
			continue
		}
		if cl := t.conns[connID]; cl != nil {
			targets = append(targets, cl)
		}
	}
	t.mu.RUnlock()

	for _, cl := range targets {
		t.enqueue(cl, frame)
	}
	return nil
}

// JoinRoom enrolls a connection in a room roster.
func (t *Transport) JoinRoom(connID, room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.conns[connID]; !ok {
		return fmt.Errorf("unknown connection %s", connID)
	}

	roster, ok := t.rooms[room]
	if !ok {
		roster = make(map[string]struct{})
		t.rooms[room] = roster
	}
	roster[connID] = struct{}{}
	return nil
}

// LeaveRoom removes a connection from a room roster. Leaving a room the
// connection is not in is success.
func (t *Transport) LeaveRoom(connID, room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.leaveLocked(connID, room)
	return nil
}

// RoomMembers returns a snapshot of the connections joined to a room.
func (t *Transport) RoomMembers(room string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := make([]string, 0, len(t.rooms[room]))
	for connID := range t.rooms[room] {
		members = append(members, connID)
	}
	return members
}

// addClient registers a new live connection and returns its outbound queue.
func (t *Transport) addClient(connID string) *client {
	cl := &client{
		id:  connID,
		out: make(chan outFrame, outboundBuffer),
	}

	t.mu.Lock()
	t.conns[connID] = cl
	t.mu.Unlock()

	return cl
}

// removeClient drops a connection and clears it from every room roster. The
// outbound channel is left open; the write loop exits via its context and
// any queued frames are discarded with it.
func (t *Transport) removeClient(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.conns, connID)
	for room := range t.rooms {
		t.leaveLocked(connID, room)
	}
}

func (t *Transport) leaveLocked(connID, room string) {
	roster, ok := t.rooms[room]
	if !ok {
		return
	}
	delete(roster, connID)
	if len(roster) == 0 {
		delete(t.rooms, room)
	}
}

func (t *Transport) enqueue(cl *client, frame outFrame) {
	select {
	case cl.out <- frame:
	default:
		// Drop if slow consumer.
		t.log.Warn().Str("conn_id", cl.id).Str("event", frame.Event).Msg("outbound queue full, dropping event")
	}
}

func excluded(connID string, excluding []string) bool {
	for _, ex := range excluding {
		if connID == ex {
			return true
		}
	}
	return false
}
