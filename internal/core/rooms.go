package core

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RoomAdapter forwards join/leave intents to the transport and emits the
// membership system notices. Room rosters themselves live in the transport.
type RoomAdapter struct {
	transport Transport
	log       *zerolog.Logger
}

// NewRoomAdapter creates a room membership adapter.
func NewRoomAdapter(transport Transport, logger *zerolog.Logger) *RoomAdapter {
	return &RoomAdapter{transport: transport, log: logger}
}

// Join enrolls the connection in the room, notifies the joiner, then the
// other members. The joiner's own notice is sent before the room broadcast
// so it can never trail the joiner's subsequent messages.
func (a *RoomAdapter) Join(connID, room, username string) error {
	if err := a.transport.JoinRoom(connID, room); err != nil {
		return fmt.Errorf("join room %q: %w", room, err)
	}

	if err := a.transport.SendTo(connID, EventSystem, SystemNotice{
		Message: "Joined room: " + room,
	}); err != nil {
		return fmt.Errorf("notify joiner: %w", err)
	}

	if err := a.transport.BroadcastToRoom(room, EventSystem, SystemNotice{
		Message: username + " joined " + room,
	}, connID); err != nil {
		return fmt.Errorf("notify members: %w", err)
	}

	a.log.Debug().Str("conn_id", connID).Str("room", room).Str("username", username).Msg("joined room")
	return nil
}

// Leave removes the connection from the room and notifies both sides.
// Leaving a room the connection never joined is treated as success.
func (a *RoomAdapter) Leave(connID, room, username string) error {
	if err := a.transport.LeaveRoom(connID, room); err != nil {
		return fmt.Errorf("leave room %q: %w", room, err)
	}

	if err := a.transport.SendTo(connID, EventSystem, SystemNotice{
		Message: "Left room: " + room,
	}); err != nil {
		return fmt.Errorf("notify leaver: %w", err)
	}

	if err := a.transport.BroadcastToRoom(room, EventSystem, SystemNotice{
		Message: username + " left " + room,
	}, connID); err != nil {
		return fmt.Errorf("notify members: %w", err)
	}

	a.log.Debug().Str("conn_id", connID).Str("room", room).Str("username", username).Msg("left room")
	return nil
}
