package core

// Transport is the delivery capability the router drives. The transport owns
// room rosters and the physical connections; the core only resolves targets
// and issues delivery calls.
type Transport interface {
	// SendTo delivers an event to a single connection. Delivering to a
	// connection that has already closed is not an error.
	SendTo(connID, event string, payload any) error

	// BroadcastToRoom delivers an event to every connection currently
	// joined to the room, minus any excluded connections.
	BroadcastToRoom(room, event string, payload any, excluding ...string) error

	// JoinRoom enrolls a connection in a named room.
	JoinRoom(connID, room string) error

	// LeaveRoom removes a connection from a named room. Leaving a room the
	// connection is not in is treated as success.
	LeaveRoom(connID, room string) error
}
