package core

import "time"

// Event names are fixed for client compatibility.
const (
	// Inbound.
	EventRegisterUser   = "register_user"
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventGroupMessage   = "group_message"
	EventPrivateMessage = "private_message"
	EventTypingPrivate  = "typing_private"

	// Outbound. group_message, private_message and typing_private are
	// echoed under the same names.
	EventSystem = "system"
)

// RegisterUserPayload introduces the user owning a connection.
type RegisterUserPayload struct {
	Username string `json:"username"`
}

// RoomPayload asks to join or leave a named room.
type RoomPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// GroupMessagePayload is an inbound room message submission.
type GroupMessagePayload struct {
	FromUser string `json:"from_user"`
	Room     string `json:"room"`
	Message  string `json:"message"`
}

// PrivateMessagePayload is an inbound one-to-one message submission.
type PrivateMessagePayload struct {
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	Message  string `json:"message"`
}

// TypingSignal is an ephemeral typing notification. Never persisted.
type TypingSignal struct {
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	IsTyping bool   `json:"isTyping"`
}

// SystemNotice is an informational event for the affected connection(s).
type SystemNotice struct {
	Message string `json:"message"`
}

// GroupMessageEvent is the canonical persisted room message fanned out to
// room members.
type GroupMessageEvent struct {
	ID       int64     `json:"id"`
	FromUser string    `json:"from_user"`
	Room     string    `json:"room"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`
}

// PrivateMessageEvent is the canonical persisted private message delivered
// to the sender and every connection of the recipient.
type PrivateMessageEvent struct {
	ID       int64     `json:"id"`
	FromUser string    `json:"from_user"`
	ToUser   string    `json:"to_user"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`
}
