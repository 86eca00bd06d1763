package core

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/store"
)

// HandlerFunc processes one inbound event for one connection.
type HandlerFunc func(ctx context.Context, connID string, data json.RawMessage)

// Router owns the inbound dispatch table. Each connection's read loop calls
// HandleEvent synchronously, one event at a time, which is what gives
// private messages their per-sender delivery order: a submission runs to
// completion, persistence included, before the next one is read.
//
// All failures are converted at this boundary into a single system notice to
// the initiating connection; they never reach other connections.
type Router struct {
	registry *Registry
	rooms    *RoomAdapter
	ingest   *Ingest
	dispatch *Dispatcher
	log      *zerolog.Logger

	handlers map[string]HandlerFunc
}

// NewRouter wires the presence registry, room adapter, ingest gate and
// dispatcher behind a dispatch table keyed by event name.
func NewRouter(registry *Registry, transport Transport, messages store.MessageStore, logger *zerolog.Logger) *Router {
	r := &Router{
		registry: registry,
		rooms:    NewRoomAdapter(transport, logger),
		ingest:   NewIngest(messages),
		dispatch: NewDispatcher(registry, transport, logger),
		log:      logger,
	}

	r.handlers = map[string]HandlerFunc{
		EventRegisterUser:   r.handleRegisterUser,
		EventJoinRoom:       r.handleJoinRoom,
		EventLeaveRoom:      r.handleLeaveRoom,
		EventGroupMessage:   r.handleGroupMessage,
		EventPrivateMessage: r.handlePrivateMessage,
		EventTypingPrivate:  r.handleTypingPrivate,
	}

	return r
}

// HandleEvent dispatches one inbound event by name. Unknown event names are
// ignored.
func (r *Router) HandleEvent(ctx context.Context, connID, event string, data json.RawMessage) {
	handler, ok := r.handlers[event]
	if !ok {
		r.log.Debug().Str("conn_id", connID).Str("event", event).Msg("unknown event")
		return
	}
	handler(ctx, connID, data)
}

// Register associates a connection with a username, used both by the
// register_user event and by the authenticated websocket handshake.
func (r *Router) Register(connID, username string) error {
	if err := r.registry.Register(connID, username); err != nil {
		return err
	}
	r.log.Debug().Str("conn_id", connID).Str("username", username).Msg("registered user")
	return nil
}

// Disconnect releases the presence entry for a closed connection. Called
// exactly once, synchronously with the close notification, so no stale
// routing window exists. Roster cleanup is the transport's job.
func (r *Router) Disconnect(connID string) {
	if username, ok := r.registry.Deregister(connID); ok {
		r.log.Debug().Str("conn_id", connID).Str("username", username).Msg("deregistered user")
	}
}

func (r *Router) handleRegisterUser(_ context.Context, connID string, data json.RawMessage) {
	var payload RegisterUserPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.systemNotice(connID, "Invalid register_user payload.")
		return
	}

	if err := r.Register(connID, payload.Username); err != nil {
		r.systemNotice(connID, "Username is required.")
	}
}

func (r *Router) handleJoinRoom(_ context.Context, connID string, data json.RawMessage) {
	var payload RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Room == "" || payload.Username == "" {
		r.systemNotice(connID, "Room and username are required.")
		return
	}

	if err := r.rooms.Join(connID, payload.Room, payload.Username); err != nil {
		r.log.Warn().Err(err).Str("conn_id", connID).Str("room", payload.Room).Msg("join failed")
		r.systemNotice(connID, "Could not join room: "+payload.Room)
	}
}

func (r *Router) handleLeaveRoom(_ context.Context, connID string, data json.RawMessage) {
	var payload RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Room == "" || payload.Username == "" {
		r.systemNotice(connID, "Room and username are required.")
		return
	}

	if err := r.rooms.Leave(connID, payload.Room, payload.Username); err != nil {
		r.log.Warn().Err(err).Str("conn_id", connID).Str("room", payload.Room).Msg("leave failed")
		r.systemNotice(connID, "Could not leave room: "+payload.Room)
	}
}

func (r *Router) handleGroupMessage(ctx context.Context, connID string, data json.RawMessage) {
	var payload GroupMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.systemNotice(connID, "Invalid group_message payload.")
		return
	}

	event, err := r.ingest.Group(ctx, payload.FromUser, payload.Room, payload.Message)
	if err != nil {
		if errors.Is(err, ErrMissingField) {
			r.systemNotice(connID, "From user, room and message are required.")
			return
		}
		r.log.Error().Err(err).Str("room", payload.Room).Msg("group message persistence failed")
		r.systemNotice(connID, "Error saving group message.")
		return
	}

	if err := r.dispatch.DeliverGroup(event); err != nil {
		r.log.Warn().Err(err).Str("room", event.Room).Msg("group fan-out failed")
	}
}

func (r *Router) handlePrivateMessage(ctx context.Context, connID string, data json.RawMessage) {
	var payload PrivateMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.systemNotice(connID, "Invalid private_message payload.")
		return
	}

	event, err := r.ingest.Private(ctx, payload.FromUser, payload.ToUser, payload.Message)
	if err != nil {
		if errors.Is(err, ErrMissingField) {
			r.systemNotice(connID, "From user, to user and message are required.")
			return
		}
		r.log.Error().Err(err).Str("to_user", payload.ToUser).Msg("private message persistence failed")
		r.systemNotice(connID, "Error saving private message.")
		return
	}

	if err := r.dispatch.DeliverPrivate(connID, event); err != nil {
		r.log.Warn().Err(err).Str("to_user", event.ToUser).Msg("private fan-out failed")
	}
}

func (r *Router) handleTypingPrivate(_ context.Context, connID string, data json.RawMessage) {
	var signal TypingSignal
	if err := json.Unmarshal(data, &signal); err != nil || signal.FromUser == "" || signal.ToUser == "" {
		r.log.Debug().Str("conn_id", connID).Msg("dropping malformed typing signal")
		return
	}

	r.dispatch.DeliverTyping(signal)
}

func (r *Router) systemNotice(connID, message string) {
	if err := r.dispatch.transport.SendTo(connID, EventSystem, SystemNotice{Message: message}); err != nil {
		r.log.Debug().Err(err).Str("conn_id", connID).Msg("system notice delivery failed")
	}
}
