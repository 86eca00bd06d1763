package core

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Dispatcher resolves the target connection set for each event kind and
// issues the delivery calls through the transport.
type Dispatcher struct {
	registry  *Registry
	transport Transport
	log       *zerolog.Logger
}

// NewDispatcher creates a fan-out dispatcher.
func NewDispatcher(registry *Registry, transport Transport, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		transport: transport,
		log:       logger,
	}
}

// DeliverGroup broadcasts a persisted room message to every connection
// joined to the room, sender included.
func (d *Dispatcher) DeliverGroup(event *GroupMessageEvent) error {
	if err := d.transport.BroadcastToRoom(event.Room, EventGroupMessage, event); err != nil {
		return fmt.Errorf("broadcast group message: %w", err)
	}
	return nil
}

// DeliverPrivate sends a persisted private message back to the originating
// connection, then to every live connection of the recipient. A recipient
// with no live connections is a normal no-op; the message is already
// persisted and shows up on the next history fetch.
func (d *Dispatcher) DeliverPrivate(senderConn string, event *PrivateMessageEvent) error {
	if err := d.transport.SendTo(senderConn, EventPrivateMessage, event); err != nil {
		return fmt.Errorf("echo to sender: %w", err)
	}

	for _, connID := range d.registry.Resolve(event.ToUser) {
		if connID == senderConn {
			continue
		}
		if err := d.transport.SendTo(connID, EventPrivateMessage, event); err != nil {
			return fmt.Errorf("deliver to %s: %w", event.ToUser, err)
		}
	}
	return nil
}

// DeliverTyping relays a typing signal to every live connection of the
// target user. No live connections means the signal is dropped silently.
func (d *Dispatcher) DeliverTyping(signal TypingSignal) {
	conns := d.registry.Resolve(signal.ToUser)
	for _, connID := range conns {
		if err := d.transport.SendTo(connID, EventTypingPrivate, signal); err != nil {
			d.log.Debug().Err(err).Str("to_user", signal.ToUser).Msg("typing relay failed")
		}
	}
}
