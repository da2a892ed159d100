package bridge

import (
	"github.com/omochice/lirc-bridge/pkg/lirc"
	"github.com/omochice/lirc-bridge/pkg/protocol"
)

// Source publishes lircd notifications. *client.Client satisfies it.
type Source interface {
	OnConnected(fn func())
	OnKeyPressed(fn func(ev lirc.KeyPressEvent))
	OnCommandCompleted(fn func(cmd *lirc.Command))
	OnError(fn func(msg string, err error))
}

// Forward broadcasts every notification of src on hub.
func Forward(src Source, hub *Hub) {
	src.OnConnected(func() {
		hub.Broadcast(&protocol.Event{Type: protocol.EventTypeConnected})
	})
	src.OnKeyPressed(func(ev lirc.KeyPressEvent) {
		hub.Broadcast(KeyEvent(ev))
	})
	src.OnCommandCompleted(func(cmd *lirc.Command) {
		hub.Broadcast(CommandEvent(cmd))
	})
	src.OnError(func(msg string, err error) {
		hub.Broadcast(&protocol.Event{Type: protocol.EventTypeError, Message: msg})
	})
}

// KeyEvent converts a key notification to a bridge event.
func KeyEvent(ev lirc.KeyPressEvent) *protocol.Event {
	return &protocol.Event{
		Type:   protocol.EventTypeKey,
		Code:   ev.Code,
		Index:  ev.Index,
		Key:    ev.Key,
		Remote: ev.Remote,
	}
}

// CommandEvent converts a reply block to a bridge event.
func CommandEvent(cmd *lirc.Command) *protocol.Event {
	return &protocol.Event{
		Type:      protocol.EventTypeCommand,
		Command:   cmd.Line,
		Succeeded: cmd.Succeeded,
		Data:      append([]string(nil), cmd.Data...),
	}
}
