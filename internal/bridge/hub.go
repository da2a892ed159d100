// Package bridge republishes lircd events to WebSocket subscribers.
package bridge

import (
	"sync"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omochice/lirc-bridge/pkg/protocol"
)

// Format selects how events are framed for one subscriber.
type Format int

const (
	// FormatBinary sends protobuf in binary frames.
	FormatBinary Format = iota
	// FormatJSON sends protojson in text frames.
	FormatJSON
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

func (f Format) opCode() ws.OpCode {
	if f == FormatJSON {
		return ws.OpText
	}
	return ws.OpBinary
}

// Subscriber is one connected bridge client.
type Subscriber struct {
	ID       uuid.UUID
	Format   Format
	Outgoing chan []byte
}

// NewSubscriber returns a Subscriber with a fresh id and a queue of size
// buffer.
func NewSubscriber(format Format, buffer int) *Subscriber {
	return &Subscriber{
		ID:       uuid.New(),
		Format:   format,
		Outgoing: make(chan []byte, buffer),
	}
}

// Hub tracks subscribers and broadcasts events to them.
type Hub struct {
	subscribers map[*Subscriber]bool
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		logger:      logger,
	}
}

// Register adds a subscriber to the hub.
func (h *Hub) Register(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = true
	h.logger.Info("subscriber registered", zap.Stringer("id", sub.ID), zap.Stringer("format", sub.Format))
}

// Unregister removes a subscriber and closes its queue. Unregistering a
// subscriber twice is a no-op.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.subscribers[sub] {
		return
	}
	delete(h.subscribers, sub)
	close(sub.Outgoing)
	h.logger.Info("subscriber unregistered", zap.Stringer("id", sub.ID))
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast encodes ev once per format in use and queues it for every
// subscriber. A subscriber whose queue is full misses the event.
func (h *Hub) Broadcast(ev *protocol.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	encoded := make(map[Format][]byte, 2)
	for sub := range h.subscribers {
		data, ok := encoded[sub.Format]
		if !ok {
			var err error
			if sub.Format == FormatJSON {
				data, err = ev.EncodeJSON()
			} else {
				data, err = ev.Encode()
			}
			if err != nil {
				h.logger.Error("failed to encode event", zap.Stringer("type", ev.Type), zap.Error(err))
				return
			}
			encoded[sub.Format] = data
		}

		select {
		case sub.Outgoing <- data:
		default:
			h.logger.Warn("subscriber queue full, dropping event", zap.Stringer("id", sub.ID), zap.Stringer("type", ev.Type))
		}
	}
}
