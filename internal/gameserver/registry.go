// Package gameserver provides the session coordinator: it routes inbound
// client messages to the matchmaker and game sessions, drives bot turns,
// and fans out state broadcasts through the connection registry.
package gameserver

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// defaultOutboxBuffer is the per-connection outbound queue depth.
const defaultOutboxBuffer = 64

// Outbox is a player's outbound message queue, bridging game logic to the
// transport's write pump. Push never blocks: a closed or full outbox returns
// an error instead.
type Outbox struct {
	playerID string
	messages chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewOutbox creates an Outbox for the given player.
//
// Precondition: playerID must be non-empty.
func NewOutbox(playerID string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = defaultOutboxBuffer
	}
	return &Outbox{
		playerID: playerID,
		messages: make(chan []byte, bufferSize),
	}
}

// PlayerID returns the owning player's identifier.
func (o *Outbox) PlayerID() string {
	return o.playerID
}

// Push enqueues payload for delivery.
//
// Postcondition: payload is queued, or an error is returned when the outbox
// is closed or its buffer is full.
func (o *Outbox) Push(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox for %s is closed", o.playerID)
	}
	select {
	case o.messages <- payload:
		return nil
	default:
		return fmt.Errorf("outbox for %s is full", o.playerID)
	}
}

// Messages returns the read-only delivery channel. The transport's write
// pump drains it; the channel is closed when the outbox closes.
func (o *Outbox) Messages() <-chan []byte {
	return o.messages
}

// Close shuts the outbox. Safe to call more than once.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.messages)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Registry maps player identifiers to their outboxes. It is purely a
// delivery mechanism, independent of game membership: sends to unregistered
// players are silently dropped, and one recipient's failure never blocks
// another.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	outboxes map[string]*Outbox
}

// NewRegistry creates an empty connection registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		outboxes: make(map[string]*Outbox),
	}
}

// Register creates and returns an outbox for playerID. A previous outbox for
// the same player is closed and replaced.
func (r *Registry) Register(playerID string) *Outbox {
	out := NewOutbox(playerID, defaultOutboxBuffer)

	r.mu.Lock()
	if old, ok := r.outboxes[playerID]; ok {
		old.Close()
	}
	r.outboxes[playerID] = out
	r.mu.Unlock()

	return out
}

// Unregister removes and closes playerID's outbox. Removing an unknown
// player is a no-op.
func (r *Registry) Unregister(playerID string) {
	r.mu.Lock()
	out, ok := r.outboxes[playerID]
	if ok {
		delete(r.outboxes, playerID)
	}
	r.mu.Unlock()

	if ok {
		out.Close()
	}
}

// Send delivers payload to a single player. Delivery failure is logged and
// swallowed; it never reaches game logic.
func (r *Registry) Send(playerID string, payload []byte) {
	r.mu.RLock()
	out, ok := r.outboxes[playerID]
	r.mu.RUnlock()

	if !ok {
		return
	}
	if err := out.Push(payload); err != nil {
		r.logger.Warn("dropping outbound message",
			zap.String("player_id", playerID),
			zap.Error(err),
		)
	}
}

// Broadcast delivers payload to each listed player, best-effort per
// recipient.
func (r *Registry) Broadcast(playerIDs []string, payload []byte) {
	for _, id := range playerIDs {
		r.Send(id, payload)
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outboxes)
}
