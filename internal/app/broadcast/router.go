/*
Package broadcast delivers outbound events to the connections that are members of a room.

Publishing is fire-and-forget: the router encodes the event once, hands the frame to each
member's subscriber without waiting, and never reports per-connection failures. A subscriber
that cannot accept a frame is responsible for tearing its connection down; membership cleanup
then happens on the disconnect path.
*/
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"vttcore/internal/pkg/logx"
	"vttcore/internal/pkg/metrics"
)

// Kind names an outbound event.
type Kind string

const (
	// KindRoomUpdated carries a full room snapshot.
	KindRoomUpdated Kind = "roomUpdated"

	// KindChatMessage carries a single chat message.
	KindChatMessage Kind = "chatMessage"

	// KindTokenUpdated carries one token's id and new position.
	KindTokenUpdated Kind = "tokenUpdated"

	// KindMapUpdated carries the new map reference.
	KindMapUpdated Kind = "mapUpdated"

	// KindError reports a rejected inbound event to the connection that sent it.
	KindError Kind = "error"
)

// Envelope is the JSON frame written to a connection.
type Envelope struct {
	Type    Kind `json:"type"`
	Payload any  `json:"payload"`
}

// Subscriber is the router's handle on one live connection.
type Subscriber interface {
	// ID returns the connection id used in the membership table.
	ID() string

	// Deliver queues an encoded frame. It must not block and reports whether the frame was accepted.
	Deliver(frame []byte) bool

	// Close tears the connection down.
	Close()
}

// Members resolves the connections currently in a room.
type Members interface {
	MembersOf(roomID string) []string
}

// Router fans events out to room members. It references the membership table but never mutates it.
type Router struct {
	members Members

	// subsMu guards subs.
	subsMu sync.RWMutex
	subs   map[string]Subscriber

	// sendMu serialises every delivery so that each connection sees frames in publish order.
	sendMu sync.Mutex

	logger zerolog.Logger
}

// NewRouter creates a Router that resolves fan-out targets through members.
func NewRouter(members Members) *Router {
	return &Router{
		members: members,
		subs:    make(map[string]Subscriber),
		logger:  logx.Component("Router"),
	}
}

// Register makes sub reachable by its connection id.
func (r *Router) Register(sub Subscriber) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	r.subs[sub.ID()] = sub
}

// Unregister forgets the subscriber for connID. Later deliveries to it are skipped.
func (r *Router) Unregister(connID string) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	delete(r.subs, connID)
}

// Publish delivers (kind, payload) to every connection in roomID's membership at the moment of the call.
func (r *Router) Publish(roomID string, kind Kind, payload any) {
	frame, ok := r.encode(kind, payload)
	if !ok {
		return
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	targets := r.members.MembersOf(roomID)
	for _, connID := range targets {
		r.deliverLocked(connID, kind, frame)
	}

	metrics.EventsPublished.WithLabelValues(string(kind)).Inc()
	r.logger.Debug().
		Str("room_id", roomID).
		Str("kind", string(kind)).
		Int("targets", len(targets)).
		Msg("Event published")
}

// SendTo delivers (kind, payload) to a single connection, regardless of its membership.
func (r *Router) SendTo(connID string, kind Kind, payload any) {
	frame, ok := r.encode(kind, payload)
	if !ok {
		return
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	r.deliverLocked(connID, kind, frame)
	metrics.EventsPublished.WithLabelValues(string(kind)).Inc()
}

// CloseAll closes and forgets every registered subscriber.
func (r *Router) CloseAll() {
	r.subsMu.Lock()
	subs := r.subs
	r.subs = make(map[string]Subscriber)
	r.subsMu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	r.logger.Info().Int("closed", len(subs)).Msg("All subscribers closed.")
}

func (r *Router) encode(kind Kind, payload any) ([]byte, bool) {
	frame, err := json.Marshal(Envelope{Type: kind, Payload: payload})
	if err != nil {
		r.logger.Error().Err(err).Str("kind", string(kind)).Msg("Error marshaling event.")
		return nil, false
	}
	return frame, true
}

// deliverLocked hands frame to connID's subscriber. r.sendMu must be held.
func (r *Router) deliverLocked(connID string, kind Kind, frame []byte) {
	r.subsMu.RLock()
	sub, ok := r.subs[connID]
	r.subsMu.RUnlock()

	if ok && sub.Deliver(frame) {
		return
	}

	metrics.DeliveriesDropped.Inc()
	r.logger.Warn().
		Str("conn_id", connID).
		Str("kind", string(kind)).
		Bool("registered", ok).
		Msg("Delivery dropped.")
}
