/*
Package session implements the per-connection event handler and the engine that owns the room
store, the membership table, and the broadcast router.

Every operation on a room runs under that room's sequencing lock, from the store mutation
through the publish that announces it. Members therefore receive events in the same order the
store applied the mutations, and a joining connection's snapshot is never followed by a stale
incremental event.
*/
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vttcore/internal/app/broadcast"
	"vttcore/internal/app/membership"
	"vttcore/internal/app/room"
	"vttcore/internal/pkg/logx"
	"vttcore/internal/pkg/metrics"
	"vttcore/internal/pkg/randx"
)

// DefaultMaxMessageBytes caps a chat message when Options leaves it unset.
const DefaultMaxMessageBytes = 5000

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	MaxMessageBytes int
	Now             func() time.Time
	NewMessageID    func() string
}

// Engine is the shared state behind every session.
type Engine struct {
	store  *room.Store
	table  *membership.Table
	router *broadcast.Router

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	maxMessageBytes int
	now             func() time.Time
	newMessageID    func() string

	logger zerolog.Logger
}

// NewEngine wires an Engine over store. The membership table and router are created here so
// that nothing outside the engine can mutate membership.
func NewEngine(store *room.Store, opts Options) *Engine {
	table := membership.NewTable()

	e := &Engine{
		store:           store,
		table:           table,
		router:          broadcast.NewRouter(table),
		locks:           make(map[string]*sync.Mutex),
		maxMessageBytes: opts.MaxMessageBytes,
		now:             opts.Now,
		newMessageID:    opts.NewMessageID,
		logger:          logx.Component("Engine"),
	}

	if e.maxMessageBytes <= 0 {
		e.maxMessageBytes = DefaultMaxMessageBytes
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newMessageID == nil {
		e.newMessageID = randx.MessageID
	}

	return e
}

// CreateRoom creates an empty room and returns its id.
func (e *Engine) CreateRoom() (string, error) {
	roomID, err := e.store.CreateRoom()
	if err != nil {
		return "", err
	}

	metrics.RoomsCreated.Inc()
	e.logger.Info().Str("room_id", roomID).Msg("Room created.")
	return roomID, nil
}

// GetRoom returns a snapshot of roomID.
func (e *Engine) GetRoom(roomID string) (room.Room, error) {
	return e.store.GetRoom(roomID)
}

// MemberCount returns the number of connections currently in roomID.
func (e *Engine) MemberCount(roomID string) int {
	return e.table.Count(roomID)
}

// Connect registers sub with the router and returns the session that handles its inbound events.
// The session starts outside any room.
func (e *Engine) Connect(sub broadcast.Subscriber) *Session {
	e.router.Register(sub)
	metrics.ConnectionsActive.Inc()

	s := &Session{
		engine: e,
		connID: sub.ID(),
		state:  StateConnected,
		logger: e.logger.With().Str("conn_id", sub.ID()).Logger(),
	}
	s.logger.Debug().Msg("Session connected.")
	return s
}

// Shutdown closes every live connection. Sessions observe it through their Disconnect path.
func (e *Engine) Shutdown() {
	e.router.CloseAll()
}

// lockRoom acquires roomID's sequencing lock and returns its release func. It returns false
// without locking when the room does not exist, so unknown ids never allocate a lock.
func (e *Engine) lockRoom(roomID string) (func(), bool) {
	if !e.store.Exists(roomID) {
		return nil, false
	}

	e.locksMu.Lock()
	mu, ok := e.locks[roomID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[roomID] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock, true
}
