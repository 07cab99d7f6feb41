package room

import (
	"fmt"
	"sync"
	"time"

	"vttcore/internal/pkg/randx"
)

// maxIDAttempts bounds id regeneration when a generated id collides with an existing room.
const maxIDAttempts = 16

// IDGenerator produces candidate room identifiers.
type IDGenerator func() (string, error)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the default Base62 room id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Store) { s.newID = gen }
}

// WithClock replaces time.Now as the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store maps room ids to room state. Rooms are never removed; they live for the lifetime of the Store.
type Store struct {
	// mu serialises mutations; reads may share it.
	mu    sync.RWMutex
	rooms map[string]*state

	newID IDGenerator
	now   func() time.Time
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		rooms: make(map[string]*state),
		newID: randx.RoomID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom inserts an empty room under a fresh id and returns the id.
// Colliding ids are regenerated.
func (s *Store) CreateRoom() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range maxIDAttempts {
		id, err := s.newID()
		if err != nil {
			return "", err
		}
		if _, exists := s.rooms[id]; exists {
			continue
		}

		s.rooms[id] = newState(id, s.now().UTC())
		return id, nil
	}

	return "", fmt.Errorf("no unique room id after %d attempts", maxIDAttempts)
}

// GetRoom returns a snapshot of the room, or ErrRoomNotFound.
func (s *Store) GetRoom(roomID string) (Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return st.snapshot(), nil
}

// Exists reports whether roomID is in the store.
func (s *Store) Exists(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.rooms[roomID]
	return ok
}

// UpsertToken creates tokenID at pos, or moves it there if it already exists.
// Repeating the same call leaves the room unchanged.
func (s *Store) UpsertToken(roomID, tokenID string, pos Position) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return Token{}, ErrRoomNotFound
	}
	return st.upsert(tokenID, pos), nil
}

// SetMap replaces the room's map reference. Last writer wins; no history is kept.
func (s *Store) SetMap(roomID, mapRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	st.mapRef = &mapRef
	return nil
}

// Len returns the number of rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
