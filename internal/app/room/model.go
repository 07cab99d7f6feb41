/*
Package room owns the in-memory room registry: rooms, their background map reference, and their tokens.

The store knows nothing about connections. Callers receive value snapshots; no reference into a
room's token set escapes the store.
*/
package room

import (
	"errors"
	"time"
)

// ErrRoomNotFound is returned when a room id is absent from the store.
var ErrRoomNotFound = errors.New("room not found")

// Position is a 2-D coordinate on the room's map.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Token is a positioned marker. Its id is client supplied and unique within its room.
type Token struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
}

// Room is a point-in-time snapshot of a room's state.
type Room struct {
	ID string `json:"id"`

	// Map is the current background image reference, nil until the first upload.
	Map *string `json:"map"`

	// Tokens are listed in creation order.
	Tokens []Token `json:"tokens"`

	CreatedAt time.Time `json:"createdAt"`
}

// Token returns the token with the given id from the snapshot.
func (r Room) Token(id string) (Token, bool) {
	for _, t := range r.Tokens {
		if t.ID == id {
			return t, true
		}
	}
	return Token{}, false
}

// state is the mutable record behind a Room. It is only touched with Store.mu held.
type state struct {
	id        string
	mapRef    *string
	tokens    []Token
	index     map[string]int
	createdAt time.Time
}

func newState(id string, createdAt time.Time) *state {
	return &state{
		id:        id,
		tokens:    []Token{},
		index:     make(map[string]int),
		createdAt: createdAt,
	}
}

// upsert creates the token at pos or moves the existing one, and returns the stored value.
func (s *state) upsert(tokenID string, pos Position) Token {
	if i, ok := s.index[tokenID]; ok {
		s.tokens[i].Position = pos
		return s.tokens[i]
	}

	t := Token{ID: tokenID, Position: pos}
	s.index[tokenID] = len(s.tokens)
	s.tokens = append(s.tokens, t)
	return t
}

func (s *state) snapshot() Room {
	r := Room{
		ID:        s.id,
		Tokens:    make([]Token, len(s.tokens)),
		CreatedAt: s.createdAt,
	}
	copy(r.Tokens, s.tokens)

	if s.mapRef != nil {
		m := *s.mapRef
		r.Map = &m
	}
	return r
}
