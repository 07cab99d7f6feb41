package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"vttcore/internal/app/room"
)

var (
	// ErrMalformedEvent is returned when an inbound payload is missing required fields or cannot be decoded.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnknownEvent is returned for an inbound event type the session does not handle.
	ErrUnknownEvent = errors.New("unsupported event")

	// ErrMessageTooLong is returned when a chat message exceeds the configured size.
	ErrMessageTooLong = errors.New("chat message too long")

	// ErrSessionClosed is returned for events received after Disconnect.
	ErrSessionClosed = errors.New("session closed")
)

var validate = validator.New()

// EventType names an inbound socket event.
type EventType string

const (
	EventJoinRoom    EventType = "joinRoom"
	EventLeaveRoom   EventType = "leaveRoom"
	EventChatMessage EventType = "chatMessage"
	EventUpdateToken EventType = "updateToken"
	EventMapUpload   EventType = "mapUpload"
)

// Inbound is the envelope of every frame a client sends.
type Inbound struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RoomRef names a room. It decodes from either a bare JSON string or {"roomId": "..."}.
type RoomRef struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RoomRef) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.RoomID)
	}

	var obj struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.RoomID = obj.RoomID
	return nil
}

// ChatMessageInput is the chatMessage payload.
type ChatMessageInput struct {
	RoomID  string `json:"roomId" validate:"required,max=64"`
	Message string `json:"message" validate:"required"`
	UserID  string `json:"userId" validate:"required,max=128"`
}

// PositionInput is a client-supplied coordinate pair. Both axes are required; zero is a valid value.
type PositionInput struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// UpdateTokenInput is the updateToken payload.
type UpdateTokenInput struct {
	RoomID   string         `json:"roomId" validate:"required,max=64"`
	TokenID  string         `json:"tokenId" validate:"required,max=128"`
	Position *PositionInput `json:"position" validate:"required"`
}

func (in UpdateTokenInput) position() room.Position {
	return room.Position{X: *in.Position.X, Y: *in.Position.Y}
}

// MapUploadInput is the mapUpload payload. MapURL is an opaque reference passed through unmodified.
type MapUploadInput struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
	MapURL string `json:"mapUrl" validate:"required"`
}

// ChatMessage is broadcast once to a room and never stored.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TokenUpdate is the incremental tokenUpdated payload.
type TokenUpdate struct {
	TokenID  string        `json:"tokenId"`
	Position room.Position `json:"position"`
}

// MapUpdate is the incremental mapUpdated payload.
type MapUpdate struct {
	MapURL string `json:"mapUrl"`
}
