package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"vttcore/internal/app/broadcast"
	"vttcore/internal/app/room"
	"vttcore/internal/pkg/errs"
	"vttcore/internal/pkg/metrics"
)

// State is a session's position in its lifecycle.
type State int

const (
	// StateConnected means the connection is live but has not joined a room.
	StateConnected State = iota

	// StateInRoom means the connection is a member of exactly one room.
	StateInRoom

	// StateDisconnected is terminal.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session handles the inbound events of one connection.
type Session struct {
	engine *Engine
	connID string

	// mu serialises this connection's events and guards state and roomID.
	mu     sync.Mutex
	state  State
	roomID string

	logger zerolog.Logger
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.connID
}

// State returns the lifecycle state and, when in a room, its id.
func (s *Session) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state, s.roomID
}

// Handle decodes one inbound frame and dispatches it. Rejected events are reported back to this
// connection as an error event; the returned error is for logging only.
func (s *Session) Handle(raw []byte) error {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
		return s.reject("invalid_json", errs.NewError(errs.ErrMalformedEvent, "envelope"),
			fmt.Errorf("%w: envelope: %v", ErrMalformedEvent, err))
	}

	switch in.Type {
	case EventJoinRoom:
		var ref RoomRef
		if err := decodePayload(in.Payload, &ref); err != nil {
			return s.rejectMalformed(in.Type, err)
		}
		return s.JoinRoom(ref.RoomID)

	case EventLeaveRoom:
		var ref RoomRef
		if err := decodePayload(in.Payload, &ref); err != nil {
			return s.rejectMalformed(in.Type, err)
		}
		return s.LeaveRoom(ref.RoomID)

	case EventChatMessage:
		var msg ChatMessageInput
		if err := decodePayload(in.Payload, &msg); err != nil {
			return s.rejectMalformed(in.Type, err)
		}
		return s.ChatMessage(msg)

	case EventUpdateToken:
		var upd UpdateTokenInput
		if err := decodePayload(in.Payload, &upd); err != nil {
			return s.rejectMalformed(in.Type, err)
		}
		return s.UpdateToken(upd)

	case EventMapUpload:
		var upl MapUploadInput
		if err := decodePayload(in.Payload, &upl); err != nil {
			return s.rejectMalformed(in.Type, err)
		}
		return s.MapUpload(upl)

	default:
		return s.reject("unsupported", errs.NewError(errs.ErrUnsupportedEvent, string(in.Type)),
			fmt.Errorf("%w: %q", ErrUnknownEvent, in.Type))
	}
}

// JoinRoom makes the connection a member of roomID and sends it the current snapshot.
// Joining a second room leaves the first. An unknown room is reported to this connection only.
func (s *Session) JoinRoom(roomID string) error {
	if err := validate.Struct(RoomRef{RoomID: roomID}); err != nil {
		return s.rejectMalformed(EventJoinRoom, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return ErrSessionClosed
	}

	e := s.engine

	if !e.store.Exists(roomID) {
		s.logger.Debug().Str("room_id", roomID).Msg("Join rejected, room not found.")
		e.router.SendTo(s.connID, broadcast.KindError, errs.NewError(errs.ErrRoomNotFound))
		return room.ErrRoomNotFound
	}

	if s.state == StateInRoom && s.roomID != roomID {
		s.leaveLocked(s.roomID)
	}

	unlock, ok := e.lockRoom(roomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	defer unlock()

	snapshot, err := e.store.GetRoom(roomID)
	if err != nil {
		return err
	}

	e.table.Join(s.connID, roomID)
	e.router.SendTo(s.connID, broadcast.KindRoomUpdated, snapshot)

	s.state = StateInRoom
	s.roomID = roomID
	s.logger.Info().Str("room_id", roomID).Int("members", e.table.Count(roomID)).Msg("Joined room.")
	return nil
}

// LeaveRoom removes the connection from roomID. Leaving a room the connection is not in is a no-op.
func (s *Session) LeaveRoom(roomID string) error {
	if err := validate.Struct(RoomRef{RoomID: roomID}); err != nil {
		return s.rejectMalformed(EventLeaveRoom, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return ErrSessionClosed
	}

	if s.state == StateInRoom && s.roomID == roomID {
		s.leaveLocked(roomID)
	}
	return nil
}

// ChatMessage stamps msg with an id and server time and broadcasts it to the whole room,
// sender included. Nothing is stored.
func (s *Session) ChatMessage(msg ChatMessageInput) error {
	if err := validate.Struct(msg); err != nil {
		return s.rejectMalformed(EventChatMessage, err)
	}

	e := s.engine
	if len(msg.Message) > e.maxMessageBytes {
		return s.reject("too_long", errs.NewError(errs.ErrMessageContentTooLong, e.maxMessageBytes),
			fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(msg.Message)))
	}

	if s.closed() {
		return ErrSessionClosed
	}

	unlock, ok := e.lockRoom(msg.RoomID)
	if !ok {
		s.dropNotFound(EventChatMessage, msg.RoomID)
		return nil
	}
	defer unlock()

	e.router.Publish(msg.RoomID, broadcast.KindChatMessage, ChatMessage{
		ID:        e.newMessageID(),
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Message:   msg.Message,
		Timestamp: e.now().UTC(),
	})
	return nil
}

// UpdateToken upserts a token position and broadcasts tokenUpdated followed by roomUpdated.
func (s *Session) UpdateToken(upd UpdateTokenInput) error {
	if err := validate.Struct(upd); err != nil {
		return s.rejectMalformed(EventUpdateToken, err)
	}

	if s.closed() {
		return ErrSessionClosed
	}

	e := s.engine
	unlock, ok := e.lockRoom(upd.RoomID)
	if !ok {
		s.dropNotFound(EventUpdateToken, upd.RoomID)
		return nil
	}
	defer unlock()

	token, err := e.store.UpsertToken(upd.RoomID, upd.TokenID, upd.position())
	if err != nil {
		return s.mutationFailed(EventUpdateToken, upd.RoomID, err)
	}

	snapshot, err := e.store.GetRoom(upd.RoomID)
	if err != nil {
		return s.mutationFailed(EventUpdateToken, upd.RoomID, err)
	}

	e.router.Publish(upd.RoomID, broadcast.KindTokenUpdated, TokenUpdate{TokenID: token.ID, Position: token.Position})
	e.router.Publish(upd.RoomID, broadcast.KindRoomUpdated, snapshot)
	return nil
}

// MapUpload replaces the room's map reference and broadcasts mapUpdated followed by roomUpdated.
func (s *Session) MapUpload(upl MapUploadInput) error {
	if err := validate.Struct(upl); err != nil {
		return s.rejectMalformed(EventMapUpload, err)
	}

	if s.closed() {
		return ErrSessionClosed
	}

	e := s.engine
	unlock, ok := e.lockRoom(upl.RoomID)
	if !ok {
		s.dropNotFound(EventMapUpload, upl.RoomID)
		return nil
	}
	defer unlock()

	if err := e.store.SetMap(upl.RoomID, upl.MapURL); err != nil {
		return s.mutationFailed(EventMapUpload, upl.RoomID, err)
	}

	snapshot, err := e.store.GetRoom(upl.RoomID)
	if err != nil {
		return s.mutationFailed(EventMapUpload, upl.RoomID, err)
	}

	e.router.Publish(upl.RoomID, broadcast.KindMapUpdated, MapUpdate{MapURL: upl.MapURL})
	e.router.Publish(upl.RoomID, broadcast.KindRoomUpdated, snapshot)
	return nil
}

// Disconnect removes the connection from its room and from the router. It is idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return
	}

	if s.state == StateInRoom {
		s.leaveLocked(s.roomID)
	}

	s.engine.table.DropConnection(s.connID)
	s.engine.router.Unregister(s.connID)
	s.state = StateDisconnected
	metrics.ConnectionsActive.Dec()
	s.logger.Debug().Msg("Session disconnected.")
}

// leaveLocked drops membership of roomID under the room's sequencing lock. s.mu must be held.
func (s *Session) leaveLocked(roomID string) {
	e := s.engine

	if unlock, ok := e.lockRoom(roomID); ok {
		e.table.Leave(s.connID, roomID)
		unlock()
	} else {
		e.table.Leave(s.connID, roomID)
	}

	s.state = StateConnected
	s.roomID = ""
	s.logger.Info().Str("room_id", roomID).Msg("Left room.")
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == StateDisconnected
}

func (s *Session) dropNotFound(event EventType, roomID string) {
	s.logger.Debug().Str("event", string(event)).Str("room_id", roomID).Msg("Event dropped, room not found.")
}

// mutationFailed handles a store error raised after the existence check. Rooms are never
// deleted, so a not-found here is dropped like any other unknown room.
func (s *Session) mutationFailed(event EventType, roomID string, err error) error {
	if errors.Is(err, room.ErrRoomNotFound) {
		s.dropNotFound(event, roomID)
		return nil
	}
	s.logger.Error().Err(err).Str("event", string(event)).Str("room_id", roomID).Msg("Mutation failed.")
	return err
}

func (s *Session) rejectMalformed(event EventType, cause error) error {
	return s.reject("malformed", errs.NewError(errs.ErrMalformedEvent, string(event)),
		fmt.Errorf("%w: %s: %v", ErrMalformedEvent, event, cause))
}

// reject reports customErr to this connection and returns err.
func (s *Session) reject(reason string, customErr *errs.CustomError, err error) error {
	metrics.InboundRejected.WithLabelValues(reason).Inc()
	s.logger.Debug().Err(err).Str("reason", reason).Msg("Inbound event rejected.")

	if !s.closed() {
		s.engine.router.SendTo(s.connID, broadcast.KindError, customErr)
	}
	return err
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, dst)
}
