package session_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vttcore/internal/app/broadcast"
	"vttcore/internal/app/broadcast/broadcasttest"
	"vttcore/internal/app/room"
	"vttcore/internal/app/session"
	"vttcore/internal/pkg/errs"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newEngine(t *testing.T) *session.Engine {
	t.Helper()

	ids := []string{"R1", "R2", "R3"}
	next := 0
	store := room.NewStore(room.WithIDGenerator(func() (string, error) {
		id := ids[next%len(ids)]
		next++
		return id, nil
	}))

	return session.NewEngine(store, session.Options{
		MaxMessageBytes: 16,
		Now:             func() time.Time { return fixedNow },
		NewMessageID:    func() string { return "msg-1" },
	})
}

func connect(e *session.Engine, id string) (*session.Session, *broadcasttest.Recorder) {
	rec := broadcasttest.NewRecorder(id)
	return e.Connect(rec), rec
}

func frame(t *testing.T, eventType session.EventType, payload any) []byte {
	t.Helper()

	raw, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	require.NoError(t, err)
	return raw
}

func decode[T any](t *testing.T, f broadcasttest.Frame) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(f.Payload, &out))
	return out
}

func TestSession_JoinUpdateTokenBroadcastsToAllMembers(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)

	// Given a room R1 joined by A and B
	roomID, err := e.CreateRoom()
	req.NoError(err)
	req.Equal("R1", roomID)

	a, recA := connect(e, "A")
	b, recB := connect(e, "B")

	req.NoError(a.Handle(frame(t, session.EventJoinRoom, "R1")))
	frames := recA.Frames()
	req.Len(frames, 1)
	req.Equal(broadcast.KindRoomUpdated, frames[0].Type)
	snap := decode[room.Room](t, frames[0])
	req.Equal("R1", snap.ID)
	req.Empty(snap.Tokens)
	req.Nil(snap.Map)

	req.NoError(b.Handle(frame(t, session.EventJoinRoom, map[string]string{"roomId": "R1"})))
	recA.Reset()
	recB.Reset()

	// When A moves tok1
	req.NoError(a.Handle(frame(t, session.EventUpdateToken, map[string]any{
		"roomId":   "R1",
		"tokenId":  "tok1",
		"position": map[string]float64{"x": 10, "y": 20},
	})))

	// Then both receive tokenUpdated followed by roomUpdated
	for _, rec := range []*broadcasttest.Recorder{recA, recB} {
		req.Equal([]broadcast.Kind{broadcast.KindTokenUpdated, broadcast.KindRoomUpdated}, rec.Kinds())
		frames := rec.Frames()

		upd := decode[session.TokenUpdate](t, frames[0])
		req.Equal(session.TokenUpdate{TokenID: "tok1", Position: room.Position{X: 10, Y: 20}}, upd)

		snap := decode[room.Room](t, frames[1])
		req.Equal([]room.Token{{ID: "tok1", Position: room.Position{X: 10, Y: 20}}}, snap.Tokens)
	}
}

func TestSession_LateJoinerSeesLatestMap(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	a, _ := connect(e, "A")
	req.NoError(a.JoinRoom("R1"))

	// Given two consecutive uploads
	req.NoError(a.MapUpload(session.MapUploadInput{RoomID: "R1", MapURL: "ref1"}))
	req.NoError(a.MapUpload(session.MapUploadInput{RoomID: "R1", MapURL: "ref2"}))

	// When C joins afterwards
	c, recC := connect(e, "C")
	req.NoError(c.JoinRoom("R1"))

	// Then C's snapshot carries the last map only
	frames := recC.Frames()
	req.Len(frames, 1)
	snap := decode[room.Room](t, frames[0])
	req.NotNil(snap.Map)
	req.Equal("ref2", *snap.Map)
}

func TestSession_MapUploadBroadcastsMapThenSnapshot(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	a, recA := connect(e, "A")
	req.NoError(a.JoinRoom("R1"))
	recA.Reset()

	req.NoError(a.Handle(frame(t, session.EventMapUpload, map[string]string{"roomId": "R1", "mapUrl": "data:image/png;base64,AAAA"})))

	req.Equal([]broadcast.Kind{broadcast.KindMapUpdated, broadcast.KindRoomUpdated}, recA.Kinds())
	req.Equal("data:image/png;base64,AAAA", decode[session.MapUpdate](t, recA.Frames()[0]).MapURL)
}

func TestSession_JoinUnknownRoomRecordsNothing(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)

	a, recA := connect(e, "A")

	err := a.Handle(frame(t, session.EventJoinRoom, "NOPE"))
	req.ErrorIs(err, room.ErrRoomNotFound)

	state, roomID := a.State()
	req.Equal(session.StateConnected, state)
	req.Empty(roomID)
	req.Zero(e.MemberCount("NOPE"))

	frames := recA.Frames()
	req.Len(frames, 1)
	req.Equal(broadcast.KindError, frames[0].Type)
	req.Equal(errs.ErrRoomNotFound, decode[errs.CustomError](t, frames[0]).Code)
}

func TestSession_JoinUnknownRoomKeepsCurrentMembership(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	a, _ := connect(e, "A")
	req.NoError(a.JoinRoom("R1"))

	req.ErrorIs(a.JoinRoom("NOPE"), room.ErrRoomNotFound)

	state, roomID := a.State()
	req.Equal(session.StateInRoom, state)
	req.Equal("R1", roomID)
	req.Equal(1, e.MemberCount("R1"))
}

func TestSession_MutationOnUnknownRoomIsDropped(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	a, recA := connect(e, "A")
	req.NoError(a.JoinRoom("R1"))
	recA.Reset()

	// When mutations target a room that was never created
	req.NoError(a.UpdateToken(session.UpdateTokenInput{
		RoomID:   "GHOST",
		TokenID:  "tok1",
		Position: &session.PositionInput{X: ptr(1.0), Y: ptr(2.0)},
	}))
	req.NoError(a.MapUpload(session.MapUploadInput{RoomID: "GHOST", MapURL: "ref"}))
	req.NoError(a.ChatMessage(session.ChatMessageInput{RoomID: "GHOST", Message: "hi", UserID: "u1"}))

	// Then nothing is broadcast and no room materialises
	req.Empty(recA.Frames())
	_, err = e.GetRoom("GHOST")
	req.ErrorIs(err, room.ErrRoomNotFound)
}

func TestSession_SecondJoinReplacesFirst(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	for range 2 {
		_, err := e.CreateRoom()
		req.NoError(err)
	}

	a, recA := connect(e, "A")
	b, _ := connect(e, "B")
	req.NoError(a.JoinRoom("R1"))
	req.NoError(b.JoinRoom("R1"))

	// When A joins R2
	req.NoError(a.JoinRoom("R2"))
	recA.Reset()

	// Then R1 traffic no longer reaches A
	req.NoError(b.MapUpload(session.MapUploadInput{RoomID: "R1", MapURL: "ref"}))
	req.Empty(recA.Frames())

	state, roomID := a.State()
	req.Equal(session.StateInRoom, state)
	req.Equal("R2", roomID)
	req.Equal(1, e.MemberCount("R1"))
	req.Equal(1, e.MemberCount("R2"))
}

func TestSession_LeaveRoomStopsDelivery(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	a, recA := connect(e, "A")
	b, _ := connect(e, "B")
	req.NoError(a.JoinRoom("R1"))
	req.NoError(b.JoinRoom("R1"))

	req.NoError(a.Handle(frame(t, session.EventLeaveRoom, "R1")))
	recA.Reset()

	req.NoError(b.ChatMessage(session.ChatMessageInput{RoomID: "R1", Message: "hello", UserID: "bob"}))
	req.Empty(recA.Frames())

	state, _ := a.State()
	req.Equal(session.StateConnected, state)

	// Leaving a room the connection is not in is a no-op
	req.NoError(a.LeaveRoom("R1"))
}

func TestSession_ChatReachesSenderWithServerStamp(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	a, recA := connect(e, "A")
	b, recB := connect(e, "B")
	req.NoError(a.JoinRoom("R1"))
	req.NoError(b.JoinRoom("R1"))
	recA.Reset()
	recB.Reset()

	req.NoError(a.Handle(frame(t, session.EventChatMessage, map[string]string{"roomId": "R1", "message": "hello", "userId": "alice"})))

	want := session.ChatMessage{ID: "msg-1", RoomID: "R1", UserID: "alice", Message: "hello", Timestamp: fixedNow}
	for _, rec := range []*broadcasttest.Recorder{recA, recB} {
		frames := rec.Frames()
		req.Len(frames, 1)
		req.Equal(broadcast.KindChatMessage, frames[0].Type)
		req.Equal(want, decode[session.ChatMessage](t, frames[0]))
	}

	// Chat is never stored
	snap, err := e.GetRoom("R1")
	req.NoError(err)
	req.Empty(snap.Tokens)
}

func TestSession_RejectsMalformedEvents(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		wantErr  error
		wantCode int
	}{
		{
			name:     "not json",
			raw:      []byte("{not json"),
			wantErr:  session.ErrMalformedEvent,
			wantCode: errs.ErrMalformedEvent,
		},
		{
			name:     "unknown type",
			raw:      []byte(`{"type":"deleteRoom","payload":"R1"}`),
			wantErr:  session.ErrUnknownEvent,
			wantCode: errs.ErrUnsupportedEvent,
		},
		{
			name:     "missing payload",
			raw:      []byte(`{"type":"joinRoom"}`),
			wantErr:  session.ErrMalformedEvent,
			wantCode: errs.ErrMalformedEvent,
		},
		{
			name:     "empty room id",
			raw:      []byte(`{"type":"joinRoom","payload":""}`),
			wantErr:  session.ErrMalformedEvent,
			wantCode: errs.ErrMalformedEvent,
		},
		{
			name:     "token without position",
			raw:      []byte(`{"type":"updateToken","payload":{"roomId":"R1","tokenId":"t"}}`),
			wantErr:  session.ErrMalformedEvent,
			wantCode: errs.ErrMalformedEvent,
		},
		{
			name:     "token missing y",
			raw:      []byte(`{"type":"updateToken","payload":{"roomId":"R1","tokenId":"t","position":{"x":1}}}`),
			wantErr:  session.ErrMalformedEvent,
			wantCode: errs.ErrMalformedEvent,
		},
		{
			name:     "position not numeric",
			raw:      []byte(`{"type":"updateToken","payload":{"roomId":"R1","tokenId":"t","position":{"x":"a","y":1}}}`),
			wantErr:  session.ErrMalformedEvent,
			wantCode: errs.ErrMalformedEvent,
		},
		{
			name:     "map without url",
			raw:      []byte(`{"type":"mapUpload","payload":{"roomId":"R1"}}`),
			wantErr:  session.ErrMalformedEvent,
			wantCode: errs.ErrMalformedEvent,
		},
		{
			name:     "chat without user",
			raw:      []byte(`{"type":"chatMessage","payload":{"roomId":"R1","message":"hi"}}`),
			wantErr:  session.ErrMalformedEvent,
			wantCode: errs.ErrMalformedEvent,
		},
		{
			name:     "chat too long",
			raw:      []byte(`{"type":"chatMessage","payload":{"roomId":"R1","message":"this message is far too long","userId":"u"}}`),
			wantErr:  session.ErrMessageTooLong,
			wantCode: errs.ErrMessageContentTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			e := newEngine(t)
			_, err := e.CreateRoom()
			req.NoError(err)

			a, recA := connect(e, "A")
			b, recB := connect(e, "B")
			req.NoError(b.JoinRoom("R1"))
			recB.Reset()

			err = a.Handle(tt.raw)
			req.ErrorIs(err, tt.wantErr)

			// Only the sender hears about it
			frames := recA.Frames()
			req.Len(frames, 1)
			req.Equal(broadcast.KindError, frames[0].Type)
			req.Equal(tt.wantCode, decode[errs.CustomError](t, frames[0]).Code)
			req.Empty(recB.Frames())

			snap, err := e.GetRoom("R1")
			req.NoError(err)
			req.Empty(snap.Tokens)
			req.Nil(snap.Map)
		})
	}
}

func TestSession_ZeroCoordinatesAreValid(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	a, _ := connect(e, "A")
	req.NoError(a.Handle([]byte(`{"type":"updateToken","payload":{"roomId":"R1","tokenId":"t","position":{"x":0,"y":0}}}`)))

	snap, err := e.GetRoom("R1")
	req.NoError(err)
	req.Equal([]room.Token{{ID: "t", Position: room.Position{}}}, snap.Tokens)
}

func TestSession_MutationsDoNotRequireMembership(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	outsider, recOut := connect(e, "X")
	member, recMember := connect(e, "M")
	req.NoError(member.JoinRoom("R1"))
	recMember.Reset()

	req.NoError(outsider.UpdateToken(session.UpdateTokenInput{
		RoomID:   "R1",
		TokenID:  "tok1",
		Position: &session.PositionInput{X: ptr(3.0), Y: ptr(4.0)},
	}))

	req.Equal([]broadcast.Kind{broadcast.KindTokenUpdated, broadcast.KindRoomUpdated}, recMember.Kinds())
	req.Empty(recOut.Frames())
}

func TestSession_DisconnectIsIdempotent(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	a, recA := connect(e, "A")
	b, _ := connect(e, "B")
	req.NoError(a.JoinRoom("R1"))
	req.NoError(b.JoinRoom("R1"))
	recA.Reset()

	a.Disconnect()
	a.Disconnect()

	state, _ := a.State()
	req.Equal(session.StateDisconnected, state)
	req.Equal(1, e.MemberCount("R1"))

	req.NoError(b.MapUpload(session.MapUploadInput{RoomID: "R1", MapURL: "ref"}))
	req.Empty(recA.Frames())

	req.ErrorIs(a.JoinRoom("R1"), session.ErrSessionClosed)
	req.ErrorIs(a.Handle(frame(t, session.EventMapUpload, map[string]string{"roomId": "R1", "mapUrl": "x"})), session.ErrSessionClosed)
}

func TestSession_SnapshotNotFollowedByStaleEvent(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	_, err := e.CreateRoom()
	req.NoError(err)

	writer, _ := connect(e, "W")
	const moves = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range moves {
			_ = writer.UpdateToken(session.UpdateTokenInput{
				RoomID:   "R1",
				TokenID:  "tok",
				Position: &session.PositionInput{X: ptr(float64(i)), Y: ptr(0.0)},
			})
		}
	}()

	joiner, recJ := connect(e, "J")
	req.NoError(joiner.JoinRoom("R1"))
	wg.Wait()

	// Every tokenUpdated after the snapshot must move forward from the snapshot's position
	frames := recJ.Frames()
	req.NotEmpty(frames)
	req.Equal(broadcast.KindRoomUpdated, frames[0].Type)

	last := -1.0
	if tok, ok := decode[room.Room](t, frames[0]).Token("tok"); ok {
		last = tok.Position.X
	}
	for _, f := range frames[1:] {
		if f.Type != broadcast.KindTokenUpdated {
			continue
		}
		upd := decode[session.TokenUpdate](t, f)
		req.Greater(upd.Position.X, last, fmt.Sprintf("stale update %v after %v", upd.Position.X, last))
		last = upd.Position.X
	}

	snap, err := e.GetRoom("R1")
	req.NoError(err)
	tok, ok := snap.Token("tok")
	req.True(ok)
	req.Equal(float64(moves-1), tok.Position.X)
}

func TestEngine_ShutdownClosesConnections(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)

	_, recA := connect(e, "A")
	_, recB := connect(e, "B")

	e.Shutdown()

	req.True(recA.Closed())
	req.True(recB.Closed())
}

func ptr[T any](v T) *T {
	return &v
}
