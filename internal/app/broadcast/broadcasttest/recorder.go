// Package broadcasttest provides an in-memory broadcast.Subscriber for tests.
package broadcasttest

import (
	"encoding/json"
	"sync"

	"vttcore/internal/app/broadcast"
)

// Frame is a decoded outbound frame whose payload is kept raw for per-test decoding.
type Frame struct {
	Type    broadcast.Kind  `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Recorder records every frame delivered to it.
type Recorder struct {
	id string

	mu       sync.Mutex
	frames   []Frame
	capacity int
	closed   bool
}

// NewRecorder returns a Recorder with unlimited capacity.
func NewRecorder(id string) *Recorder {
	return &Recorder{id: id, capacity: -1}
}

// NewBoundedRecorder returns a Recorder that refuses frames once it holds capacity of them.
func NewBoundedRecorder(id string, capacity int) *Recorder {
	return &Recorder{id: id, capacity: capacity}
}

// ID implements broadcast.Subscriber.
func (r *Recorder) ID() string { return r.id }

// Deliver implements broadcast.Subscriber.
func (r *Recorder) Deliver(frame []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || (r.capacity >= 0 && len(r.frames) >= r.capacity) {
		return false
	}

	var f Frame
	if err := json.Unmarshal(frame, &f); err != nil {
		return false
	}
	r.frames = append(r.frames, f)
	return true
}

// Close implements broadcast.Subscriber.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Frames returns a copy of the recorded frames.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Kinds returns the type of every recorded frame in order.
func (r *Recorder) Kinds() []broadcast.Kind {
	frames := r.Frames()
	kinds := make([]broadcast.Kind, len(frames))
	for i, f := range frames {
		kinds[i] = f.Type
	}
	return kinds
}

// Reset discards recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}
