/*
Package membership tracks which live connections observe which room.

A connection belongs to at most one room: joining a second room replaces the first membership.
A room has any number of connections.
*/
package membership

import (
	"sync"

	"github.com/samber/lo"
)

// Table is the connection-to-room index. It is safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	byConn map[string]string
	byRoom map[string]map[string]struct{}
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		byConn: make(map[string]string),
		byRoom: make(map[string]map[string]struct{}),
	}
}

// Join makes connID a member of roomID. If connID was in another room it is removed from it first,
// and that room's id is returned as previous.
func (t *Table) Join(connID, roomID string) (previous string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.byConn[connID]; ok {
		if current == roomID {
			return ""
		}
		t.removeLocked(connID, current)
		previous = current
	}

	members, ok := t.byRoom[roomID]
	if !ok {
		members = make(map[string]struct{})
		t.byRoom[roomID] = members
	}
	members[connID] = struct{}{}
	t.byConn[connID] = roomID

	return previous
}

// Leave removes connID from roomID. It reports whether a membership was removed.
func (t *Table) Leave(connID, roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.byConn[connID]; !ok || current != roomID {
		return false
	}
	t.removeLocked(connID, roomID)
	return true
}

// DropConnection removes every membership of connID and returns the room it was in, if any.
func (t *Table) DropConnection(connID string) (roomID string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	roomID, ok = t.byConn[connID]
	if ok {
		t.removeLocked(connID, roomID)
	}
	return roomID, ok
}

// MembersOf returns the connections currently in roomID, in no particular order.
func (t *Table) MembersOf(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return lo.Keys(t.byRoom[roomID])
}

// RoomOf returns the room connID currently belongs to.
func (t *Table) RoomOf(connID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roomID, ok := t.byConn[connID]
	return roomID, ok
}

// Count returns the number of connections in roomID.
func (t *Table) Count(roomID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.byRoom[roomID])
}

// removeLocked deletes the (connID, roomID) entry. t.mu must be held for writing.
func (t *Table) removeLocked(connID, roomID string) {
	delete(t.byConn, connID)

	members := t.byRoom[roomID]
	delete(members, connID)
	if len(members) == 0 {
		delete(t.byRoom, roomID)
	}
}
