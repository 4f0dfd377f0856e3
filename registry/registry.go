// Package registry is the shared presence table: which connections each user
// currently has open, and the outbound delivery channel for each connection.
// It is the only shared mutable state in the relay core.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/chat-relay/event"
	"github.com/onnwee/chat-relay/telemetry"
)

// Registry maps user id -> open connection ids (multi-device) and connection
// id -> outbound channel. Both maps sit behind one mutex; every operation is
// an O(1)/O(n-connections) map mutation and never performs I/O or a channel
// send while holding the lock. A lookup miss is the normal outcome of racing
// with a disconnect, not an error.
type Registry struct {
	mu    sync.Mutex
	users map[uint64][]uuid.UUID
	conns map[uuid.UUID]chan<- event.Message
}

func New() *Registry {
	return &Registry{
		users: make(map[uint64][]uuid.UUID),
		conns: make(map[uuid.UUID]chan<- event.Message),
	}
}

// InsertUserConnection appends connID to uid's connection set, creating the
// set if absent. A connection id is registered at most once per user.
func (r *Registry) InsertUserConnection(uid uint64, connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.users[uid] {
		if id == connID {
			return
		}
	}
	r.users[uid] = append(r.users[uid], connID)
}

// RemoveUserConnection removes connID from uid's set. An emptied set is left
// in place; lookups on it behave the same as "no connections".
func (r *Registry) RemoveUserConnection(uid uint64, connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.users[uid]
	for i, id := range ids {
		if id == connID {
			r.users[uid] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// InsertConnectionChannel registers the outbound channel for a connection and
// updates the open-connections gauge. The registry only ever hands out the
// send side; the owning connection keeps the receive side.
func (r *Registry) InsertConnectionChannel(connID uuid.UUID, ch chan<- event.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = ch
	if telemetry.ConnectionsOpen != nil {
		telemetry.ConnectionsOpen.Set(float64(len(r.conns)))
	}
}

// RemoveConnectionChannel drops the outbound channel for a connection.
func (r *Registry) RemoveConnectionChannel(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
	if telemetry.ConnectionsOpen != nil {
		telemetry.ConnectionsOpen.Set(float64(len(r.conns)))
	}
}

// ConnectionsFor returns a copy of uid's open connection ids, or ok=false
// when the user has none.
func (r *Registry) ConnectionsFor(uid uint64) ([]uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.users[uid]
	if len(ids) == 0 {
		return nil, false
	}
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out, true
}

// ChannelFor returns the outbound channel for a connection, or ok=false when
// the connection has already deregistered.
func (r *Registry) ChannelFor(connID uuid.UUID) (chan<- event.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.conns[connID]
	return ch, ok
}
