package server

import (
	"sync"

	"github.com/google/uuid"
)

// Sender is the write side of a registered connection. Implementations must
// be safe for concurrent use; *Client synchronizes writes internally.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Registry maps routing keys to the set of currently live connections.
// Channel routes and user routes are independent namespaces: one connection
// may appear in both (a channel session also receives cross-channel
// signaling addressed to its user). One Registry instance is constructed per
// process and threaded into the Dispatcher and the session handlers.
type Registry struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]map[Sender]struct{}
	users    map[uuid.UUID]map[Sender]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[uuid.UUID]map[Sender]struct{}),
		users:    make(map[uuid.UUID]map[Sender]struct{}),
	}
}

// RegisterChannel adds conn to the channel route. Registering the same
// handle twice is idempotent; a broadcast delivers to it once.
func (r *Registry) RegisterChannel(channelID uuid.UUID, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	register(r.channels, channelID, conn)
}

// UnregisterChannel removes conn from the channel route. The key entry is
// deleted when its set becomes empty.
func (r *Registry) UnregisterChannel(channelID uuid.UUID, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	unregister(r.channels, channelID, conn)
}

// RegisterUser adds conn to the user route. Multiple devices of the same
// user each contribute their own entry.
func (r *Registry) RegisterUser(userID uuid.UUID, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	register(r.users, userID, conn)
}

// UnregisterUser removes conn from the user route.
func (r *Registry) UnregisterUser(userID uuid.UUID, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	unregister(r.users, userID, conn)
}

// SnapshotChannel returns the current subscribers of a channel route. The
// slice is a stable copy; concurrent register/unregister never races with
// iteration over it. No ordering is guaranteed.
func (r *Registry) SnapshotChannel(channelID uuid.UUID) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.channels, channelID)
}

// SnapshotUser returns the current subscribers of a user route.
func (r *Registry) SnapshotUser(userID uuid.UUID) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.users, userID)
}

// Drop removes conn from every route in both namespaces. Called when a
// session terminates, and by the Dispatcher when a write fails (a dead
// transport is treated as an implicit disconnect).
func (r *Registry) Drop(conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.channels {
		unregister(r.channels, key, conn)
	}
	for key := range r.users {
		unregister(r.users, key, conn)
	}
}

// All returns every currently registered connection exactly once. Used for
// shutdown.
func (r *Registry) All() []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Sender]struct{})
	for _, set := range r.channels {
		for conn := range set {
			seen[conn] = struct{}{}
		}
	}
	for _, set := range r.users {
		for conn := range set {
			seen[conn] = struct{}{}
		}
	}

	conns := make([]Sender, 0, len(seen))
	for conn := range seen {
		conns = append(conns, conn)
	}
	return conns
}

func register(routes map[uuid.UUID]map[Sender]struct{}, key uuid.UUID, conn Sender) {
	set, ok := routes[key]
	if !ok {
		set = make(map[Sender]struct{})
		routes[key] = set
	}
	set[conn] = struct{}{}
}

func unregister(routes map[uuid.UUID]map[Sender]struct{}, key uuid.UUID, conn Sender) {
	set, ok := routes[key]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(routes, key)
	}
}

func snapshot(routes map[uuid.UUID]map[Sender]struct{}, key uuid.UUID) []Sender {
	set, ok := routes[key]
	if !ok {
		return nil
	}
	conns := make([]Sender, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}
