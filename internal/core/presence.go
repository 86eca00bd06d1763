package core

import (
	"strings"
	"sync"
)

// Registry tracks which live connections belong to which username. A user
// may hold several connections at once (multiple tabs/devices); a connection
// belongs to at most one user. A username is present iff its connection set
// is non-empty.
//
// All methods are safe for concurrent use. A single RWMutex guards both maps:
// resolves proceed concurrently, while register/deregister mutate both
// directions of the mapping atomically.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{}
	byConn map[string]string
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

// Register associates a connection with a username. If the connection was
// previously registered to a different user, that association is removed
// first. Registering the same pair again is a no-op. A blank username is
// rejected with ErrEmptyUsername.
func (r *Registry) Register(connID, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[connID]; ok {
		if prev == username {
			return nil
		}
		r.removeLocked(connID, prev)
	}

	set, ok := r.byUser[username]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[username] = set
	}
	set[connID] = struct{}{}
	r.byConn[connID] = username

	return nil
}

// Deregister removes a connection from its user's set, deleting the user
// entry when the set empties. It reports the username the connection was
// registered to, if any. Deregistering an unknown connection is a no-op.
func (r *Registry) Deregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	r.removeLocked(connID, username)
	return username, true
}

// Resolve returns the live connection set for a username, possibly empty.
func (r *Registry) Resolve(username string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[username]
	conns := make([]string, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
	}
	return conns
}

// Owner returns the username a connection is registered to.
func (r *Registry) Owner(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byConn[connID]
	return username, ok
}

// Usernames enumerates every user with at least one live connection.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byUser))
	for username := range r.byUser {
		names = append(names, username)
	}
	return names
}

func (r *Registry) removeLocked(connID, username string) {
	delete(r.byConn, connID)
	if set, ok := r.byUser[username]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byUser, username)
		}
	}
}
