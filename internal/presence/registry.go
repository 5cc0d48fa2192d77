// Package presence tracks which users are connected to this process and
// which broadcast groups their connections belong to.
package presence

import "sync"

// Resolver is the read-only view of the registry used by the router and the
// notification gateway.
type Resolver interface {
	TryResolve(userID int) (string, bool)
}

// Registry maps a user to its single live connection. The last registered
// connection wins. State is process-local and starts empty.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int]string
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[int]string)}
}

// Register records or overwrites the connection for userID.
func (r *Registry) Register(userID int, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = connID
}

// Unregister removes the user currently bound to connID. It reports the user
// that was removed, or false when connID was not the live connection of anyone.
func (r *Registry) Unregister(connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, c := range r.byUser {
		if c == connID {
			delete(r.byUser, userID)
			return userID, true
		}
	}
	return 0, false
}

func (r *Registry) TryResolve(userID int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// Online returns the number of users with a live connection.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
