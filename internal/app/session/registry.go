package session

import (
	"crypto/subtle"
	"sync"
	"time"
)

type Registry struct {
	mu       sync.RWMutex
	secret   []byte
	sessions map[string]*Session
	order    []string
}

// NewRegistry returns a Registry that grants privilege to joins presenting
// adminKey. An empty adminKey disables privileged sessions entirely.
func NewRegistry(adminKey string) *Registry {
	return &Registry{
		secret:   []byte(adminKey),
		sessions: make(map[string]*Session),
	}
}

// Register stores the session for connID and reports whether it is privileged.
// Re-registering an existing connection replaces its entry in place.
func (r *Registry) Register(connID, displayName, token string) bool {
	privileged := r.checkToken(token)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.sessions[connID] = &Session{
		ConnectionID: connID,
		DisplayName:  displayName,
		IsPrivileged: privileged,
		JoinedAt:     time.Now().UTC(),
	}
	return privileged
}

func (r *Registry) checkToken(token string) bool {
	if len(r.secret) == 0 || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), r.secret) == 1
}

func (r *Registry) Unregister(connID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return "", ErrNotFound
	}
	delete(r.sessions, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return s.DisplayName, nil
}

func (r *Registry) IsPrivileged(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	return ok && s.IsPrivileged
}

func (r *Registry) Lookup(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ActiveNames lists display names in registration order. Names may repeat.
func (r *Registry) ActiveNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.sessions[id].DisplayName)
	}
	return names
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
