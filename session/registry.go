package session

import (
	"sync"

	"github.com/ilievs/pinhub/core"
)

// Registry maps users to their sessions. Sessions are created on first
// use and kept when their last connection goes away.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.UserKey]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.UserKey]*Session)}
}

func (r *Registry) Get(key core.UserKey) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

func (r *Registry) GetOrCreate(key core.UserKey) *Session {
	if s, ok := r.Get(key); ok {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := newSession(key)
	r.sessions[key] = s
	return s
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
