// Package sessionstore implements the concurrent mapping from session
// name to in-memory session, with insert/lookup/remove and a global
// shutdown that tears down every session it holds.
package sessionstore

import (
	"sync"

	"github.com/shareterm/coordinatord/internal/session"
)

// Store is a concurrent map from session name to the one live Session on
// this node. Grounded on the teacher's PeerDirectory (internal/relay/peers.go)
// RWMutex-map-of-pointers discipline.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*session.Session)}
}

// Lookup returns the local session for name, if any.
func (st *Store) Lookup(name string) (*session.Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[name]
	return s, ok
}

// Insert atomically replaces any prior local entry for name, triggering
// its shutdown first so two live copies can never coexist on one node.
func (st *Store) Insert(name string, s *session.Session) {
	st.mu.Lock()
	prev, existed := st.sessions[name]
	st.sessions[name] = s
	st.mu.Unlock()
	if existed {
		prev.Shutdown.Trigger()
	}
}

// Remove deletes name if present and triggers its shutdown. Reports
// whether an entry was present.
func (st *Store) Remove(name string) bool {
	st.mu.Lock()
	s, ok := st.sessions[name]
	if ok {
		delete(st.sessions, name)
	}
	st.mu.Unlock()
	if ok {
		s.Shutdown.Trigger()
	}
	return ok
}

// Each calls fn for every locally held session, under the read lock.
// Used by the eviction loop; fn must not block or mutate the store.
func (st *Store) Each(fn func(name string, s *session.Session)) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for name, s := range st.sessions {
		fn(name, s)
	}
}

// Shutdown triggers every held session's shutdown signal, used on
// process termination.
func (st *Store) Shutdown() {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, s := range st.sessions {
		s.Shutdown.Trigger()
	}
}
