package session

import "fmt"

// UserHandle is returned by UserScope; Release removes the user and
// broadcasts its departure. Callers must defer Release for the
// lifetime of the viewer connection.
type UserHandle struct {
	session *Session
	id      Uid
}

// Release removes the user and broadcasts UserDiff(id, nil).
func (h *UserHandle) Release() {
	h.session.usersMu.Lock()
	delete(h.session.users, h.id)
	h.session.usersMu.Unlock()
	h.session.publish(UserDiff{Uid: h.id, User: nil})
}

// UserScope registers a new user with the default display name and
// broadcasts its arrival. Fails if id is already present.
func (s *Session) UserScope(id Uid, canWrite bool) (*UserHandle, error) {
	s.usersMu.Lock()
	if _, exists := s.users[id]; exists {
		s.usersMu.Unlock()
		return nil, ErrUserExists
	}
	u := &UserState{Name: fmt.Sprintf("User %d", id), CanWrite: canWrite}
	s.users[id] = u
	snapshot := *u
	s.usersMu.Unlock()

	s.publish(UserDiff{Uid: id, User: &snapshot})
	return &UserHandle{session: s, id: id}, nil
}

// UpdateUser applies mutate under the users write lock, then broadcasts
// the resulting state.
func (s *Session) UpdateUser(id Uid, mutate func(*UserState)) error {
	s.usersMu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.usersMu.Unlock()
		return ErrUserNotFound
	}
	mutate(u)
	snapshot := *u
	s.usersMu.Unlock()

	s.publish(UserDiff{Uid: id, User: &snapshot})
	return nil
}

// CheckWritePermission fails if the user is absent or lacks CanWrite.
func (s *Session) CheckWritePermission(id Uid) error {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if !u.CanWrite {
		return ErrWritePermission
	}
	return nil
}

// SendChat resolves the user's current name and broadcasts Hear(id, name, text).
func (s *Session) SendChat(id Uid, text string) error {
	s.usersMu.RLock()
	u, ok := s.users[id]
	var name string
	if ok {
		name = u.Name
	}
	s.usersMu.RUnlock()
	if !ok {
		return ErrUserNotFound
	}
	s.publish(Hear{Uid: id, Name: name, Text: text})
	return nil
}

// Users returns a snapshot of every connected user, for the initial
// Users(list) message sent to a newly attached viewer.
func (s *Session) Users() map[Uid]UserState {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	out := make(map[Uid]UserState, len(s.users))
	for id, u := range s.users {
		out[id] = *u
	}
	return out
}

// PublishLatency broadcasts an estimated round-trip latency sample.
func (s *Session) PublishLatency(millis uint64) {
	s.publish(ShellLatency{Millis: millis})
}
