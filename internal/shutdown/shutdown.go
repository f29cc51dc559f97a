// Package shutdown implements a one-shot, broadcastable termination signal.
package shutdown

import "sync"

// Signal is a one-shot termination signal safe for concurrent use. Trigger
// may be called any number of times; only the first call has effect. Wait
// may be called concurrently with Trigger without missing a wakeup: a
// channel close is itself a broadcast, so there is no window between a
// reader's "not yet terminated" check and its wait that a concurrent
// Trigger can slip through.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// New returns a Signal that has not yet fired.
func New() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Trigger fires the signal. Idempotent.
func (s *Signal) Trigger() {
	s.once.Do(func() { close(s.ch) })
}

// IsTerminated reports whether Trigger has been called, without blocking.
func (s *Signal) IsTerminated() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Wait returns a channel that is closed once Trigger has been called. If
// already triggered, the returned channel is already closed, so a receive
// resolves immediately.
func (s *Signal) Wait() <-chan struct{} {
	return s.ch
}
