package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shareterm/coordinatord/internal/idgen"
	"github.com/shareterm/coordinatord/internal/shutdown"
)

// ShellState is one pseudo-terminal's rolling buffer and lifecycle flag.
// Mutation is coherent under the owning Session's shellsMu: readers take
// the read lock, mutators (add_shell/close_shell/move_shell/add_data)
// take the write lock, matching §3's "whole-map read lock vs write
// lock" data model.
type ShellState struct {
	Seqnum      uint64
	Data        [][]byte
	ChunkOffset uint64
	ByteOffset  uint64
	Closed      bool
	Winsize     WsWinsize

	notify *pulse
}

// OpenShell is one entry of the open-shells register.
type OpenShell struct {
	Id      Sid
	Winsize WsWinsize
}

// Session is the in-memory aggregate for one shared terminal room.
type Session struct {
	Metadata Metadata

	shellsMu sync.RWMutex
	shells   map[Sid]*ShellState
	open     *watch[[]OpenShell]

	usersMu sync.RWMutex
	users   map[Uid]*UserState

	counter *idgen.Counter

	lastAccessed int64 // unix nanos, atomic

	broadcast *broadcastBus
	outbound  chan ServerMessage
	syncNow   *pulse

	Shutdown *shutdown.Signal
}

// New creates a fresh session with the given metadata and an empty shell
// and user set.
func New(meta Metadata) *Session {
	return newSession(meta, idgen.New(0, 0))
}

func newSession(meta Metadata, counter *idgen.Counter) *Session {
	s := &Session{
		Metadata:  meta,
		shells:    make(map[Sid]*ShellState),
		open:      newWatch[[]OpenShell](nil),
		users:     make(map[Uid]*UserState),
		counter:   counter,
		broadcast: newBroadcastBus(BroadcastBacklog),
		outbound:  make(chan ServerMessage, OutboundQueueCapacity),
		syncNow:   newPulse(),
		Shutdown:  shutdown.New(),
	}
	s.Touch()
	return s
}

// Touch refreshes last_accessed to now; called on every inbound host
// message and on the initial hello.
func (s *Session) Touch() {
	atomic.StoreInt64(&s.lastAccessed, time.Now().UnixNano())
}

// LastAccessed returns the last-touched time.
func (s *Session) LastAccessed() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.lastAccessed))
}

// NextSid allocates the next shell id.
func (s *Session) NextSid() Sid { return s.counter.NextSid() }

// NextUid allocates the next user id.
func (s *Session) NextUid() Uid { return s.counter.NextUid() }

// PulseSync wakes the mesh background sync loop ahead of its next tick.
func (s *Session) PulseSync() { s.syncNow.Notify() }

// SyncPulseChan returns the channel the mesh sync loop selects on in
// addition to its periodic timer.
func (s *Session) SyncPulseChan() <-chan struct{} { return s.syncNow.C() }

// Enqueue places a message on the bounded outbound queue consumed by the
// host channel worker, preserving enqueue order. Blocks if the queue is
// full; unblocks early if the session shuts down.
func (s *Session) Enqueue(msg ServerMessage) {
	select {
	case s.outbound <- msg:
	case <-s.Shutdown.Wait():
	}
}

// Outbound returns the channel the host channel worker drains.
func (s *Session) Outbound() <-chan ServerMessage { return s.outbound }

// SequenceNumbers returns a snapshot of {id -> seqnum} for every
// non-closed shell.
func (s *Session) SequenceNumbers() map[Sid]uint64 {
	s.shellsMu.RLock()
	defer s.shellsMu.RUnlock()
	out := make(map[Sid]uint64, len(s.shells))
	for id, sh := range s.shells {
		if !sh.Closed {
			out[id] = sh.Seqnum
		}
	}
	return out
}
