package session

// SubscribeBroadcast returns a cursor over the session's user/chat/latency
// event bus, positioned at the current head.
func (s *Session) SubscribeBroadcast() *BroadcastSub {
	return s.broadcast.Subscribe()
}

func (s *Session) publish(evt any) { s.broadcast.Publish(evt) }

// ShellsSub is a collapsing subscription over the open-shells register:
// a slow consumer observes only the most recent snapshot, never a queue
// of intermediate states.
type ShellsSub struct{ session *Session }

// SubscribeShells returns a new shells-register subscription.
func (s *Session) SubscribeShells() *ShellsSub { return &ShellsSub{session: s} }

// Get returns the current open-shells register.
func (sub *ShellsSub) Get() []OpenShell { return sub.session.open.Get() }

// Wait blocks until the register changes or shutdown fires, returning the
// new value (and true), or the last known value and false on shutdown.
func (sub *ShellsSub) Wait(shutdown <-chan struct{}) ([]OpenShell, bool) {
	val, ch := sub.session.open.awaiter()
	select {
	case <-ch:
		return sub.session.open.Get(), true
	case <-shutdown:
		return val, false
	}
}

// ChunksPage is one batch yielded by a chunk subscription: Seqnum is the
// byte offset corresponding to Chunks[0].
type ChunksPage struct {
	Seqnum   uint64
	Chunks   [][]byte
	NextMark uint64 // pass as chunknum on the next poll
}

// PollChunks implements the §4.4 subscribe_chunks producer step: under
// the shells read lock, report whether the shell is gone, and if not,
// any chunks beyond chunknum together with a wait channel to await the
// next change. The caller must release any prior wait before calling
// again (it already will, since this only returns one result at a time)
// and must select on the returned channel (or its own shutdown) when no
// page is returned.
func (s *Session) PollChunks(id Sid, chunknum uint64) (page *ChunksPage, wait <-chan struct{}, alive bool) {
	s.shellsMu.RLock()
	defer s.shellsMu.RUnlock()

	sh, ok := s.shells[id]
	if !ok || sh.Closed {
		return nil, nil, false
	}

	total := sh.ChunkOffset + uint64(len(sh.Data))
	start := chunknum
	if start < sh.ChunkOffset {
		start = sh.ChunkOffset
	}
	if start < total {
		startIdx := start - sh.ChunkOffset
		chunks := sh.Data[startIdx:]
		var seqnum uint64 = sh.ByteOffset
		for i := uint64(0); i < startIdx; i++ {
			seqnum += uint64(len(sh.Data[i]))
		}
		out := make([][]byte, len(chunks))
		copy(out, chunks)
		return &ChunksPage{Seqnum: seqnum, Chunks: out, NextMark: total}, nil, true
	}

	return nil, sh.notify.C(), true
}
