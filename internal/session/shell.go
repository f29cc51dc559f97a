package session

// AddShell inserts a fresh shell at the given center, publishes it to the
// open-shells register, and pulses sync_now. Fails if id is already
// present.
func (s *Session) AddShell(id Sid, center [2]int32) error {
	s.shellsMu.Lock()
	if _, exists := s.shells[id]; exists {
		s.shellsMu.Unlock()
		return ErrShellExists
	}
	winsize := DefaultWinsize(center[0], center[1])
	s.shells[id] = &ShellState{Winsize: winsize, notify: newPulse()}
	s.shellsMu.Unlock()

	s.appendOpenShell(OpenShell{Id: id, Winsize: winsize})
	s.PulseSync()
	return nil
}

// CloseShell marks a shell closed, wakes its subscribers, and removes it
// from the open-shells register. No-op if already closed; fails if
// absent.
func (s *Session) CloseShell(id Sid) error {
	s.shellsMu.Lock()
	sh, ok := s.shells[id]
	if !ok {
		s.shellsMu.Unlock()
		return ErrShellNotFound
	}
	if sh.Closed {
		s.shellsMu.Unlock()
		return nil
	}
	sh.Closed = true
	sh.notify.Notify()
	s.shellsMu.Unlock()

	s.removeOpenShell(id)
	s.PulseSync()
	return nil
}

// MoveShell requires the shell to exist and be open; it replaces the
// register entry (moving it to the end to signal focus change). If size
// is nil the existing size is retained.
func (s *Session) MoveShell(id Sid, size *WsWinsize) error {
	s.shellsMu.Lock()
	sh, ok := s.shells[id]
	if !ok {
		s.shellsMu.Unlock()
		return ErrShellNotFound
	}
	if sh.Closed {
		s.shellsMu.Unlock()
		return ErrShellClosed
	}
	if size != nil {
		sh.Winsize = *size
	}
	winsize := sh.Winsize
	s.shellsMu.Unlock()

	s.removeOpenShell(id)
	s.appendOpenShell(OpenShell{Id: id, Winsize: winsize})
	return nil
}

// AddData appends the unseen suffix of bytes starting at seq, applies the
// rolling-buffer policy, and wakes the shell's chunk subscribers. A
// no-op if the range is already applied (seq+len(bytes) <= seqnum) or a
// future gap (seq > seqnum); the host reconciles gaps via the next Sync.
func (s *Session) AddData(id Sid, data []byte, seq uint64) error {
	s.shellsMu.Lock()
	defer s.shellsMu.Unlock()

	sh, ok := s.shells[id]
	if !ok {
		return ErrShellNotFound
	}
	if sh.Closed {
		return ErrShellClosed
	}

	end := seq + uint64(len(data))
	if end <= sh.Seqnum || seq > sh.Seqnum {
		return nil
	}

	skip := sh.Seqnum - seq
	suffix := data[skip:]
	if len(suffix) > 0 {
		chunk := make([]byte, len(suffix))
		copy(chunk, suffix)
		sh.Data = append(sh.Data, chunk)
		sh.Seqnum += uint64(len(suffix))
	}

	for sh.Seqnum-sh.ByteOffset > ShellStoredBytes && len(sh.Data) > 0 {
		dropped := sh.Data[0]
		sh.Data = sh.Data[1:]
		sh.ChunkOffset++
		sh.ByteOffset += uint64(len(dropped))
	}

	sh.notify.Notify()
	return nil
}

func (s *Session) appendOpenShell(entry OpenShell) {
	cur, _ := s.open.awaiter()
	next := make([]OpenShell, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, entry)
	s.open.Set(next)
}

func (s *Session) removeOpenShell(id Sid) {
	cur, _ := s.open.awaiter()
	next := make([]OpenShell, 0, len(cur))
	for _, e := range cur {
		if e.Id != id {
			next = append(next, e)
		}
	}
	s.open.Set(next)
}
