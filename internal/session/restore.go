package session

import "github.com/shareterm/coordinatord/internal/idgen"

// ExportedShell is a read-only copy of a shell's state, used by the
// snapshot codec; it never aliases the live session's buffers.
type ExportedShell struct {
	Seqnum      uint64
	Data        [][]byte
	ChunkOffset uint64
	ByteOffset  uint64
	Closed      bool
	Winsize     WsWinsize
}

// Export returns a deep copy of every shell plus the current open-shells
// register order (ShellOrder in the snapshot wire format, per
// [[DESIGN.md]] decision #2 — the then-current register order, not
// creation order, since Move reorders the register without touching
// creationOrder), and the counter's next ids. Closed shells are not in
// the register, so they're appended after it in arbitrary (map) order —
// they carry no live focus position to preserve.
func (s *Session) Export() (shells map[Sid]ExportedShell, order []Sid, nextSid, nextUid uint32) {
	s.shellsMu.RLock()
	defer s.shellsMu.RUnlock()

	shells = make(map[Sid]ExportedShell, len(s.shells))
	for id, sh := range s.shells {
		data := make([][]byte, len(sh.Data))
		for i, c := range sh.Data {
			cp := make([]byte, len(c))
			copy(cp, c)
			data[i] = cp
		}
		shells[id] = ExportedShell{
			Seqnum:      sh.Seqnum,
			Data:        data,
			ChunkOffset: sh.ChunkOffset,
			ByteOffset:  sh.ByteOffset,
			Closed:      sh.Closed,
			Winsize:     sh.Winsize,
		}
	}

	open := s.open.Get()
	order = make([]Sid, 0, len(shells))
	seen := make(map[Sid]bool, len(open))
	for _, entry := range open {
		order = append(order, entry.Id)
		seen[entry.Id] = true
	}
	for id, sh := range shells {
		if sh.Closed && !seen[id] {
			order = append(order, id)
		}
	}

	nextSid, nextUid = s.counter.Snapshot()
	return shells, order, nextSid, nextUid
}

// Restore rebuilds a session from previously exported shell state. Fresh
// notify primitives are created for every shell; the open-shells
// register is rebuilt from order (skipping closed shells), preserving
// that order per the reference restore behavior. The id counter is
// rewound to at least max(nextSid, any shell id present)+0, guaranteeing
// it never reissues an id already used in the snapshot.
func Restore(meta Metadata, shells map[Sid]ExportedShell, order []Sid, nextSid, nextUid uint32) *Session {
	counter := idgen.New(nextSid, nextUid)
	for id := range shells {
		counter.ObserveSid(id)
	}

	s := newSession(meta, counter)

	s.shellsMu.Lock()
	for id, es := range shells {
		s.shells[id] = &ShellState{
			Seqnum:      es.Seqnum,
			Data:        es.Data,
			ChunkOffset: es.ChunkOffset,
			ByteOffset:  es.ByteOffset,
			Closed:      es.Closed,
			Winsize:     es.Winsize,
			notify:      newPulse(),
		}
	}
	s.shellsMu.Unlock()

	reg := make([]OpenShell, 0, len(order))
	for _, id := range order {
		if es, ok := shells[id]; ok && !es.Closed {
			reg = append(reg, OpenShell{Id: id, Winsize: es.Winsize})
		}
	}
	s.open.Set(reg)

	return s
}
