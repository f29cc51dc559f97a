// Package mesh implements §4.7: distributed ownership, snapshot
// persistence, and transfer notifications across coordinator nodes,
// backed by a shared key/value store with pub/sub.
package mesh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shareterm/coordinatord/internal/session"
	"github.com/shareterm/coordinatord/internal/snapshot"
)

const (
	keyTTL        = 5 * time.Minute
	syncInterval  = 20 * time.Second
	subscribeBase = 200 * time.Millisecond
	subscribeMax  = 10 * time.Second
)

// Mesh glues the session store to a shared KV store. HostName identifies
// this node; an empty HostName means transfer listening is a no-op, per
// §6's configuration note.
type Mesh struct {
	kv       KV
	hostName string
	log      *slog.Logger
}

// New builds a Mesh over kv. log defaults to slog.Default() if nil.
func New(kv KV, hostName string, log *slog.Logger) *Mesh {
	if log == nil {
		log = slog.Default()
	}
	return &Mesh{kv: kv, hostName: hostName, log: log}
}

func ownerKey(name string) string    { return fmt.Sprintf("session:%s:owner", name) }
func snapshotKey(name string) string { return fmt.Sprintf("session:%s:snapshot", name) }
func closedKey(name string) string   { return fmt.Sprintf("session:%s:closed", name) }
func transfersTopic(host string) string { return fmt.Sprintf("transfers:%s", host) }

// GetOwner reads the owner and closed flag; if closed, the session is
// reported absent regardless of a stale owner key.
func (m *Mesh) GetOwner(ctx context.Context, name string) (owner string, ok bool, err error) {
	vals, err := m.kv.MGet(ctx, ownerKey(name), closedKey(name))
	if err != nil {
		return "", false, fmt.Errorf("mesh: get owner: %w", err)
	}
	if vals[1] != nil {
		return "", false, nil
	}
	if vals[0] == nil {
		return "", false, nil
	}
	return *vals[0], true, nil
}

// GetOwnerSnapshot reads owner, snapshot, and closed in a single atomic
// round trip. If closed, both owner and snapshot are reported absent.
func (m *Mesh) GetOwnerSnapshot(ctx context.Context, name string) (owner string, snapshotBytes []byte, ok bool, err error) {
	vals, err := m.kv.MGet(ctx, ownerKey(name), snapshotKey(name), closedKey(name))
	if err != nil {
		return "", nil, false, fmt.Errorf("mesh: get owner snapshot: %w", err)
	}
	if vals[2] != nil {
		return "", nil, false, nil
	}
	if vals[0] != nil {
		owner = *vals[0]
	}
	if vals[1] != nil {
		snapshotBytes = []byte(*vals[1])
	}
	return owner, snapshotBytes, owner != "" || snapshotBytes != nil, nil
}

// BackgroundSync loops until shutdown fires, waking on the 20-second
// tick or the session's sync_now pulse, serializing the session and
// writing owner (if this node is named) and snapshot with TTL on each
// wake. Transient errors are logged and the loop continues.
func (m *Mesh) BackgroundSync(ctx context.Context, name string, s *session.Session) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.Shutdown.Wait():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.SyncPulseChan():
		}

		if err := m.syncOnce(ctx, name, s); err != nil {
			m.log.Warn("mesh background sync failed", "session", name, "error", err)
		}
	}
}

func (m *Mesh) syncOnce(ctx context.Context, name string, s *session.Session) error {
	blob, err := snapshot.Encode(s)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if m.hostName != "" {
		if err := m.kv.Set(ctx, ownerKey(name), m.hostName, keyTTL); err != nil {
			return fmt.Errorf("set owner: %w", err)
		}
	}
	if err := m.kv.Set(ctx, snapshotKey(name), string(blob), keyTTL); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// MarkClosed atomically clears owner and snapshot, marks the session
// closed with TTL, and — if a previous owner was recorded — publishes a
// transfer notification so that node can release its local copy too.
func (m *Mesh) MarkClosed(ctx context.Context, name string) error {
	prevOwner, err := m.kv.Get(ctx, ownerKey(name))
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("mesh: read owner before close: %w", err)
	}

	if err := m.kv.Del(ctx, ownerKey(name), snapshotKey(name)); err != nil {
		return fmt.Errorf("mesh: clear owner/snapshot: %w", err)
	}
	if err := m.kv.Set(ctx, closedKey(name), "1", keyTTL); err != nil {
		return fmt.Errorf("mesh: set closed: %w", err)
	}

	if prevOwner != "" {
		if err := m.NotifyTransfer(ctx, name, prevOwner); err != nil {
			return fmt.Errorf("mesh: notify transfer on close: %w", err)
		}
	}
	return nil
}

// NotifyTransfer publishes name on the given host's transfer topic.
func (m *Mesh) NotifyTransfer(ctx context.Context, name, host string) error {
	return m.kv.Publish(ctx, transfersTopic(host), name)
}

// ListenForTransfers returns a channel of session names published to
// this node's transfer topic. If HostName is empty, the returned
// channel is immediately closed (a no-op stream). Otherwise it
// reconnects with exponential backoff on subscription failure and never
// terminates on its own; it exits only when ctx is cancelled.
func (m *Mesh) ListenForTransfers(ctx context.Context) <-chan string {
	out := make(chan string)
	if m.hostName == "" {
		close(out)
		return out
	}
	go m.listenLoop(ctx, out)
	return out
}

func (m *Mesh) listenLoop(ctx context.Context, out chan<- string) {
	defer close(out)
	backoff := subscribeBase

	for {
		sub := m.kv.Subscribe(ctx, transfersTopic(m.hostName))
		ch := sub.Channel()
		backoff = subscribeBase

		draining := true
		for draining {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					draining = false
					continue
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					sub.Close()
					return
				}
			}
		}
		sub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > subscribeMax {
			backoff = subscribeMax
		}
	}
}
