// Package coordinator glues the session store, the mesh, and the token
// authority into the server-wide state described in §2 item 8: it
// exposes open, lookupLocal, backendConnect (host-side attach with
// transparent migration), frontendConnect (viewer-side attach, may
// yield a redirect host), closeSession, a transfer-listener loop, and a
// disconnected-session eviction loop. Grounded on the teacher's
// internal/relay.Server glue-struct shape (registries + config, no
// process-global singletons).
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shareterm/coordinatord/internal/mesh"
	"github.com/shareterm/coordinatord/internal/session"
	"github.com/shareterm/coordinatord/internal/sessionstore"
	"github.com/shareterm/coordinatord/internal/snapshot"
	"github.com/shareterm/coordinatord/internal/token"
)

const nameCollisionRetries = 10

// Config holds the server-wide settings named in §6: secret, override
// origin, mesh storage URL (wired by the caller into a *mesh.Mesh
// before construction), and host name.
type Config struct {
	Secret         string
	OverrideOrigin string
	HostName       string
}

// Server is the process-lifetime glue value. Mesh may be nil, in which
// case the coordinator behaves as a standalone node: backendConnect
// never recovers a remote snapshot and frontendConnect never redirects.
type Server struct {
	Config Config

	store  *sessionstore.Store
	mesh   *mesh.Mesh
	tokens *token.Authority
	log    *slog.Logger
}

// New builds a Server. log defaults to slog.Default() if nil.
func New(cfg Config, store *sessionstore.Store, m *mesh.Mesh, tokens *token.Authority, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{Config: cfg, store: store, mesh: m, tokens: tokens, log: log}
}

// LookupLocal returns the session held directly by this node, if any.
func (s *Server) LookupLocal(name string) (*session.Session, bool) {
	return s.store.Lookup(name)
}

// Open implements the `open` RPC's server-state half: generate a unique
// session name (bounded retry per [[DESIGN.md]] decision #3), build the
// session from the supplied metadata, insert it into the local store
// (starting background mesh sync if meshed), and return it together
// with its name.
func (s *Server) Open(ctx context.Context, meta session.Metadata) (*session.Session, string, error) {
	var name string
	for i := 0; i < nameCollisionRetries; i++ {
		candidate := token.GenerateSessionName()
		if _, exists := s.store.Lookup(candidate); exists {
			continue
		}
		if s.mesh != nil {
			if _, ok, err := s.mesh.GetOwner(ctx, candidate); err == nil && ok {
				continue
			}
		}
		name = candidate
		break
	}
	if name == "" {
		return nil, "", ErrNameCollision
	}

	meta.Name = name
	sess := session.New(meta)
	s.store.Insert(name, sess)
	if s.mesh != nil {
		go s.mesh.BackgroundSync(sessionCtx(sess), name, sess)
	}
	return sess, name, nil
}

// BackendConnect implements §4.8: prefer a local session; otherwise try
// to recover one from the mesh's owner+snapshot, installing it locally
// and notifying the previous owner to release its stale copy; otherwise
// report not found.
func (s *Server) BackendConnect(ctx context.Context, name string) (*session.Session, error) {
	if local, ok := s.store.Lookup(name); ok {
		return local, nil
	}
	if s.mesh == nil {
		return nil, ErrSessionNotFound
	}

	owner, blob, ok, err := s.mesh.GetOwnerSnapshot(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("coordinator: backend connect: %w", err)
	}
	if !ok || blob == nil {
		return nil, ErrSessionNotFound
	}

	restored, err := snapshot.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("coordinator: restore snapshot for %q: %w", name, err)
	}
	restored.Metadata.Name = name

	s.store.Insert(name, restored)
	if s.mesh != nil {
		go s.mesh.BackgroundSync(sessionCtx(restored), name, restored)
	}

	if owner != "" && owner != s.Config.HostName {
		if err := s.mesh.NotifyTransfer(ctx, name, owner); err != nil {
			s.log.Warn("failed to notify previous owner of transfer", "session", name, "owner", owner, "error", err)
		}
	}
	return restored, nil
}

// FrontendConnect implements §4.9: a local session is returned
// directly; otherwise the mesh's recorded owner decides between "not
// found" (this host is the stale owner) and a redirect hostname.
// Without a mesh, absence is always "not found".
func (s *Server) FrontendConnect(ctx context.Context, name string) (local *session.Session, redirectHost string, err error) {
	if sess, ok := s.store.Lookup(name); ok {
		return sess, "", nil
	}
	if s.mesh == nil {
		return nil, "", ErrSessionNotFound
	}

	owner, ok, err := s.mesh.GetOwner(ctx, name)
	if err != nil {
		return nil, "", fmt.Errorf("coordinator: frontend connect: %w", err)
	}
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	if owner == s.Config.HostName {
		return nil, "", ErrSessionNotFound
	}
	return nil, owner, nil
}

// CloseSession evicts the local copy (triggering its shutdown) and, if
// meshed, marks the session closed globally — which publishes a
// transfer notification to any other recorded owner.
func (s *Server) CloseSession(ctx context.Context, name string) error {
	s.store.Remove(name)
	if s.mesh == nil {
		return nil
	}
	if err := s.mesh.MarkClosed(ctx, name); err != nil {
		return fmt.Errorf("coordinator: close session: %w", err)
	}
	return nil
}

// RunTransferListener consumes mesh transfer notifications addressed to
// this host and evicts the named session's local copy, since ownership
// has moved elsewhere (or the session closed). No-op forever if there is
// no mesh. Blocks until ctx is cancelled.
func (s *Server) RunTransferListener(ctx context.Context) {
	if s.mesh == nil {
		<-ctx.Done()
		return
	}
	for name := range s.mesh.ListenForTransfers(ctx) {
		if s.store.Remove(name) {
			s.log.Info("released local session on transfer notification", "session", name)
		}
	}
}

// RunEvictionLoop walks local sessions every
// session.DisconnectedSessionExpiry/5 and closes any whose last_accessed
// predates the expiry, per §4.14. Blocks until ctx is cancelled.
func (s *Server) RunEvictionLoop(ctx context.Context) {
	interval := session.DisconnectedSessionExpiry / 5
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired(ctx)
		}
	}
}

func (s *Server) evictExpired(ctx context.Context) {
	var expired []string
	cutoff := time.Now().Add(-session.DisconnectedSessionExpiry)
	s.store.Each(func(name string, sess *session.Session) {
		if sess.LastAccessed().Before(cutoff) {
			expired = append(expired, name)
		}
	})
	for _, name := range expired {
		if err := s.CloseSession(ctx, name); err != nil {
			s.log.Warn("eviction failed to close expired session", "session", name, "error", err)
		} else {
			s.log.Info("evicted disconnected session", "session", name)
		}
	}
}

// sessionCtx derives a context that is cancelled when the session shuts
// down, so BackgroundSync exits promptly without needing its own
// cancellation wiring.
func sessionCtx(sess *session.Session) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sess.Shutdown.Wait()
		cancel()
	}()
	return ctx
}
