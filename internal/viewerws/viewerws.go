// Package viewerws implements §4.11: the single `/api/s/{name}` viewer
// WebSocket endpoint — resolution, authentication, write-permission
// gating, and the broadcast/shells/chunks fan-out loop. Grounded on the
// teacher's auth-then-dispatch, bounded-per-socket-outbound-channel,
// envelope-type-switch shape (formerly internal/relay/pty_relay.go's
// handlePTYWS/forwardPTYToBrowser).
package viewerws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/shareterm/coordinatord/internal/coordinator"
	"github.com/shareterm/coordinatord/internal/proxy"
	"github.com/shareterm/coordinatord/internal/session"
	"github.com/shareterm/coordinatord/internal/token"
	"github.com/shareterm/coordinatord/internal/wsproto"
)

const (
	statusNotFound = websocket.StatusCode(4404)
	statusInternal = websocket.StatusCode(4500)

	// outboundCapacity is the per-socket bound of §5: "Viewer WebSocket
	// outbound: 16 per socket (applies backpressure up to the chunk
	// forwarder)."
	outboundCapacity = 16

	authenticateTimeout = 30 * time.Second
)

// Handler serves the viewer WebSocket endpoint.
type Handler struct {
	coord *coordinator.Server
	proxy *proxy.Proxy
	log   *slog.Logger
}

func NewHandler(coord *coordinator.Server, prox *proxy.Proxy, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{coord: coord, proxy: prox, log: log}
}

// ServeHTTP implements GET /api/s/{name}, with name supplied via the
// request's PathValue (wired by the transport router's ServeMux
// pattern).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	sess, redirectHost, err := h.coord.FrontendConnect(r.Context(), name)
	switch {
	case err == nil && redirectHost != "":
		conn, acceptErr := websocket.Accept(w, r, nil)
		if acceptErr != nil {
			return
		}
		defer conn.CloseNow()
		if proxyErr := h.proxy.Serve(r.Context(), conn, redirectHost, name); proxyErr != nil {
			h.log.Warn("proxy to owner failed", "session", name, "owner", redirectHost, "error", proxyErr)
		}
		return

	case errors.Is(err, coordinator.ErrSessionNotFound):
		conn, acceptErr := websocket.Accept(w, r, nil)
		if acceptErr != nil {
			return
		}
		conn.Close(statusNotFound, "session not found")
		return

	case err != nil:
		conn, acceptErr := websocket.Accept(w, r, nil)
		if acceptErr != nil {
			return
		}
		conn.Close(statusInternal, "internal error")
		h.log.Error("frontend connect failed", "session", name, "error", err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	if err := h.serveLocal(r.Context(), conn, sess); err != nil {
		h.log.Warn("viewer session ended", "session", name, "error", err)
	}
}

func (h *Handler) serveLocal(ctx context.Context, conn *websocket.Conn, sess *session.Session) error {
	uid := sess.NextUid()
	sess.PulseSync()

	if err := writeServer(ctx, conn, wsproto.NewHello(uid, sess.Metadata.Name)); err != nil {
		return err
	}

	authCtx, cancel := context.WithTimeout(ctx, authenticateTimeout)
	authMsg, err := readClient(authCtx, conn)
	cancel()
	if err != nil {
		return err
	}
	if authMsg.Authenticate == nil {
		conn.Close(websocket.StatusPolicyViolation, "expected Authenticate")
		return errors.New("viewerws: expected Authenticate as first message")
	}

	canWrite, ok := checkAuth(sess, authMsg.Authenticate)
	if !ok {
		_ = writeServer(ctx, conn, wsproto.NewInvalidAuth())
		conn.Close(websocket.StatusPolicyViolation, "invalid auth")
		return errors.New("viewerws: authentication failed")
	}

	handle, err := sess.UserScope(uid, canWrite)
	if err != nil {
		conn.Close(statusInternal, "user scope failed")
		return err
	}
	defer handle.Release()

	return h.run(ctx, conn, sess, uid)
}

// checkAuth implements the §4.11 step 3 decision table.
func checkAuth(sess *session.Session, msg *wsproto.AuthenticateMsg) (canWrite bool, ok bool) {
	if !token.ConstantTimeEqual(msg.EncryptedZeros, sess.Metadata.EncryptedZeros) {
		return false, false
	}
	switch {
	case len(sess.Metadata.WritePasswordHash) == 0:
		return true, true
	case len(msg.WritePassword) == 0:
		return false, true
	default:
		if !token.ConstantTimeEqual(msg.WritePassword, sess.Metadata.WritePasswordHash) {
			return false, false
		}
		return true, true
	}
}

func writeServer(ctx context.Context, conn *websocket.Conn, msg *wsproto.ServerMessage) error {
	blob, err := wsproto.EncodeServer(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageBinary, blob)
}

func readClient(ctx context.Context, conn *websocket.Conn) (*wsproto.ClientMessage, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return wsproto.DecodeClient(data)
}
