// Package proxy implements §4.12: a transparent WebSocket reverse proxy
// used when a viewer lands on a node that is not the session's owner.
// Grounded on the teacher's internal/relay fly-replay cross-node
// forwarding idiom, adapted from HTTP replay headers to a literal
// bidirectional frame copy.
package proxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Proxy dials the owning node and copies frames in both directions.
type Proxy struct{}

func New() *Proxy { return &Proxy{} }

// Serve copies WebSocket frames between downstream (already accepted
// from the viewer) and a freshly dialed upstream connection to host,
// until either side closes or errors. The originating side's close code
// is propagated to the other.
func (p *Proxy) Serve(ctx context.Context, downstream *websocket.Conn, host, name string) error {
	// reqID correlates this proxy leg's log lines across the two nodes
	// involved in a cross-node forward; it has no wire-protocol role.
	reqID := uuid.New().String()

	upstream, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/api/s/%s", host, name), nil)
	if err != nil {
		return fmt.Errorf("proxy[%s]: dial upstream %s: %w", reqID, host, err)
	}
	defer upstream.CloseNow()

	errCh := make(chan error, 2)
	go func() { errCh <- copyFrames(ctx, downstream, upstream) }()
	go func() { errCh <- copyFrames(ctx, upstream, downstream) }()

	cause := <-errCh
	propagateClose(downstream, upstream, cause)
	return fmt.Errorf("proxy[%s]: %w", reqID, cause)
}

func copyFrames(ctx context.Context, dst, src *websocket.Conn) error {
	for {
		typ, data, err := src.Read(ctx)
		if err != nil {
			return err
		}
		if err := dst.Write(ctx, typ, data); err != nil {
			return err
		}
	}
}

// propagateClose forwards the close code/reason that ended the copy
// loop to both legs of the proxy, so the downstream viewer sees
// whatever code the upstream owner actually closed with.
func propagateClose(downstream, upstream *websocket.Conn, cause error) {
	var ce websocket.CloseError
	if errors.As(cause, &ce) {
		_ = downstream.Close(ce.Code, ce.Reason)
		_ = upstream.Close(ce.Code, ce.Reason)
		return
	}
	_ = downstream.Close(websocket.StatusNormalClosure, "")
	_ = upstream.Close(websocket.StatusNormalClosure, "")
}
