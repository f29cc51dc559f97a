package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// TestServeCopiesFramesAndPropagatesClose stands up a fake "owner" node
// that echoes one binary frame then closes with a distinct custom code,
// and a proxying node that front-ends it via Serve. It verifies a real
// client dialing the proxying node observes the echoed frame and the
// owner's close code.
func TestServeCopiesFramesAndPropagatesClose(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
			return
		}
		conn.Close(websocket.StatusCode(4001), "owner done")
	}))
	defer upstream.Close()
	upstreamHost := strings.TrimPrefix(upstream.URL, "http://")

	p := New()
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_ = p.Serve(r.Context(), conn, upstreamHost, "abc1234567")
	}))
	defer front.Close()
	frontURL := "ws://" + strings.TrimPrefix(front.URL, "http://")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, frontURL, nil)
	if err != nil {
		t.Fatalf("dial proxy front: %v", err)
	}
	defer client.CloseNow()

	if err := client.Write(ctx, websocket.MessageBinary, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, data, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("read echoed frame: %v", err)
	}
	if string(data) != "ping" {
		t.Fatalf("echoed frame = %q, want %q", data, "ping")
	}

	_, _, err = client.Read(ctx)
	closeErr, ok := asCloseError(err)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != websocket.StatusCode(4001) {
		t.Fatalf("propagated close code = %v, want 4001", closeErr.Code)
	}
}

func asCloseError(err error) (websocket.CloseError, bool) {
	var ce websocket.CloseError
	ok := errors.As(err, &ce)
	return ce, ok
}
