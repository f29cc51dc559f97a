package hostrpc

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shareterm/coordinatord/internal/coordinator"
	"github.com/shareterm/coordinatord/internal/sessionstore"
	"github.com/shareterm/coordinatord/internal/token"
)

func newTestHandler() (*Handler, *token.Authority) {
	tokens := token.New("test-secret")
	coord := coordinator.New(coordinator.Config{HostName: "node-a"}, sessionstore.New(), nil, tokens, nil)
	return NewHandler(coord, tokens, nil), tokens
}

func TestOpenReturnsNameTokenAndUrl(t *testing.T) {
	h, tokens := newTestHandler()
	resp, err := h.Open(context.Background(), &OpenRequest{Origin: "https://sshx.io", EncryptedZeros: []byte("0123456789abcdef")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(resp.Name) != 10 {
		t.Fatalf("expected 10-char name, got %q", resp.Name)
	}
	if resp.Url != "https://sshx.io/s/"+resp.Name {
		t.Fatalf("url = %q, want https://sshx.io/s/%s", resp.Url, resp.Name)
	}
	if !tokens.Verify(resp.Name, resp.Token) {
		t.Fatal("expected minted token to verify")
	}
}

func TestOpenRejectsEmptyOrigin(t *testing.T) {
	h, _ := newTestHandler()
	_, err := h.Open(context.Background(), &OpenRequest{EncryptedZeros: []byte("0123456789abcdef")})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestCloseRejectsBadToken(t *testing.T) {
	h, _ := newTestHandler()
	_, err := h.Close(context.Background(), &CloseRequest{Name: "abc1234567", Token: "garbage"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestCloseSucceedsForValidTokenEvenIfMissing(t *testing.T) {
	h, tokens := newTestHandler()
	name := "abc1234567"
	_, err := h.Close(context.Background(), &CloseRequest{Name: name, Token: tokens.Mint(name)})
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// fakeChannelStream drives Channel() in-process without a real gRPC
// transport: Recv() dequeues from in, Send() enqueues onto out.
type fakeChannelStream struct {
	in  chan *ClientUpdate
	out chan *ServerUpdate
}

func newFakeChannelStream() *fakeChannelStream {
	return &fakeChannelStream{in: make(chan *ClientUpdate, 16), out: make(chan *ServerUpdate, 16)}
}

func (f *fakeChannelStream) Send(msg *ServerUpdate) error {
	f.out <- msg
	return nil
}

func (f *fakeChannelStream) Recv() (*ClientUpdate, error) {
	msg, ok := <-f.in
	if !ok {
		return nil, fmt.Errorf("stream closed")
	}
	return msg, nil
}

func (f *fakeChannelStream) Context() context.Context { return context.Background() }

func TestChannelRejectsMissingHello(t *testing.T) {
	h, _ := newTestHandler()
	stream := newFakeChannelStream()
	stream.in <- &ClientUpdate{}
	err := h.Channel(stream)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestChannelRejectsBadToken(t *testing.T) {
	h, _ := newTestHandler()
	stream := newFakeChannelStream()
	hello := "abc1234567,garbage"
	stream.in <- &ClientUpdate{Hello: &hello}
	err := h.Channel(stream)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestChannelRejectsUnknownSession(t *testing.T) {
	h, tokens := newTestHandler()
	stream := newFakeChannelStream()
	hello := "abc1234567," + tokens.Mint("abc1234567")
	stream.in <- &ClientUpdate{Hello: &hello}
	err := h.Channel(stream)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
