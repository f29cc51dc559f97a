package hostrpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shareterm/coordinatord/internal/coordinator"
	"github.com/shareterm/coordinatord/internal/session"
	"github.com/shareterm/coordinatord/internal/token"
)

// pingInterval paces the latency-measurement keepalive.
const pingInterval = 10 * time.Second

// Handler implements Service against a coordinator.Server and a
// token.Authority, per §4.10. Grounded on the teacher's gRPC bidi-stream
// session handler (internal/egg/server.go) for the worker-per-channel,
// four-event-source select shape.
type Handler struct {
	coord  *coordinator.Server
	tokens *token.Authority
	log    *slog.Logger
}

func NewHandler(coord *coordinator.Server, tokens *token.Authority, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{coord: coord, tokens: tokens, log: log}
}

// Open generates a unique session name, builds the session, and mints
// its bearer token.
func (h *Handler) Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	if req.Origin == "" {
		return nil, status.Error(codes.InvalidArgument, "origin is required")
	}
	meta := session.Metadata{
		EncryptedZeros:    req.EncryptedZeros,
		DisplayName:       req.Name,
		WritePasswordHash: req.WritePasswordHash,
	}

	_, name, err := h.coord.Open(ctx, meta)
	if err != nil {
		if errors.Is(err, coordinator.ErrNameCollision) {
			return nil, status.Error(codes.AlreadyExists, "could not allocate a unique session name")
		}
		return nil, status.Errorf(codes.Internal, "open session: %v", err)
	}

	origin := req.Origin
	if h.coord.Config.OverrideOrigin != "" {
		origin = h.coord.Config.OverrideOrigin
	}

	return &OpenResponse{
		Name:  name,
		Token: h.tokens.Mint(name),
		Url:   origin + "/s/" + name,
	}, nil
}

// Close verifies the token and evicts/closes the session. Always
// succeeds for a valid token regardless of whether the session existed.
func (h *Handler) Close(ctx context.Context, req *CloseRequest) (*CloseResponse, error) {
	if !h.tokens.Verify(req.Name, req.Token) {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	if err := h.coord.CloseSession(ctx, req.Name); err != nil {
		return nil, status.Errorf(codes.Internal, "close session: %v", err)
	}
	return &CloseResponse{}, nil
}

// Channel implements the worker-per-connection multiplexer of §4.10
// step 2: the first message must be Hello("<name>,<token>"); after
// attaching, four event sources race on every iteration — periodic
// sync, the outbound queue, inbound client messages, and session
// shutdown.
func (h *Handler) Channel(stream ChannelStream) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	if first.Hello == nil {
		return status.Error(codes.InvalidArgument, "first message must be Hello")
	}
	name, tok, ok := strings.Cut(*first.Hello, ",")
	if !ok {
		return status.Error(codes.InvalidArgument, "malformed Hello payload")
	}
	if !h.tokens.Verify(name, tok) {
		return status.Error(codes.Unauthenticated, "invalid token")
	}

	sess, err := h.coord.BackendConnect(stream.Context(), name)
	if err != nil {
		if errors.Is(err, coordinator.ErrSessionNotFound) {
			return status.Error(codes.NotFound, "session not found")
		}
		return status.Errorf(codes.Internal, "attach session: %v", err)
	}
	sess.Touch()

	inbound := make(chan *ClientUpdate)
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case inbound <- msg:
			case <-sess.Shutdown.Wait():
				return
			}
		}
	}()

	ticker := time.NewTicker(session.SyncInterval)
	defer ticker.Stop()

	// Supplemented feature (SPEC_FULL.md §12): a lightweight keepalive
	// ping surfaces host round-trip latency to viewers as ShellLatency.
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-sess.Shutdown.Wait():
			_ = stream.Send(&ServerUpdate{Error: strPtr("disconnecting because session is closed")})
			return nil

		case <-ticker.C:
			seqnums := make(map[uint32]uint64)
			for id, seq := range sess.SequenceNumbers() {
				seqnums[uint32(id)] = seq
			}
			if err := stream.Send(&ServerUpdate{Sync: &ServerSync{Seqnums: seqnums}}); err != nil {
				h.log.Warn("channel sync send failed", "session", name, "error", err)
				return nil
			}

		case <-pingTicker.C:
			ts := uint64(time.Now().UnixMilli())
			if err := stream.Send(&ServerUpdate{Ping: &ts}); err != nil {
				h.log.Warn("channel ping send failed", "session", name, "error", err)
				return nil
			}

		case msg := <-sess.Outbound():
			update := toServerUpdate(msg)
			if update == nil {
				continue
			}
			if err := stream.Send(update); err != nil {
				h.log.Warn("channel outbound send failed", "session", name, "error", err)
				return nil
			}

		case err := <-recvErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err

		case msg := <-inbound:
			sess.Touch()
			if err := h.dispatchClientMessage(sess, msg); err != nil {
				h.log.Warn("client message rejected", "session", name, "error", err)
			}
		}
	}
}

func (h *Handler) dispatchClientMessage(sess *session.Session, msg *ClientUpdate) error {
	switch {
	case msg.Data != nil:
		return sess.AddData(session.Sid(msg.Data.Id), msg.Data.Data, msg.Data.Seq)
	case msg.CreatedShell != nil:
		return sess.AddShell(session.Sid(msg.CreatedShell.Id), [2]int32{msg.CreatedShell.X, msg.CreatedShell.Y})
	case msg.ClosedShell != nil:
		return sess.CloseShell(session.Sid(*msg.ClosedShell))
	case msg.Pong != nil:
		if sentMillis := *msg.Pong; sentMillis > 0 {
			if latency := uint64(time.Now().UnixMilli()) - sentMillis; latency < 1<<32 {
				sess.PublishLatency(latency)
			}
		}
		return nil
	case msg.Error != nil:
		h.log.Warn("host reported error", "session", sess.Metadata.Name, "message", *msg.Error)
		return nil
	default:
		return nil // heartbeat
	}
}

func strPtr(s string) *string { return &s }
