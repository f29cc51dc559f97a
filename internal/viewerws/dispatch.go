package viewerws

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/shareterm/coordinatord/internal/session"
	"github.com/shareterm/coordinatord/internal/wsproto"
)

// dispatch implements §4.11 step 6's per-message handling: write-gated
// actions (Create, Close, Move, Data) require check_write_permission;
// viewer-local messages (SetName, SetCursor, SetFocus, Chat, Ping)
// always apply. Rejections are reported via a single WsServer::Error to
// the requesting viewer and never forwarded. A returned error ends the
// connection; dispatch itself never returns one for ordinary protocol
// rejections — those go out as chunkCh messages instead.
func (h *Handler) dispatch(ctx context.Context, sess *session.Session, uid session.Uid, msg *wsproto.ClientMessage, out chan<- *wsproto.ServerMessage, subscribed map[session.Sid]bool) error {
	switch msg.Type {
	case wsproto.TypeSetName:
		if msg.SetName == nil || msg.SetName.Name == "" {
			return nil
		}
		return ignoreErr(sess.UpdateUser(uid, func(u *session.UserState) { u.Name = msg.SetName.Name }))

	case wsproto.TypeSetCursor:
		if msg.SetCursor == nil {
			return nil
		}
		return ignoreErr(sess.UpdateUser(uid, func(u *session.UserState) { u.Cursor = msg.SetCursor.Cursor }))

	case wsproto.TypeSetFocus:
		if msg.SetFocus == nil {
			return nil
		}
		return ignoreErr(sess.UpdateUser(uid, func(u *session.UserState) {
			if msg.SetFocus.Id == nil {
				u.Focus = nil
				return
			}
			id := session.Sid(*msg.SetFocus.Id)
			u.Focus = &id
		}))

	case wsproto.TypeChat:
		if msg.Chat == nil {
			return nil
		}
		return ignoreErr(sess.SendChat(uid, msg.Chat.Text))

	case wsproto.TypePing:
		if msg.Ping == nil {
			return nil
		}
		select {
		case out <- wsproto.NewPong(msg.Ping.Ts):
		case <-ctx.Done():
		}
		return nil

	case wsproto.TypeCreate:
		if msg.Create == nil {
			return nil
		}
		return h.writeGated(ctx, sess, uid, out, func() error {
			id := sess.NextSid()
			sess.PulseSync()
			sess.Enqueue(session.CreateShellCmd{Id: id, X: msg.Create.X, Y: msg.Create.Y})
			return nil
		})

	case wsproto.TypeClose:
		if msg.Close == nil {
			return nil
		}
		return h.writeGated(ctx, sess, uid, out, func() error {
			sess.Enqueue(session.CloseShellCmd{Id: session.Sid(msg.Close.Id)})
			return nil
		})

	case wsproto.TypeMove:
		if msg.Move == nil {
			return nil
		}
		return h.writeGated(ctx, sess, uid, out, func() error {
			id := session.Sid(msg.Move.Id)
			var size *session.WsWinsize
			if msg.Move.Size != nil {
				w := msg.Move.Size.ToWinsize()
				size = &w
			}
			if err := sess.MoveShell(id, size); err != nil {
				return err
			}
			if size != nil {
				sess.Enqueue(session.Resize{Id: id, Rows: size.Rows, Cols: size.Cols})
			}
			return nil
		})

	case wsproto.TypeData:
		if msg.Data == nil {
			return nil
		}
		return h.writeGated(ctx, sess, uid, out, func() error {
			sess.Enqueue(session.Input{Id: session.Sid(msg.Data.Id), Data: msg.Data.Data, Offset: msg.Data.Offset})
			return nil
		})

	case wsproto.TypeSubscribe:
		if msg.Subscribe == nil {
			return nil
		}
		id := session.Sid(msg.Subscribe.Id)
		if subscribed[id] {
			return nil
		}
		subscribed[id] = true
		go h.forwardChunks(ctx, sess, id, msg.Subscribe.Chunknum, out)
		return nil

	default:
		return nil
	}
}

// writeGated runs action if uid currently has write permission; on
// rejection it sends one WsServer::Error to the caller and does not run
// action.
func (h *Handler) writeGated(ctx context.Context, sess *session.Session, uid session.Uid, out chan<- *wsproto.ServerMessage, action func() error) error {
	if err := sess.CheckWritePermission(uid); err != nil {
		select {
		case out <- wsproto.NewError(err.Error()):
		case <-ctx.Done():
		}
		return nil
	}
	return ignoreErr(action())
}

// ignoreErr matches §7's session-state-check failures being reported
// only to the requesting viewer, never terminating the connection; the
// (rare) error here is a programming-level mismatch (e.g. shell id
// absent) and is simply dropped as the spec prescribes no forwarding.
func ignoreErr(error) error { return nil }

// chunkForwardLimit paces one subscription's pushes onto the bounded
// outbound channel (outboundCapacity entries deep): a host producing
// output far faster than the viewer drains frames would otherwise spin
// the forwarder against a full channel on every Write stall. The
// limiter smooths that into a steady rate instead, a backpressure valve
// in front of the channel bound rather than a replacement for it.
var chunkForwardLimit = rate.Limit(200)

const chunkForwardBurst = 32

func (h *Handler) forwardChunks(ctx context.Context, sess *session.Session, id session.Sid, startMark uint64, out chan<- *wsproto.ServerMessage) {
	limiter := rate.NewLimiter(chunkForwardLimit, chunkForwardBurst)
	mark := startMark
	for {
		page, wait, alive := sess.PollChunks(id, mark)
		if !alive {
			return
		}
		if page != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			msg := wsproto.NewChunks(uint32(id), page.Seqnum, page.Chunks)
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
			mark = page.NextMark
			continue
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return
		}
	}
}
