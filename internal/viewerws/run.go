package viewerws

import (
	"context"
	"errors"

	"github.com/coder/websocket"

	"github.com/shareterm/coordinatord/internal/session"
	"github.com/shareterm/coordinatord/internal/wsproto"
)

// run sends the initial Users snapshot, subscribes to the broadcast and
// shells register, then enters the §4.11 step 6 main loop: a single
// goroutine owns every write to conn; everything else feeds it through
// channels so writes are never issued concurrently.
func (h *Handler) run(ctx context.Context, conn *websocket.Conn, sess *session.Session, uid session.Uid) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	users := sess.Users()
	entries := make([]wsproto.UserEntry, 0, len(users))
	for id, u := range users {
		entries = append(entries, wsproto.UserEntry{Id: uint32(id), User: wsproto.FromUserState(u)})
	}
	if err := writeServer(ctx, conn, wsproto.NewUsers(entries)); err != nil {
		return err
	}

	readCh := make(chan *wsproto.ClientMessage)
	readErrCh := make(chan error, 1)
	go func() {
		for {
			msg, err := readClient(connCtx, conn)
			if err != nil {
				readErrCh <- err
				return
			}
			select {
			case readCh <- msg:
			case <-connCtx.Done():
				return
			}
		}
	}()

	broadcastCh := make(chan any)
	broadcastErrCh := make(chan error, 1)
	go func() {
		sub := sess.SubscribeBroadcast()
		for {
			evt, err := sub.Recv(connCtx.Done())
			if err != nil {
				broadcastErrCh <- err
				return
			}
			if evt == nil {
				return // shutdown
			}
			select {
			case broadcastCh <- evt:
			case <-connCtx.Done():
				return
			}
		}
	}()

	shellsCh := make(chan []session.OpenShell)
	go func() {
		sub := sess.SubscribeShells()
		select {
		case shellsCh <- sub.Get():
		case <-connCtx.Done():
			return
		}
		for {
			shells, ok := sub.Wait(connCtx.Done())
			if !ok {
				return
			}
			select {
			case shellsCh <- shells:
			case <-connCtx.Done():
				return
			}
		}
	}()

	chunkCh := make(chan *wsproto.ServerMessage, outboundCapacity)
	subscribed := make(map[session.Sid]bool)

	for {
		select {
		case <-sess.Shutdown.Wait():
			conn.Close(websocket.StatusNormalClosure, "session closed")
			return nil

		case err := <-readErrCh:
			return err

		case err := <-broadcastErrCh:
			if errors.Is(err, session.ErrLagged) {
				conn.Close(statusInternal, "lagged")
				return err
			}
			return err

		case msg := <-readCh:
			if err := h.dispatch(connCtx, sess, uid, msg, chunkCh, subscribed); err != nil {
				return err
			}

		case evt := <-broadcastCh:
			if err := h.sendBroadcastEvent(ctx, conn, evt); err != nil {
				return err
			}

		case shells := <-shellsCh:
			entries := make([]wsproto.ShellEntry, len(shells))
			for i, sh := range shells {
				entries[i] = wsproto.ShellEntry{Id: uint32(sh.Id), Winsize: winsizeWire(sh.Winsize)}
			}
			if err := writeServer(ctx, conn, wsproto.NewShells(entries)); err != nil {
				return err
			}

		case msg := <-chunkCh:
			if err := writeServer(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) sendBroadcastEvent(ctx context.Context, conn *websocket.Conn, evt any) error {
	switch e := evt.(type) {
	case session.UserDiff:
		var user *wsproto.WsUser
		if e.User != nil {
			w := wsproto.FromUserState(*e.User)
			user = &w
		}
		return writeServer(ctx, conn, wsproto.NewUserDiff(uint32(e.Uid), user))
	case session.Hear:
		return writeServer(ctx, conn, wsproto.NewHear(uint32(e.Uid), e.Name, e.Text))
	case session.ShellLatency:
		return writeServer(ctx, conn, wsproto.NewShellLatency(e.Millis))
	default:
		return nil
	}
}

func winsizeWire(w session.WsWinsize) wsproto.WsWinsizeWire {
	return wsproto.WsWinsizeWire{X: w.X, Y: w.Y, Rows: w.Rows, Cols: w.Cols}
}
