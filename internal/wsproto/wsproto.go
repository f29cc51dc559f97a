// Package wsproto defines the §6 viewer WebSocket wire protocol:
// WsClient and WsServer are tagged unions carried as CBOR binary frames.
// Per §9's design note ("implement as sum types with explicit
// discriminants... do not use open inheritance"), each union is one Go
// struct with a string Type discriminant and one non-nil pointer field
// per variant — the same flattened-oneof shape the teacher used for its
// JSON envelopes, adapted to CBOR tags and this protocol's vocabulary.
package wsproto

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/shareterm/coordinatord/internal/session"
)

// WsUser mirrors session.UserState on the wire.
type WsUser struct {
	Name     string      `cbor:"name"`
	Cursor   *[2]int32   `cbor:"cursor,omitempty"`
	Focus    *uint32     `cbor:"focus,omitempty"`
	CanWrite bool        `cbor:"can_write"`
}

// FromUserState converts a session.UserState into its wire form.
func FromUserState(u session.UserState) WsUser {
	w := WsUser{Name: u.Name, CanWrite: u.CanWrite}
	if u.Cursor != nil {
		c := *u.Cursor
		w.Cursor = &c
	}
	if u.Focus != nil {
		f := uint32(*u.Focus)
		w.Focus = &f
	}
	return w
}

// WsWinsizeWire mirrors session.WsWinsize on the wire.
type WsWinsizeWire struct {
	X, Y       int32  `cbor:"x"`
	Rows, Cols uint16 `cbor:"rows"`
}

func fromWinsize(w session.WsWinsize) WsWinsizeWire {
	return WsWinsizeWire{X: w.X, Y: w.Y, Rows: w.Rows, Cols: w.Cols}
}

// ToWinsize converts a wire winsize back into its session form.
func (w WsWinsizeWire) ToWinsize() session.WsWinsize {
	return session.WsWinsize{X: w.X, Y: w.Y, Rows: w.Rows, Cols: w.Cols}
}

// ShellEntry is one (Sid, WsWinsize) pair, used by both Shells and the
// open-shells register conversion helper.
type ShellEntry struct {
	Id      uint32        `cbor:"id"`
	Winsize WsWinsizeWire `cbor:"winsize"`
}

// UserEntry is one (Uid, WsUser) pair used by the Users snapshot.
type UserEntry struct {
	Id   uint32 `cbor:"id"`
	User WsUser `cbor:"user"`
}

// Marshal and Unmarshal are thin wrappers so callers never import
// fxamacker/cbor directly, keeping the wire codec choice localized to
// this package.
func marshal(v any) ([]byte, error) { return cbor.Marshal(v) }
func unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// errUnknownType is returned by Decode when the Type discriminant does
// not match any known variant.
func errUnknownType(kind string) error {
	return fmt.Errorf("wsproto: unknown message type %q", kind)
}
