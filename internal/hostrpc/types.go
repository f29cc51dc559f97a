// Package hostrpc implements §4.10: the bidirectional host RPC service
// (open, channel, close) over a real HTTP/2 gRPC transport. Because no
// .proto file or generated pb package is available in this build
// environment, the wire messages are hand-written Go structs and the
// grpc.ServiceDesc is hand-assembled rather than codegen'd — see
// [[DESIGN.md]] "Custom gRPC wire codec" for why this is a toolchain
// workaround, not a design preference. grpc-go itself remains the
// genuine transport and streaming layer.
package hostrpc

import "github.com/shareterm/coordinatord/internal/session"

// OpenRequest is the `open` RPC request. Name here is the session's
// display name (metadata.display_name), not its ten-character
// identifier — that is generated server-side and returned in
// OpenResponse.Name.
type OpenRequest struct {
	Origin            string `cbor:"origin"`
	EncryptedZeros    []byte `cbor:"encrypted_zeros"`
	Name              string `cbor:"name"`
	WritePasswordHash []byte `cbor:"write_password_hash,omitempty"`
}

type OpenResponse struct {
	Name  string `cbor:"name"`
	Token string `cbor:"token"`
	Url   string `cbor:"url"`
}

type CloseRequest struct {
	Name  string `cbor:"name"`
	Token string `cbor:"token"`
}

type CloseResponse struct{}

// ClientUpdate is the `ClientUpdate.client_message` tagged union (§6).
// Exactly one field is set; all absent means a bare heartbeat.
type ClientUpdate struct {
	Hello       *string          `cbor:"hello,omitempty"`
	Data        *ClientData      `cbor:"data,omitempty"`
	CreatedShell *CreatedShell   `cbor:"created_shell,omitempty"`
	ClosedShell *uint32          `cbor:"closed_shell,omitempty"`
	Pong        *uint64          `cbor:"pong,omitempty"`
	Error       *string          `cbor:"error,omitempty"`
}

type ClientData struct {
	Id   uint32 `cbor:"id"`
	Data []byte `cbor:"data"`
	Seq  uint64 `cbor:"seq"`
}

type CreatedShell struct {
	Id   uint32 `cbor:"id"`
	X, Y int32  `cbor:"x"`
}

// ServerUpdate is the `ServerUpdate.server_message` tagged union.
type ServerUpdate struct {
	Input       *ServerInput  `cbor:"input,omitempty"`
	CreateShell *ServerCreate `cbor:"create_shell,omitempty"`
	CloseShell  *uint32       `cbor:"close_shell,omitempty"`
	Sync        *ServerSync   `cbor:"sync,omitempty"`
	Resize      *ServerResize `cbor:"resize,omitempty"`
	Ping        *uint64       `cbor:"ping,omitempty"`
	Error       *string       `cbor:"error,omitempty"`
}

type ServerInput struct {
	Id     uint32 `cbor:"id"`
	Data   []byte `cbor:"data"`
	Offset uint64 `cbor:"offset"`
}

type ServerCreate struct {
	Id   uint32 `cbor:"id"`
	X, Y int32  `cbor:"x"`
}

type ServerSync struct {
	Seqnums map[uint32]uint64 `cbor:"seqnums"`
}

type ServerResize struct {
	Id         uint32 `cbor:"id"`
	Rows, Cols uint16 `cbor:"rows"`
}

// toServerUpdate converts a session.ServerMessage (the internal queue
// element) into its wire representation.
func toServerUpdate(msg session.ServerMessage) *ServerUpdate {
	switch m := msg.(type) {
	case session.Input:
		return &ServerUpdate{Input: &ServerInput{Id: uint32(m.Id), Data: m.Data, Offset: m.Offset}}
	case session.CreateShellCmd:
		return &ServerUpdate{CreateShell: &ServerCreate{Id: uint32(m.Id), X: m.X, Y: m.Y}}
	case session.CloseShellCmd:
		id := uint32(m.Id)
		return &ServerUpdate{CloseShell: &id}
	case session.Sync:
		seqnums := make(map[uint32]uint64, len(m.Seqnums))
		for id, seq := range m.Seqnums {
			seqnums[uint32(id)] = seq
		}
		return &ServerUpdate{Sync: &ServerSync{Seqnums: seqnums}}
	case session.Resize:
		return &ServerUpdate{Resize: &ServerResize{Id: uint32(m.Id), Rows: m.Rows, Cols: m.Cols}}
	case session.Ping:
		return &ServerUpdate{Ping: &m.Ts}
	case session.ErrorMsg:
		return &ServerUpdate{Error: &m.Message}
	default:
		return nil
	}
}
