// Package snapshot implements the session snapshot codec: a stable
// structured encoding (CBOR) compressed with zstd, used to persist a
// session's durable state to the mesh and to migrate it between nodes.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/shareterm/coordinatord/internal/session"
)

// ErrTooLarge is returned by Encode when the encoded (pre-compression)
// payload exceeds session.MaxSnapshotSize, and by Decode when the
// decompressed payload would exceed it.
var ErrTooLarge = errors.New("snapshot: payload exceeds MaxSnapshotSize")

// wireShell mirrors session.ExportedShell for the wire format.
type wireShell struct {
	Seqnum      uint64   `cbor:"seqnum"`
	Data        [][]byte `cbor:"data"`
	ChunkOffset uint64   `cbor:"chunk_offset"`
	ByteOffset  uint64   `cbor:"byte_offset"`
	Closed      bool     `cbor:"closed"`
	WinsizeX    int32    `cbor:"winsize_x"`
	WinsizeY    int32    `cbor:"winsize_y"`
	WinsizeRows uint16   `cbor:"winsize_rows"`
	WinsizeCols uint16   `cbor:"winsize_cols"`
}

// wireSession is the structured encoding of SerializedSession (§6).
type wireSession struct {
	EncryptedZeros    []byte               `cbor:"encrypted_zeros"`
	Name              string               `cbor:"name"`
	WritePasswordHash []byte               `cbor:"write_password_hash"`
	DisplayName       string               `cbor:"display_name"`
	NextSid           uint32               `cbor:"next_sid"`
	NextUid           uint32               `cbor:"next_uid"`
	Shells            map[uint32]wireShell `cbor:"shells"`
	ShellOrder        []uint32             `cbor:"shell_order"`
}

// Encode serializes s, pruning each shell's retained tail to at most
// session.ShellSnapshotBytes before encoding (the live session's buffer
// is untouched — pruning only affects the copy taken by Export). The
// encoded payload must be smaller than session.MaxSnapshotSize before
// compression, or Encode fails. Output is zstd level 3 compressed.
func Encode(s *session.Session) ([]byte, error) {
	shells, order, nextSid, nextUid := s.Export()

	wire := wireSession{
		EncryptedZeros:    s.Metadata.EncryptedZeros,
		Name:              s.Metadata.Name,
		WritePasswordHash: s.Metadata.WritePasswordHash,
		DisplayName:       s.Metadata.DisplayName,
		NextSid:           nextSid,
		NextUid:           nextUid,
		Shells:            make(map[uint32]wireShell, len(shells)),
		ShellOrder:        order,
	}

	for id, sh := range shells {
		prune(&sh)
		wire.Shells[id] = wireShell{
			Seqnum:      sh.Seqnum,
			Data:        sh.Data,
			ChunkOffset: sh.ChunkOffset,
			ByteOffset:  sh.ByteOffset,
			Closed:      sh.Closed,
			WinsizeX:    sh.Winsize.X,
			WinsizeY:    sh.Winsize.Y,
			WinsizeRows: sh.Winsize.Rows,
			WinsizeCols: sh.Winsize.Cols,
		}
	}

	encoded, err := cbor.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	if len(encoded) >= session.MaxSnapshotSize {
		return nil, ErrTooLarge
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("snapshot: zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(encoded, nil), nil
}

// prune trims sh.Data's leading chunks in place until the retained byte
// length is at most session.ShellSnapshotBytes, advancing ChunkOffset
// and ByteOffset to match. A shell already under the threshold is left
// untouched (no-op), matching the §8 boundary behavior.
func prune(sh *session.ExportedShell) {
	var retained uint64
	for _, c := range sh.Data {
		retained += uint64(len(c))
	}
	for retained > session.ShellSnapshotBytes && len(sh.Data) > 0 {
		dropped := sh.Data[0]
		sh.Data = sh.Data[1:]
		sh.ChunkOffset++
		sh.ByteOffset += uint64(len(dropped))
		retained -= uint64(len(dropped))
	}
}

// Decode decompresses (bounded by session.MaxSnapshotSize) and rebuilds
// a session with fresh notify primitives, a restored open-shells
// register, and a rewound id counter.
func Decode(data []byte) (*session.Session, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("snapshot: zstd reader: %w", err)
	}
	defer dec.Close()

	// Bound the decompressed size, not the compressed input: a zstd
	// bomb could otherwise inflate far past MaxSnapshotSize.
	limited := io.LimitReader(dec, session.MaxSnapshotSize+1)
	decoded, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w", err)
	}
	if len(decoded) > session.MaxSnapshotSize {
		return nil, ErrTooLarge
	}

	var wire wireSession
	if err := cbor.Unmarshal(decoded, &wire); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}

	shells := make(map[session.Sid]session.ExportedShell, len(wire.Shells))
	for id, ws := range wire.Shells {
		shells[id] = session.ExportedShell{
			Seqnum:      ws.Seqnum,
			Data:        ws.Data,
			ChunkOffset: ws.ChunkOffset,
			ByteOffset:  ws.ByteOffset,
			Closed:      ws.Closed,
			Winsize: session.WsWinsize{
				X: ws.WinsizeX, Y: ws.WinsizeY,
				Rows: ws.WinsizeRows, Cols: ws.WinsizeCols,
			},
		}
	}

	meta := session.Metadata{
		Name:              wire.Name,
		EncryptedZeros:    wire.EncryptedZeros,
		DisplayName:       wire.DisplayName,
		WritePasswordHash: wire.WritePasswordHash,
	}

	return session.Restore(meta, shells, wire.ShellOrder, wire.NextSid, wire.NextUid), nil
}

