// Package session implements the in-memory aggregate for one shared
// terminal room: shells with rolling byte buffers, users, window layout,
// a broadcast bus to viewers, a bounded outbound queue to the host, a
// "sync-now" pulse, and a shutdown signal.
package session

import "time"

// Sid identifies one pseudo-terminal within a session.
type Sid = uint32

// Uid identifies one connected viewer.
type Uid = uint32

const (
	// ShellStoredBytes bounds the rolling ciphertext buffer retained per shell.
	ShellStoredBytes = 2 * 1024 * 1024
	// ShellSnapshotBytes bounds the per-shell tail retained in a snapshot.
	ShellSnapshotBytes = 32 * 1024
	// MaxSnapshotSize bounds the encoded (pre-compression) snapshot payload.
	MaxSnapshotSize = 4 * 1024 * 1024

	// DisconnectedSessionExpiry is the idle time after which an owned but
	// disconnected session is evicted.
	DisconnectedSessionExpiry = 5 * time.Minute
	// SyncInterval is the host channel's periodic Sync cadence.
	SyncInterval = 5 * time.Second
	// OutboundQueueCapacity bounds the session's queue to the host channel.
	OutboundQueueCapacity = 256
	// BroadcastBacklog bounds the viewer broadcast bus.
	BroadcastBacklog = 64
)

// WsWinsize is a shell's window geometry, including its screen position.
type WsWinsize struct {
	X    int32
	Y    int32
	Rows uint16
	Cols uint16
}

// DefaultWinsize is used for newly created shells before any resize.
func DefaultWinsize(x, y int32) WsWinsize {
	return WsWinsize{X: x, Y: y, Rows: 24, Cols: 80}
}

// Metadata is immutable after session creation.
type Metadata struct {
	Name              string
	EncryptedZeros    []byte
	DisplayName       string
	WritePasswordHash []byte // nil if the session has no write password
}

// UserState tracks one connected viewer's identity and scope.
type UserState struct {
	Name     string
	Cursor   *[2]int32
	Focus    *Sid
	CanWrite bool
}
