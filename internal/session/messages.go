package session

// ServerMessage is the set of messages the session's outbound queue can
// carry to the host channel worker (the `ServerUpdate.server_message`
// variants of §6). Consumers type-switch on the concrete type.
type ServerMessage interface{ isServerMessage() }

// Input carries viewer-originated ciphertext to be written to the host's
// pty at the given offset.
type Input struct {
	Id     Sid
	Data   []byte
	Offset uint64
}

// CreateShellCmd instructs the host to create a new shell at (X, Y).
type CreateShellCmd struct {
	Id   Sid
	X, Y int32
}

// CloseShellCmd instructs the host to close a shell.
type CloseShellCmd struct {
	Id Sid
}

// Sync carries the current sequence numbers for all open shells.
type Sync struct {
	Seqnums map[Sid]uint64
}

// Resize instructs the host to resize a shell's pty.
type Resize struct {
	Id         Sid
	Rows, Cols uint16
}

// Ping carries a round-trip timestamp the host is expected to echo back
// via a client Pong.
type Ping struct {
	Ts uint64
}

// ErrorMsg carries a fatal or advisory error string to the host.
type ErrorMsg struct {
	Message string
}

func (Input) isServerMessage()          {}
func (CreateShellCmd) isServerMessage() {}
func (CloseShellCmd) isServerMessage()  {}
func (Sync) isServerMessage()           {}
func (Resize) isServerMessage()         {}
func (Ping) isServerMessage()           {}
func (ErrorMsg) isServerMessage()       {}
