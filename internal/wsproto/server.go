package wsproto

// Server message type discriminants.
const (
	TypeHello        = "hello"
	TypeInvalidAuth  = "invalid_auth"
	TypeUsers        = "users"
	TypeUserDiff     = "user_diff"
	TypeShells       = "shells"
	TypeChunks       = "chunks"
	TypeHear         = "hear"
	TypeShellLatency = "shell_latency"
	TypePong         = "pong"
	TypeError        = "error"
)

// ServerMessage is the WsServer tagged union.
type ServerMessage struct {
	Type string `cbor:"type"`

	Hello        *HelloMsg        `cbor:"hello,omitempty"`
	Users        *UsersMsg        `cbor:"users,omitempty"`
	UserDiff     *UserDiffMsg     `cbor:"user_diff,omitempty"`
	Shells       *ShellsMsg       `cbor:"shells,omitempty"`
	Chunks       *ChunksMsg       `cbor:"chunks,omitempty"`
	Hear         *HearMsg         `cbor:"hear,omitempty"`
	ShellLatency *ShellLatencyMsg `cbor:"shell_latency,omitempty"`
	Pong         *PongMsg         `cbor:"pong,omitempty"`
	Error        *ErrorMsg        `cbor:"error,omitempty"`
}

type HelloMsg struct {
	Id   uint32 `cbor:"id"`
	Name string `cbor:"name"`
}

type UsersMsg struct {
	Users []UserEntry `cbor:"users"`
}

type UserDiffMsg struct {
	Id   uint32  `cbor:"id"`
	User *WsUser `cbor:"user,omitempty"`
}

type ShellsMsg struct {
	Shells []ShellEntry `cbor:"shells"`
}

type ChunksMsg struct {
	Id     uint32   `cbor:"id"`
	Seqnum uint64   `cbor:"seqnum"`
	Chunks [][]byte `cbor:"chunks"`
}

type HearMsg struct {
	Uid  uint32 `cbor:"uid"`
	Name string `cbor:"name"`
	Text string `cbor:"text"`
}

type ShellLatencyMsg struct {
	Millis uint64 `cbor:"millis"`
}

type PongMsg struct {
	Ts uint64 `cbor:"ts"`
}

type ErrorMsg struct {
	Message string `cbor:"message"`
}

// DecodeServer parses a binary WebSocket frame into a ServerMessage,
// used by the transparent proxy's test harness and any future client
// tooling.
func DecodeServer(frame []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeServer serializes a ServerMessage into a binary WebSocket frame.
func EncodeServer(msg *ServerMessage) ([]byte, error) { return marshal(msg) }

func NewHello(id uint32, name string) *ServerMessage {
	return &ServerMessage{Type: TypeHello, Hello: &HelloMsg{Id: id, Name: name}}
}

func NewInvalidAuth() *ServerMessage { return &ServerMessage{Type: TypeInvalidAuth} }

func NewUsers(users []UserEntry) *ServerMessage {
	return &ServerMessage{Type: TypeUsers, Users: &UsersMsg{Users: users}}
}

func NewUserDiff(id uint32, user *WsUser) *ServerMessage {
	return &ServerMessage{Type: TypeUserDiff, UserDiff: &UserDiffMsg{Id: id, User: user}}
}

func NewShells(shells []ShellEntry) *ServerMessage {
	return &ServerMessage{Type: TypeShells, Shells: &ShellsMsg{Shells: shells}}
}

func NewChunks(id uint32, seqnum uint64, chunks [][]byte) *ServerMessage {
	return &ServerMessage{Type: TypeChunks, Chunks: &ChunksMsg{Id: id, Seqnum: seqnum, Chunks: chunks}}
}

func NewHear(uid uint32, name, text string) *ServerMessage {
	return &ServerMessage{Type: TypeHear, Hear: &HearMsg{Uid: uid, Name: name, Text: text}}
}

func NewShellLatency(millis uint64) *ServerMessage {
	return &ServerMessage{Type: TypeShellLatency, ShellLatency: &ShellLatencyMsg{Millis: millis}}
}

func NewPong(ts uint64) *ServerMessage {
	return &ServerMessage{Type: TypePong, Pong: &PongMsg{Ts: ts}}
}

func NewError(message string) *ServerMessage {
	return &ServerMessage{Type: TypeError, Error: &ErrorMsg{Message: message}}
}
