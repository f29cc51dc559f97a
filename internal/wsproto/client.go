package wsproto

// Client message type discriminants.
const (
	TypeAuthenticate = "authenticate"
	TypeSetName      = "set_name"
	TypeSetCursor    = "set_cursor"
	TypeSetFocus     = "set_focus"
	TypeCreate       = "create"
	TypeClose        = "close"
	TypeMove         = "move"
	TypeData         = "data"
	TypeSubscribe    = "subscribe"
	TypeChat         = "chat"
	TypePing         = "ping"
)

// ClientMessage is the WsClient tagged union. Exactly one of the
// pointer fields matching Type is populated.
type ClientMessage struct {
	Type string `cbor:"type"`

	Authenticate *AuthenticateMsg `cbor:"authenticate,omitempty"`
	SetName      *SetNameMsg      `cbor:"set_name,omitempty"`
	SetCursor    *SetCursorMsg    `cbor:"set_cursor,omitempty"`
	SetFocus     *SetFocusMsg     `cbor:"set_focus,omitempty"`
	Create       *CreateMsg       `cbor:"create,omitempty"`
	Close        *CloseMsg        `cbor:"close,omitempty"`
	Move         *MoveMsg         `cbor:"move,omitempty"`
	Data         *DataMsg         `cbor:"data,omitempty"`
	Subscribe    *SubscribeMsg    `cbor:"subscribe,omitempty"`
	Chat         *ChatMsg         `cbor:"chat,omitempty"`
	Ping         *PingMsg         `cbor:"ping,omitempty"`
}

type AuthenticateMsg struct {
	EncryptedZeros []byte `cbor:"encrypted_zeros"`
	WritePassword  []byte `cbor:"write_password,omitempty"`
}

type SetNameMsg struct {
	Name string `cbor:"name"`
}

type SetCursorMsg struct {
	Cursor *[2]int32 `cbor:"cursor,omitempty"`
}

type SetFocusMsg struct {
	Id *uint32 `cbor:"id,omitempty"`
}

type CreateMsg struct {
	X, Y int32 `cbor:"x"`
}

type CloseMsg struct {
	Id uint32 `cbor:"id"`
}

type MoveMsg struct {
	Id   uint32         `cbor:"id"`
	Size *WsWinsizeWire `cbor:"size,omitempty"`
}

type DataMsg struct {
	Id     uint32 `cbor:"id"`
	Data   []byte `cbor:"data"`
	Offset uint64 `cbor:"offset"`
}

type SubscribeMsg struct {
	Id       uint32 `cbor:"id"`
	Chunknum uint64 `cbor:"chunknum"`
}

type ChatMsg struct {
	Text string `cbor:"text"`
}

type PingMsg struct {
	Ts uint64 `cbor:"ts"`
}

// DecodeClient parses a binary WebSocket frame into a ClientMessage.
func DecodeClient(frame []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeClient serializes a ClientMessage, used by the reference test
// harness and the transparent proxy's loopback tests.
func EncodeClient(msg *ClientMessage) ([]byte, error) { return marshal(msg) }

func NewAuthenticate(encryptedZeros, writePassword []byte) *ClientMessage {
	return &ClientMessage{Type: TypeAuthenticate, Authenticate: &AuthenticateMsg{EncryptedZeros: encryptedZeros, WritePassword: writePassword}}
}

func NewSetName(name string) *ClientMessage {
	return &ClientMessage{Type: TypeSetName, SetName: &SetNameMsg{Name: name}}
}

func NewSetCursor(cursor *[2]int32) *ClientMessage {
	return &ClientMessage{Type: TypeSetCursor, SetCursor: &SetCursorMsg{Cursor: cursor}}
}

func NewSetFocus(id *uint32) *ClientMessage {
	return &ClientMessage{Type: TypeSetFocus, SetFocus: &SetFocusMsg{Id: id}}
}

func NewCreate(x, y int32) *ClientMessage {
	return &ClientMessage{Type: TypeCreate, Create: &CreateMsg{X: x, Y: y}}
}

func NewClose(id uint32) *ClientMessage {
	return &ClientMessage{Type: TypeClose, Close: &CloseMsg{Id: id}}
}

func NewMove(id uint32, size *WsWinsizeWire) *ClientMessage {
	return &ClientMessage{Type: TypeMove, Move: &MoveMsg{Id: id, Size: size}}
}

func NewData(id uint32, data []byte, offset uint64) *ClientMessage {
	return &ClientMessage{Type: TypeData, Data: &DataMsg{Id: id, Data: data, Offset: offset}}
}

func NewSubscribe(id uint32, chunknum uint64) *ClientMessage {
	return &ClientMessage{Type: TypeSubscribe, Subscribe: &SubscribeMsg{Id: id, Chunknum: chunknum}}
}

func NewChat(text string) *ClientMessage {
	return &ClientMessage{Type: TypeChat, Chat: &ChatMsg{Text: text}}
}

func NewPing(ts uint64) *ClientMessage {
	return &ClientMessage{Type: TypePing, Ping: &PingMsg{Ts: ts}}
}
