package wsproto

import (
	"bytes"
	"testing"

	"github.com/shareterm/coordinatord/internal/session"
)

func TestClientRoundTrip(t *testing.T) {
	cases := []*ClientMessage{
		NewAuthenticate([]byte("0123456789abcdef"), nil),
		NewAuthenticate([]byte("0123456789abcdef"), []byte("pw")),
		NewSetName("alice"),
		NewSetCursor(&[2]int32{1, 2}),
		NewSetCursor(nil),
		NewCreate(10, 20),
		NewClose(7),
		NewMove(7, &WsWinsizeWire{X: 1, Y: 2, Rows: 24, Cols: 80}),
		NewData(7, []byte("hello"), 42),
		NewSubscribe(7, 0),
		NewChat("hi"),
		NewPing(123),
	}

	for _, want := range cases {
		blob, err := EncodeClient(want)
		if err != nil {
			t.Fatalf("EncodeClient(%s): %v", want.Type, err)
		}
		got, err := DecodeClient(blob)
		if err != nil {
			t.Fatalf("DecodeClient(%s): %v", want.Type, err)
		}
		if got.Type != want.Type {
			t.Fatalf("round trip type = %q, want %q", got.Type, want.Type)
		}
	}
}

func TestDataMessagePreservesBytes(t *testing.T) {
	msg := NewData(1, []byte("ciphertext"), 99)
	blob, err := EncodeClient(msg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeClient(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data == nil || !bytes.Equal(got.Data.Data, []byte("ciphertext")) || got.Data.Offset != 99 {
		t.Fatalf("round-tripped Data payload mismatch: %+v", got.Data)
	}
}

func TestServerRoundTrip(t *testing.T) {
	cases := []*ServerMessage{
		NewHello(3, "abc1234567"),
		NewInvalidAuth(),
		NewUsers([]UserEntry{{Id: 1, User: WsUser{Name: "bob", CanWrite: true}}}),
		NewUserDiff(1, &WsUser{Name: "bob", CanWrite: true}),
		NewUserDiff(1, nil),
		NewShells([]ShellEntry{{Id: 1, Winsize: WsWinsizeWire{Rows: 24, Cols: 80}}}),
		NewChunks(1, 0, [][]byte{[]byte("a"), []byte("b")}),
		NewHear(1, "bob", "hi"),
		NewShellLatency(42),
		NewPong(123),
		NewError("nope"),
	}

	for _, want := range cases {
		blob, err := EncodeServer(want)
		if err != nil {
			t.Fatalf("EncodeServer(%s): %v", want.Type, err)
		}
		got, err := DecodeServer(blob)
		if err != nil {
			t.Fatalf("DecodeServer(%s): %v", want.Type, err)
		}
		if got.Type != want.Type {
			t.Fatalf("round trip type = %q, want %q", got.Type, want.Type)
		}
	}
}

func TestFromUserStateConvertsOptionalFields(t *testing.T) {
	focus := session.Sid(5)
	u := session.UserState{Name: "carol", Cursor: &[2]int32{3, 4}, Focus: &focus, CanWrite: true}
	w := FromUserState(u)
	if w.Name != "carol" || !w.CanWrite {
		t.Fatalf("unexpected conversion: %+v", w)
	}
	if w.Cursor == nil || *w.Cursor != [2]int32{3, 4} {
		t.Fatalf("cursor not converted: %+v", w.Cursor)
	}
	if w.Focus == nil || *w.Focus != 5 {
		t.Fatalf("focus not converted: %+v", w.Focus)
	}
}
