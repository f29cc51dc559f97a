package snapshot

import (
	"bytes"
	"testing"

	"github.com/shareterm/coordinatord/internal/session"
)

func buildSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.Metadata{
		Name:           "abc1234567",
		EncryptedZeros: []byte("0123456789abcdef"),
		DisplayName:    "test session",
	})
	if err := s.AddShell(0, [2]int32{0, 0}); err != nil {
		t.Fatalf("AddShell: %v", err)
	}
	if err := s.AddData(0, []byte("hello world"), 0); err != nil {
		t.Fatalf("AddData: %v", err)
	}
	s.UserScope(0, true)
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := buildSession(t)
	before := s.SequenceNumbers()

	blob, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	restored, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	after := restored.SequenceNumbers()
	if before[0] != after[0] {
		t.Fatalf("seqnum mismatch: before=%d after=%d", before[0], after[0])
	}
	if restored.Metadata.Name != s.Metadata.Name {
		t.Fatalf("name mismatch: %q vs %q", restored.Metadata.Name, s.Metadata.Name)
	}

	open := restored.SubscribeShells().Get()
	if len(open) != 1 || open[0].Id != 0 {
		t.Fatalf("restored open shells = %+v, want one entry id 0", open)
	}

	page, _, alive := restored.PollChunks(0, 0)
	if !alive || page == nil {
		t.Fatal("expected restored shell to be alive with retained data")
	}
	var buf bytes.Buffer
	for _, c := range page.Chunks {
		buf.Write(c)
	}
	if buf.String() != "hello world" {
		t.Fatalf("restored content = %q, want %q", buf.String(), "hello world")
	}
}

func TestEncodePrunesToSnapshotBytes(t *testing.T) {
	s := session.New(session.Metadata{Name: "abc1234567", EncryptedZeros: []byte("0123456789abcdef")})
	s.AddShell(0, [2]int32{0, 0})
	const chunkSize = 1024
	chunk := make([]byte, chunkSize)
	var seq uint64
	for i := 0; i < 100; i++ { // 100KiB >> 32KiB snapshot threshold
		s.AddData(0, chunk, seq)
		seq += chunkSize
	}

	blob, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	restored, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	page, _, alive := restored.PollChunks(0, 0)
	if !alive || page == nil {
		t.Fatal("expected alive restored shell")
	}
	var retained int
	for _, c := range page.Chunks {
		retained += len(c)
	}
	if uint64(retained) > session.ShellSnapshotBytes {
		t.Fatalf("retained %d bytes after restore, want <= %d", retained, session.ShellSnapshotBytes)
	}
	// The restored byte_offset must equal the session's byte_offset at
	// snapshot time (scenario 4): since all chunks are the same size,
	// seq equals the first yielded chunk's absolute byte offset.
	if page.Seqnum == 0 {
		t.Fatal("expected pruning to advance the byte offset")
	}
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	s := session.New(session.Metadata{Name: "abc1234567", EncryptedZeros: []byte("0123456789abcdef")})
	// Many shells with near-threshold data to blow past MaxSnapshotSize
	// once CBOR-encoded (each shell keeps up to ShellSnapshotBytes).
	for i := uint32(0); i < 200; i++ {
		s.AddShell(i, [2]int32{0, 0})
		s.AddData(i, bytes.Repeat([]byte{'x'}, session.ShellSnapshotBytes), 0)
	}
	if _, err := Encode(s); err != ErrTooLarge {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
