package token

import "testing"

func TestMintVerifyRoundTrip(t *testing.T) {
	a := New("test-secret")
	tok := a.Mint("abc1234567")
	if !a.Verify("abc1234567", tok) {
		t.Fatal("expected verify to succeed for minted token")
	}
}

func TestVerifyRejectsBitFlip(t *testing.T) {
	a := New("test-secret")
	tok := a.Mint("abc1234567")
	raw := []byte(tok)
	// Flip a character that isn't padding, preserving base64 validity where possible.
	raw[0] ^= 0x01
	if a.Verify("abc1234567", string(raw)) {
		t.Fatal("expected verify to fail after bit flip")
	}
}

func TestVerifyRejectsBadBase64(t *testing.T) {
	a := New("test-secret")
	if a.Verify("abc1234567", "not valid base64!!") {
		t.Fatal("expected verify to reject malformed base64")
	}
}

func TestVerifyRejectsWrongName(t *testing.T) {
	a := New("test-secret")
	tok := a.Mint("abc1234567")
	if a.Verify("other-name", tok) {
		t.Fatal("expected verify to fail for mismatched name")
	}
}

func TestGeneratedSecretWhenEmpty(t *testing.T) {
	a1 := New("")
	a2 := New("")
	tok := a1.Mint("abc1234567")
	if a2.Verify("abc1234567", tok) {
		t.Fatal("two independently generated secrets should not agree")
	}
}

func TestGenerateSessionNameLength(t *testing.T) {
	name := GenerateSessionName()
	if len(name) != 10 {
		t.Fatalf("session name length = %d, want 10", len(name))
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !ConstantTimeEqual([]byte("abc"), []byte("abc")) {
		t.Fatal("expected equal byte slices to compare equal")
	}
	if ConstantTimeEqual([]byte("abc"), []byte("abd")) {
		t.Fatal("expected differing byte slices to compare unequal")
	}
	if ConstantTimeEqual([]byte("abc"), []byte("ab")) {
		t.Fatal("expected differing lengths to compare unequal")
	}
}
