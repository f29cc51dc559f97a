// Package token implements the HMAC-based bearer token authority used to
// gate host RPC access to a session.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Authority mints and verifies tokens over session names under a single
// server-wide secret.
type Authority struct {
	secret []byte
}

// New builds an Authority over the given secret. If secret is empty, a
// fresh 22-character alphanumeric secret is generated.
func New(secret string) *Authority {
	if secret == "" {
		secret = generateSecret(22)
	}
	return &Authority{secret: []byte(secret)}
}

// Mint returns the base64-encoded HMAC-SHA256 of name under the server
// secret.
func (a *Authority) Mint(name string) string {
	return base64.StdEncoding.EncodeToString(a.mac(name))
}

// Verify reports whether token is a valid token for name. Any decode
// failure or length mismatch is rejected without panicking.
func (a *Authority) Verify(name, tok string) bool {
	given, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		return false
	}
	want := a.mac(name)
	if len(given) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare(given, want) == 1
}

func (a *Authority) mac(name string) []byte {
	h := hmac.New(sha256.New, a.secret)
	h.Write([]byte(name))
	return h.Sum(nil)
}

func generateSecret(n int) string {
	out := make([]byte, n)
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("token: failed to read random secret: " + err.Error())
	}
	for i, b := range buf {
		out[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return string(out)
}

// GenerateSessionName returns a ten-character alphanumeric session name.
func GenerateSessionName() string {
	return generateSecret(10)
}

// ConstantTimeEqual performs a constant-time comparison of two byte
// slices, used for the encrypted-zeros probe and write-password checks
// at the viewer boundary (§4.11). Unequal lengths are rejected without
// leaking timing beyond the length check itself.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
