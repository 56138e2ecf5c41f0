package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// sessionIDBytes is the entropy of a session identifier: 128 bits.
const sessionIDBytes = 16

var sessionIDEncoding = base64.RawURLEncoding

// NewSessionID returns a fresh session identifier in unpadded base64url form. It is
// carried as the token jti and used as the session registry key.
func NewSessionID() (string, error) {
	var raw [sessionIDBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return sessionIDEncoding.EncodeToString(raw[:]), nil
}

// ValidSessionID reports whether s has the shape NewSessionID produces.
func ValidSessionID(s string) bool {
	if len(s) != sessionIDEncoding.EncodedLen(sessionIDBytes) {
		return false
	}
	raw, err := sessionIDEncoding.DecodeString(s)
	return err == nil && len(raw) == sessionIDBytes
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("random size must be > 0")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
