package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"termshare/internal/utils"
)

// SessionToken is the single long-lived credential of one bridge process.
// It is minted at startup, never rotated, and dies with the process. After
// ticket auth is available it is only ever presented over authenticated
// HTTP, never on a WebSocket URL.
type SessionToken struct {
	value string
	hash  string
}

func NewSessionToken() *SessionToken {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate session token: " + err.Error())
	}
	value := hex.EncodeToString(b)
	return &SessionToken{
		value: value,
		hash:  utils.HashSHA256(value),
	}
}

// Value returns the raw token for the registry record and CLI output.
func (t *SessionToken) Value() string {
	return t.value
}

// Verify compares a presented credential in constant time.
func (t *SessionToken) Verify(candidate string) bool {
	providedHash := utils.HashSHA256(candidate)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(t.hash)) == 1
}
