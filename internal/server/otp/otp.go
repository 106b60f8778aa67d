// Package otp generates and hashes the one-time codes emailed during signup.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// Code is a freshly generated one-time code together with the values that
// get persisted: the sha256 hex digest of the code and its expiry instant.
// The plaintext code is only ever handed to the mailer.
type Code struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// Generate produces a random 6-character hex code valid for ttl.
func Generate(ttl time.Duration) (*Code, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	plain := hex.EncodeToString(b)
	return &Code{
		Plain:     plain,
		Hash:      Hash(plain),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// Hash returns the sha256 hex digest of a code, the same transformation
// applied at issuance, so a submitted code can be compared to a stored hash.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Equal compares two hex digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
