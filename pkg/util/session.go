package util

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewSessionKey returns an opaque key for an anonymous cart.
func NewSessionKey() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}

// ValidSessionKey reports whether key looks like a key from NewSessionKey.
func ValidSessionKey(key string) bool {
	if key == "" || len(key) > 40 {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(key))
	return err == nil
}
