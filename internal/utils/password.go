package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordIterations = 10000
	passwordKeyLen     = 32
)

// HashPassword derives a hex PBKDF2-SHA256 hash of plain with the
// installation-wide salt.  The result is deterministic so the login lookup
// can compare hashes for equality.
func HashPassword(plain, salt string) string {
	key := pbkdf2.Key([]byte(plain), []byte(salt), passwordIterations, passwordKeyLen, sha256.New)
	return hex.EncodeToString(key)
}
