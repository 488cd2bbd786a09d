package protocol

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPassword computes the deterministic one-way digest sent over the
// wire in place of the password. Both sides compute it the same way so
// the client can verify the server's echoed hash against its own.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
