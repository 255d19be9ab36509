// Package credentials implements the password digest used for account
// creation and login. The digest is a single-pass SHA-256 of the plaintext,
// matching what the web shell computes locally: there is no salt and no
// iteration count, because the check happens entirely within the same trust
// domain as the data it protects.
package credentials

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the lowercase hex SHA-256 digest of the plaintext.
// Deterministic: the same input always yields the same 64-character string.
func Digest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the plaintext digests to storedDigest.
// A mismatch is a normal outcome (wrong password), not an error.
func Verify(plaintext, storedDigest string) bool {
	return Digest(plaintext) == storedDigest
}
