package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// saltBytes is the per-user salt size. 64 bytes of crypto/rand entropy,
// stored base64-encoded alongside the hash.
const saltBytes = 64

// PBKDF2-SHA512 parameters. Iteration count follows the OWASP password
// storage recommendation for PBKDF2-HMAC-SHA512.
const (
	pbkdf2Iterations = 210_000
	pbkdf2KeyLen     = 64
)

// Hasher derives and verifies password digests. The pepper is a
// deployment-wide secret mixed into every digest alongside the per-user
// salt; it is injected at construction so tests can use a fixed value.
type Hasher struct {
	pepper []byte
}

// NewHasher creates a Hasher with the given pepper.
func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: []byte(pepper)}
}

// Hash computes the deterministic digest of (password, salt, pepper) using
// PBKDF2-SHA512, hex-encoded. Identical inputs always produce identical
// output -- verification depends on it. The salt is the base64 string as
// stored on the User record.
func (h *Hasher) Hash(password, salt string) (string, error) {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decoding password salt: %w", err)
	}

	// Salt then pepper, in that fixed order.
	seasoned := make([]byte, 0, len(rawSalt)+len(h.pepper))
	seasoned = append(seasoned, rawSalt...)
	seasoned = append(seasoned, h.pepper...)

	key := pbkdf2.Key([]byte(password), seasoned, pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
	return hex.EncodeToString(key), nil
}

// NewCredential generates a fresh random salt and the digest of the given
// password under it. Called at signup and on every password change -- a
// salt is never reused across password changes.
func (h *Hasher) NewCredential(password string) (salt, digest string, err error) {
	salt, err = newSalt()
	if err != nil {
		return "", "", err
	}

	digest, err = h.Hash(password, salt)
	if err != nil {
		return "", "", err
	}
	return salt, digest, nil
}

// newSalt draws saltBytes of crypto/rand entropy, base64-encoded for
// storage.
func newSalt() (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating password salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Verify reports whether password hashes to expected under salt.
// Constant-time comparison to avoid leaking prefix matches.
func (h *Hasher) Verify(password, salt, expected string) bool {
	computed, err := h.Hash(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1
}
