package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Stored hashes come in two formats: bcrypt ("$2a$..." / "$2b$...") and
// the legacy bare hex SHA-256 digests inherited from the previous portal.
// Legacy hashes still verify, but callers are told to re-hash so the weak
// format disappears one successful login at a time.

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash derives a bcrypt hash at the configured cost.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Verify checks plaintext against a stored hash of either format.
// needsUpgrade is true only when the match succeeded against the legacy
// format. A malformed stored value verifies as no-match rather than
// erroring, so a corrupted row cannot take down the login path.
func (h *PasswordHasher) Verify(plaintext, stored string) (match, needsUpgrade bool) {
	switch {
	case strings.HasPrefix(stored, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext))
		return err == nil, false

	case isLegacyDigest(stored):
		sum := sha256.Sum256([]byte(plaintext))
		digest := hex.EncodeToString(sum[:])
		ok := subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(stored))) == 1
		return ok, ok

	default:
		return false, false
	}
}

// DummyVerify burns a bcrypt comparison's worth of time. Called when the
// account does not exist so response timing does not reveal which
// usernames are registered.
func (h *PasswordHasher) DummyVerify(plaintext string) {
	_, _ = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

func isLegacyDigest(s string) bool {
	if len(s) != hex.EncodedLen(sha256.Size) {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
