package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func legacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func TestHashAndVerifyBcrypt(t *testing.T) {
	h := NewPasswordHasher(4) // MinCost keeps the test fast

	hash, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt format, got %q", hash[:4])
	}

	match, needsUpgrade := h.Verify("correct horse battery staple", hash)
	if !match {
		t.Error("correct password did not verify")
	}
	if needsUpgrade {
		t.Error("bcrypt hash flagged for upgrade")
	}

	if match, _ := h.Verify("wrong password", hash); match {
		t.Error("wrong password verified")
	}
}

func TestVerifyLegacyDigest(t *testing.T) {
	h := NewPasswordHasher(4)
	stored := legacyDigest("old-portal-password")

	match, needsUpgrade := h.Verify("old-portal-password", stored)
	if !match {
		t.Error("legacy digest did not verify")
	}
	if !needsUpgrade {
		t.Error("legacy match must request an upgrade")
	}

	match, needsUpgrade = h.Verify("wrong", stored)
	if match {
		t.Error("wrong password verified against legacy digest")
	}
	if needsUpgrade {
		t.Error("failed legacy verify must not request an upgrade")
	}

	// Mixed-case digests still verify; some legacy rows were stored
	// uppercased.
	if match, _ := h.Verify("old-portal-password", strings.ToUpper(stored)); !match {
		t.Error("uppercase legacy digest did not verify")
	}
}

func TestVerifyMalformedStoredValue(t *testing.T) {
	h := NewPasswordHasher(4)

	tests := []struct {
		name   string
		stored string
	}{
		{"empty", ""},
		{"plaintext junk", "not-a-hash"},
		{"hex but wrong length", "deadbeef"},
		{"right length, not hex", strings.Repeat("z", 64)},
		{"truncated bcrypt", "$2a$10$short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, needsUpgrade := h.Verify("anything", tt.stored)
			if match {
				t.Error("malformed stored value verified")
			}
			if needsUpgrade {
				t.Error("malformed value requested upgrade")
			}
		})
	}
}

func TestNewPasswordHasherClampsCost(t *testing.T) {
	// Out-of-range costs fall back to the bcrypt default rather than
	// producing hashes that cannot be verified.
	for _, cost := range []int{-1, 0, 3, 32, 100} {
		h := NewPasswordHasher(cost)
		hash, err := h.Hash("pw")
		if err != nil {
			t.Fatalf("Hash with clamped cost %d: %v", cost, err)
		}
		if match, _ := h.Verify("pw", hash); !match {
			t.Errorf("cost %d: hash did not round-trip", cost)
		}
	}
}
