package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/config"
	"github.com/harborhealth/caregate/internal/domain"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		Secret:      "test-secret-at-least-32-characters!!",
		TTL:         8 * time.Hour,
		MaxLifetime: 24 * time.Hour,
		Issuer:      "caregate-test",
	}
}

func testUser() *domain.User {
	staffID := uuid.New()
	return &domain.User{
		ID:       uuid.New(),
		Username: "dr.wells",
		Role:     domain.RoleDoctor,
		StaffID:  &staffID,
	}
}

func TestSessionRoundTrip(t *testing.T) {
	m := NewSessionManager(testSessionConfig())
	user := testUser()

	token, expiresAt, err := m.Create(user)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if time.Until(expiresAt) > 8*time.Hour || time.Until(expiresAt) < 7*time.Hour {
		t.Errorf("expiry not within the TTL window: %v", expiresAt)
	}

	sess, err := m.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sess.UserID != user.ID {
		t.Errorf("user id mismatch: %v != %v", sess.UserID, user.ID)
	}
	if sess.Role != domain.RoleDoctor {
		t.Errorf("role mismatch: %v", sess.Role)
	}
	if sess.StaffID == nil || *sess.StaffID != *user.StaffID {
		t.Error("staff id did not survive the round trip")
	}
	if sess.FirstIssuedAt.IsZero() {
		t.Error("first-issued timestamp missing")
	}
}

func TestResolveRejectsForgedTokens(t *testing.T) {
	m := NewSessionManager(testSessionConfig())
	user := testUser()

	token, _, err := m.Create(user)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"tampered payload", token[:len(token)-10] + "AAAAAAAAAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Resolve(tt.token); err == nil {
				t.Error("expected rejection")
			}
		})
	}

	// Token signed under a different secret.
	other := NewSessionManager(config.SessionConfig{
		Secret:      "a-completely-different-signing-key!!",
		TTL:         8 * time.Hour,
		MaxLifetime: 24 * time.Hour,
		Issuer:      "caregate-test",
	})
	foreign, _, err := other.Create(user)
	if err != nil {
		t.Fatalf("Create with other secret: %v", err)
	}
	if _, err := m.Resolve(foreign); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("foreign-signed token: got %v, want ErrSessionInvalid", err)
	}
}

func TestResolveRejectsWrongIssuer(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Issuer = "some-other-service"
	other := NewSessionManager(cfg)

	token, _, err := other.Create(testUser())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	m := NewSessionManager(testSessionConfig())
	if _, err := m.Resolve(token); err == nil {
		t.Error("token with wrong issuer resolved")
	}
}

func TestRefreshExtendsSlidingWindow(t *testing.T) {
	m := NewSessionManager(testSessionConfig())

	token, _, err := m.Create(testUser())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sess, err := m.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Freshly created sessions are not past the midpoint.
	if m.ShouldRefresh(sess) {
		t.Error("fresh session asked for refresh")
	}

	refreshed, newExpiry, err := m.Refresh(sess)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !newExpiry.After(time.Now()) {
		t.Error("refreshed expiry is not in the future")
	}

	// The refreshed token keeps the original first-issue anchor.
	sess2, err := m.Resolve(refreshed)
	if err != nil {
		t.Fatalf("Resolve refreshed: %v", err)
	}
	if !sess2.FirstIssuedAt.Equal(sess.FirstIssuedAt) {
		t.Errorf("first-issued changed across refresh: %v -> %v", sess.FirstIssuedAt, sess2.FirstIssuedAt)
	}
}

func TestAbsoluteLifetimeCap(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TTL = 8 * time.Hour
	cfg.MaxLifetime = 10 * time.Hour
	m := NewSessionManager(cfg)

	token, _, err := m.Create(testUser())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sess, err := m.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// A refresh near the cap clamps to the absolute lifetime instead of
	// granting a full TTL.
	_, expiry, err := m.Refresh(sess)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	cap := sess.FirstIssuedAt.Add(cfg.MaxLifetime)
	if expiry.After(cap.Add(time.Second)) {
		t.Errorf("refresh granted past the absolute cap: %v > %v", expiry, cap)
	}

	// A session whose lifetime is exhausted cannot be refreshed.
	spent := &Session{
		UserID:        sess.UserID,
		Username:      sess.Username,
		Role:          sess.Role,
		FirstIssuedAt: time.Now().Add(-11 * time.Hour),
	}
	if _, _, err := m.Refresh(spent); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("exhausted session refresh: got %v, want ErrSessionExpired", err)
	}
}

func TestResolveRejectsOverLifetimeToken(t *testing.T) {
	// Sign with a manager whose lifetime is long, then resolve with one
	// whose lifetime has already elapsed relative to orig_iat.
	longCfg := testSessionConfig()
	longCfg.MaxLifetime = 1000 * time.Hour
	long := NewSessionManager(longCfg)

	token, _, err := long.Create(testUser())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	shortCfg := testSessionConfig()
	shortCfg.MaxLifetime = time.Nanosecond
	short := NewSessionManager(shortCfg)

	if _, err := short.Resolve(token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("over-lifetime token: got %v, want ErrSessionExpired", err)
	}
}
