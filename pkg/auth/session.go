package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/config"
	"github.com/harborhealth/caregate/internal/domain"
)

var (
	ErrSessionExpired = errors.New("session has expired")
	ErrSessionInvalid = errors.New("session token is invalid")
)

// Session is the resolved identity carried by a signed token. Expiry is
// sliding: middleware refreshes tokens past the midpoint of their window,
// bounded by the absolute lifetime recorded at first issue.
type Session struct {
	UserID        uuid.UUID
	Username      string
	Role          domain.Role
	StaffID       *uuid.UUID
	PatientID     *uuid.UUID
	ExpiresAt     time.Time
	FirstIssuedAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	StaffID   *uuid.UUID `json:"staff_id,omitempty"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	// OrigIssuedAt survives refreshes and anchors the absolute cap.
	OrigIssuedAt int64 `json:"orig_iat"`
}

type SessionManager struct {
	cfg config.SessionConfig
}

func NewSessionManager(cfg config.SessionConfig) *SessionManager {
	return &SessionManager{cfg: cfg}
}

// Create issues a fresh token for a user who just authenticated.
func (m *SessionManager) Create(user *domain.User) (string, time.Time, error) {
	now := time.Now()
	return m.sign(&Session{
		UserID:        user.ID,
		Username:      user.Username,
		Role:          user.Role,
		StaffID:       user.StaffID,
		PatientID:     user.PatientID,
		FirstIssuedAt: now,
	}, now)
}

// Refresh re-signs a resolved session, extending the sliding window. It
// fails once the absolute lifetime is exhausted.
func (m *SessionManager) Refresh(s *Session) (string, time.Time, error) {
	now := time.Now()
	if !now.Before(s.FirstIssuedAt.Add(m.cfg.MaxLifetime)) {
		return "", time.Time{}, ErrSessionExpired
	}
	return m.sign(s, now)
}

// ShouldRefresh reports whether the session is past the midpoint of its
// window; refreshing every request would churn tokens for no benefit.
func (m *SessionManager) ShouldRefresh(s *Session) bool {
	return time.Until(s.ExpiresAt) < m.cfg.TTL/2
}

func (m *SessionManager) sign(s *Session, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.cfg.TTL)
	if cap := s.FirstIssuedAt.Add(m.cfg.MaxLifetime); expiresAt.After(cap) {
		expiresAt = cap
	}

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			// NotBefore tolerance handles clock drift between nodes
			NotBefore: jwt.NewNumericDate(now.Add(-10 * time.Second)),
		},
		Username:     s.Username,
		Role:         string(s.Role),
		StaffID:      s.StaffID,
		PatientID:    s.PatientID,
		OrigIssuedAt: s.FirstIssuedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Resolve validates a token and returns the session it names. Forged,
// expired, malformed, or over-lifetime tokens all come back as errors,
// never as a usable identity.
func (m *SessionManager) Resolve(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(m.cfg.Secret), nil
		},
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, ErrSessionInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return nil, ErrSessionInvalid
	}

	firstIssued := time.Unix(claims.OrigIssuedAt, 0)
	if claims.OrigIssuedAt <= 0 {
		return nil, ErrSessionInvalid
	}
	if !time.Now().Before(firstIssued.Add(m.cfg.MaxLifetime)) {
		return nil, ErrSessionExpired
	}

	return &Session{
		UserID:        userID,
		Username:      claims.Username,
		Role:          role,
		StaffID:       claims.StaffID,
		PatientID:     claims.PatientID,
		ExpiresAt:     claims.ExpiresAt.Time,
		FirstIssuedAt: firstIssued,
	}, nil
}
