package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/config"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/patient"
	"github.com/harborhealth/caregate/internal/domain/staff"
	"github.com/harborhealth/caregate/pkg/auth"
	"github.com/harborhealth/caregate/pkg/metrics"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error

	// CreatePatientUser persists the user row, the patient profile, and
	// the link between them in one transaction. A failed profile insert
	// must not leave an orphaned account holding the username and email.
	CreatePatientUser(ctx context.Context, u *domain.User, p *patient.Patient) error

	// CreateStaffMember does the same for doctor and nurse accounts.
	CreateStaffMember(ctx context.Context, u *domain.User, m *staff.MedicalStaff) error

	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context, q *ListUsersQuery) (*PagedUsers, error)
	Update(ctx context.Context, u *domain.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error

	// RecordFailedLogin increments the failure counter and applies the
	// lockout in ONE statement on the store, so concurrent failures each
	// count. Returns whether the account is now locked.
	RecordFailedLogin(ctx context.Context, id uuid.UUID, threshold int, lockFor time.Duration) (bool, error)

	// ResetLoginState zeroes the failure counter, clears any lock, and
	// stamps last_login_at.
	ResetLoginState(ctx context.Context, id uuid.UUID) error

	SetRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	SetUsername(ctx context.Context, id uuid.UUID, username string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
}

// PasswordHasher is implemented by pkg/auth.PasswordHasher.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, stored string) (match, needsUpgrade bool)
	DummyVerify(plaintext string)
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type AuthService struct {
	users    UserRepository
	hasher   PasswordHasher
	sessions *auth.SessionManager
	auditSvc *AuditService
	cfg      config.SecurityConfig
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewAuthService(
	users UserRepository,
	hasher PasswordHasher,
	sessions *auth.SessionManager,
	auditSvc *AuditService,
	cfg config.SecurityConfig,
	m *metrics.Collector,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		auditSvc: auditSvc,
		cfg:      cfg,
		metrics:  m,
		log:      log,
	}
}

// Login authenticates a username/password pair. Every failure sub-case
// surfaces as ErrInvalidCredentials (or ErrAccountLocked, which the
// handler renders with the identical generic body) while the audit log
// keeps the specific reason.
func (s *AuthService) Login(ctx context.Context, username, password string, meta RequestMeta) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		// Burn a hash comparison so timing does not reveal whether the
		// username exists.
		s.hasher.DummyVerify(password)
		s.recordAuthFailure(ctx, nil, "", domain.ActionLoginFailed, meta)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive || user.DeletedAt != nil {
		s.recordAuthFailure(ctx, &user.ID, user.Role, domain.ActionLoginFailed, meta)
		return nil, ErrInvalidCredentials
	}

	// Locked accounts are rejected before the hasher runs.
	if user.IsLocked() {
		s.recordAuthFailure(ctx, &user.ID, user.Role, domain.ActionLockout, meta)
		return nil, ErrAccountLocked
	}

	match, needsUpgrade := s.hasher.Verify(password, user.PasswordHash)
	if !match {
		locked, lockErr := s.users.RecordFailedLogin(ctx, user.ID, s.cfg.LockoutThreshold, s.cfg.LockoutDuration)
		if lockErr != nil {
			s.log.Error("failed to record login failure", zap.Error(lockErr))
		}
		action := domain.ActionLoginFailed
		if locked {
			action = domain.ActionLockout
			s.log.Warn("account locked after repeated failures",
				zap.String("user_id", user.ID.String()),
				zap.String("ip", meta.IPAddress),
			)
		}
		s.recordAuthFailure(ctx, &user.ID, user.Role, action, meta)
		return nil, ErrInvalidCredentials
	}

	if err := s.users.ResetLoginState(ctx, user.ID); err != nil {
		s.log.Error("failed to reset login state", zap.Error(err))
	}

	// Transparent migration off the legacy hash format. Happens once, on
	// the next successful login; a persist failure is logged and login
	// proceeds on the old hash.
	if needsUpgrade {
		if newHash, hashErr := s.hasher.Hash(password); hashErr != nil {
			s.log.Warn("password hash upgrade failed to derive", zap.Error(hashErr))
		} else if persistErr := s.users.UpdatePassword(ctx, user.ID, newHash); persistErr != nil {
			s.log.Warn("password hash upgrade failed to persist",
				zap.String("user_id", user.ID.String()),
				zap.Error(persistErr),
			)
		} else {
			user.PasswordHash = newHash
			s.log.Info("legacy password hash upgraded", zap.String("user_id", user.ID.String()))
		}
	}

	token, expiresAt, err := s.sessions.Create(user)
	if err != nil {
		s.log.Error("failed to create session", zap.Error(err))
		return nil, fmt.Errorf("creating session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	}
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &user.ID,
		ActorRole:  user.Role,
		Action:     domain.ActionLogin,
		Resource:   "user",
		ResourceID: user.ID.String(),
		Meta:       meta,
	})
	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", meta.IPAddress),
	)

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout is stateless on the server side (the client discards its token)
// but is still a security-relevant event worth the audit row.
func (s *AuthService) Logout(ctx context.Context, ident authz.Identity, meta RequestMeta) {
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionLogout,
		Resource:   "user",
		ResourceID: ident.UserID.String(),
		Meta:       meta,
	})
}

// ChangePassword updates a user's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, ident authz.Identity, currentPassword, newPassword string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		return err
	}

	if match, _ := s.hasher.Verify(currentPassword, user.PasswordHash); !match {
		return ErrInvalidCredentials
	}

	if len(newPassword) < s.cfg.PasswordMinLength {
		return &ValidationError{Fields: []string{
			fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinLength),
		}}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, ident.UserID, hash); err != nil {
		return err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionPasswordChange,
		Resource:   "user",
		ResourceID: ident.UserID.String(),
		Meta:       meta,
	})
	return nil
}

// ResolveIdentity turns a validated session into the mediator's Identity,
// re-reading the user row so deactivation and lockout apply immediately,
// not at token expiry.
func (s *AuthService) ResolveIdentity(ctx context.Context, sess *auth.Session) (authz.Identity, error) {
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return authz.Identity{}, auth.ErrSessionInvalid
		}
		return authz.Identity{}, err
	}

	return authz.Identity{
		UserID:    user.ID,
		Role:      user.Role,
		PatientID: user.PatientID,
		StaffID:   user.StaffID,
		Active:    user.IsActive && user.DeletedAt == nil,
		Locked:    user.IsLocked(),
	}, nil
}

func (s *AuthService) recordAuthFailure(ctx context.Context, userID *uuid.UUID, role domain.Role, action domain.AuditAction, meta RequestMeta) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues("failure").Inc()
	}
	resourceID := ""
	if userID != nil {
		resourceID = userID.String()
	}
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    userID,
		ActorRole:  role,
		Action:     action,
		Resource:   "user",
		ResourceID: resourceID,
		Meta:       meta,
	})
}
