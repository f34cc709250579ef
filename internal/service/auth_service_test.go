package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/config"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/patient"
	"github.com/harborhealth/caregate/internal/domain/staff"
	"github.com/harborhealth/caregate/pkg/auth"
)

type fakeUserRepo struct {
	users map[string]*domain.User

	lockOnNextFailure bool
	failedLoginCalls  int
	resetCalls        int
	passwordUpdates   map[uuid.UUID]string
	updatePasswordErr error
	profileCreateErr  error
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{
		users:           make(map[string]*domain.User),
		passwordUpdates: make(map[uuid.UUID]string),
	}
	for _, u := range users {
		r.users[u.Username] = u
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.Username] = u
	return nil
}

// The transactional create methods mirror the store's all-or-nothing
// behavior: when the profile insert fails, no user row survives.
func (r *fakeUserRepo) CreatePatientUser(ctx context.Context, u *domain.User, p *patient.Patient) error {
	if r.profileCreateErr != nil {
		return r.profileCreateErr
	}
	if err := r.Create(ctx, u); err != nil {
		return err
	}
	p.ID = uuid.New()
	p.UserID = u.ID
	u.PatientID = &p.ID
	return nil
}

func (r *fakeUserRepo) CreateStaffMember(ctx context.Context, u *domain.User, m *staff.MedicalStaff) error {
	if r.profileCreateErr != nil {
		return r.profileCreateErr
	}
	if err := r.Create(ctx, u); err != nil {
		return err
	}
	m.ID = uuid.New()
	m.UserID = u.ID
	u.StaffID = &m.ID
	return nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeUserRepo) List(ctx context.Context, q *ListUsersQuery) (*PagedUsers, error) {
	return &PagedUsers{}, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, u *domain.User) error { return nil }

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	if r.updatePasswordErr != nil {
		return r.updatePasswordErr
	}
	r.passwordUpdates[id] = hash
	return nil
}

func (r *fakeUserRepo) RecordFailedLogin(ctx context.Context, id uuid.UUID, threshold int, lockFor time.Duration) (bool, error) {
	r.failedLoginCalls++
	return r.lockOnNextFailure, nil
}

func (r *fakeUserRepo) ResetLoginState(ctx context.Context, id uuid.UUID) error {
	r.resetCalls++
	return nil
}

func (r *fakeUserRepo) SetRole(ctx context.Context, id uuid.UUID, role domain.Role) error { return nil }
func (r *fakeUserRepo) SetUsername(ctx context.Context, id uuid.UUID, username string) error {
	return nil
}
func (r *fakeUserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error { return nil }
func (r *fakeUserRepo) SoftDelete(ctx context.Context, id uuid.UUID) error             { return nil }
func (r *fakeUserRepo) HardDelete(ctx context.Context, id uuid.UUID) error             { return nil }

// countingHasher records which verification paths ran so tests can assert
// ordering guarantees like "locked accounts never reach the hasher".
type countingHasher struct {
	match        bool
	needsUpgrade bool

	verifyCalls int
	dummyCalls  int
}

func (h *countingHasher) Hash(plaintext string) (string, error) {
	return "$2a$10$rehashed-" + plaintext, nil
}

func (h *countingHasher) Verify(plaintext, stored string) (bool, bool) {
	h.verifyCalls++
	return h.match, h.needsUpgrade
}

func (h *countingHasher) DummyVerify(plaintext string) {
	h.dummyCalls++
}

type captureAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (r *captureAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *captureAuditRepo) List(ctx context.Context, q *AuditQuery) ([]*domain.AuditLog, int64, error) {
	return nil, 0, nil
}

// drain shuts the audit worker down and returns everything it persisted.
func (r *captureAuditRepo) drain(svc *AuditService) []*domain.AuditLog {
	svc.Shutdown()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

func (r *captureAuditRepo) actions(svc *AuditService) []domain.AuditAction {
	var out []domain.AuditAction
	for _, e := range r.drain(svc) {
		out = append(out, e.Action)
	}
	return out
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		LockoutThreshold:  5,
		LockoutDuration:   30 * time.Minute,
		BcryptCost:        4,
		PasswordMinLength: 12,
	}
}

func newTestAuthService(repo *fakeUserRepo, hasher *countingHasher) (*AuthService, *AuditService, *captureAuditRepo) {
	auditRepo := &captureAuditRepo{}
	auditSvc := NewAuditService(auditRepo, nil, zap.NewNop())
	sessions := auth.NewSessionManager(config.SessionConfig{
		Secret:      "test-secret-at-least-32-characters!!",
		TTL:         8 * time.Hour,
		MaxLifetime: 24 * time.Hour,
		Issuer:      "caregate-test",
	})
	svc := NewAuthService(repo, hasher, sessions, auditSvc, testSecurityConfig(), nil, zap.NewNop())
	return svc, auditSvc, auditRepo
}

func activeUser(username string) *domain.User {
	return &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@clinic.example",
		PasswordHash: "$2a$10$stored",
		Role:         domain.RolePatient,
		IsActive:     true,
	}
}

func testMeta() RequestMeta {
	return RequestMeta{IPAddress: "203.0.113.9", UserAgent: "test", RequestID: uuid.NewString()}
}

func TestLoginUnknownUsername(t *testing.T) {
	repo := newFakeUserRepo()
	hasher := &countingHasher{}
	svc, auditSvc, auditRepo := newTestAuthService(repo, hasher)

	_, err := svc.Login(context.Background(), "nobody", "pw", testMeta())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if hasher.dummyCalls != 1 {
		t.Errorf("dummy verify ran %d times, want 1", hasher.dummyCalls)
	}
	if hasher.verifyCalls != 0 {
		t.Error("real verify ran for a nonexistent user")
	}

	entries := auditRepo.drain(auditSvc)
	if len(entries) != 1 || entries[0].Action != domain.ActionLoginFailed {
		t.Fatalf("audit trail = %+v, want one login_failed entry", entries)
	}
	if entries[0].UserID != nil {
		t.Error("unknown-user failure should have a nil actor")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	user := activeUser("retired.doc")
	user.IsActive = false
	repo := newFakeUserRepo(user)
	hasher := &countingHasher{match: true}
	svc, auditSvc, auditRepo := newTestAuthService(repo, hasher)

	_, err := svc.Login(context.Background(), "retired.doc", "pw", testMeta())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if hasher.verifyCalls != 0 {
		t.Error("hasher ran for an inactive account")
	}
	if got := auditRepo.actions(auditSvc); len(got) != 1 || got[0] != domain.ActionLoginFailed {
		t.Errorf("audit actions = %v, want [login_failed]", got)
	}
}

func TestLoginLockedAccountSkipsHasher(t *testing.T) {
	user := activeUser("locked.user")
	until := time.Now().Add(10 * time.Minute)
	user.LockedUntil = &until
	repo := newFakeUserRepo(user)
	hasher := &countingHasher{match: true}
	svc, auditSvc, auditRepo := newTestAuthService(repo, hasher)

	_, err := svc.Login(context.Background(), "locked.user", "even-the-right-password", testMeta())
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("got %v, want ErrAccountLocked", err)
	}
	if hasher.verifyCalls != 0 {
		t.Error("hasher ran against a locked account")
	}
	if got := auditRepo.actions(auditSvc); len(got) != 1 || got[0] != domain.ActionLockout {
		t.Errorf("audit actions = %v, want [lockout]", got)
	}
}

func TestLoginExpiredLockIsIgnored(t *testing.T) {
	user := activeUser("was.locked")
	past := time.Now().Add(-time.Minute)
	user.LockedUntil = &past
	repo := newFakeUserRepo(user)
	hasher := &countingHasher{match: true}
	svc, _, _ := newTestAuthService(repo, hasher)

	res, err := svc.Login(context.Background(), "was.locked", "pw", testMeta())
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if res.Token == "" {
		t.Error("no token issued")
	}
}

func TestLoginWrongPasswordCountsFailure(t *testing.T) {
	user := activeUser("alice")
	repo := newFakeUserRepo(user)
	hasher := &countingHasher{match: false}
	svc, auditSvc, auditRepo := newTestAuthService(repo, hasher)

	_, err := svc.Login(context.Background(), "alice", "wrong", testMeta())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if repo.failedLoginCalls != 1 {
		t.Errorf("failure recorded %d times, want 1", repo.failedLoginCalls)
	}
	if got := auditRepo.actions(auditSvc); len(got) != 1 || got[0] != domain.ActionLoginFailed {
		t.Errorf("audit actions = %v, want [login_failed]", got)
	}
}

func TestLoginFailureCrossingThresholdAuditsLockout(t *testing.T) {
	user := activeUser("bob")
	repo := newFakeUserRepo(user)
	repo.lockOnNextFailure = true
	hasher := &countingHasher{match: false}
	svc, auditSvc, auditRepo := newTestAuthService(repo, hasher)

	// The wire error stays generic even when this failure locked the
	// account; only the audit trail records the lockout.
	_, err := svc.Login(context.Background(), "bob", "wrong", testMeta())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if got := auditRepo.actions(auditSvc); len(got) != 1 || got[0] != domain.ActionLockout {
		t.Errorf("audit actions = %v, want [lockout]", got)
	}
}

func TestLoginSuccess(t *testing.T) {
	user := activeUser("carol")
	repo := newFakeUserRepo(user)
	hasher := &countingHasher{match: true}
	svc, auditSvc, auditRepo := newTestAuthService(repo, hasher)

	res, err := svc.Login(context.Background(), "carol", "pw", testMeta())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Error("no token issued")
	}
	if res.User.ID != user.ID {
		t.Error("wrong user in result")
	}
	if repo.resetCalls != 1 {
		t.Errorf("login state reset %d times, want 1", repo.resetCalls)
	}
	if len(repo.passwordUpdates) != 0 {
		t.Error("password rewritten without a legacy hash")
	}
	if got := auditRepo.actions(auditSvc); len(got) != 1 || got[0] != domain.ActionLogin {
		t.Errorf("audit actions = %v, want [login]", got)
	}
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	user := activeUser("dave")
	user.PasswordHash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	repo := newFakeUserRepo(user)
	hasher := &countingHasher{match: true, needsUpgrade: true}
	svc, _, _ := newTestAuthService(repo, hasher)

	res, err := svc.Login(context.Background(), "dave", "pw", testMeta())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	newHash, ok := repo.passwordUpdates[user.ID]
	if !ok {
		t.Fatal("legacy hash was not rewritten")
	}
	if res.User.PasswordHash != newHash {
		t.Error("returned user still carries the legacy hash")
	}
}

func TestLoginSucceedsWhenUpgradePersistFails(t *testing.T) {
	user := activeUser("erin")
	repo := newFakeUserRepo(user)
	repo.updatePasswordErr = errors.New("store unavailable")
	hasher := &countingHasher{match: true, needsUpgrade: true}
	svc, _, _ := newTestAuthService(repo, hasher)

	res, err := svc.Login(context.Background(), "erin", "pw", testMeta())
	if err != nil {
		t.Fatalf("login failed because the hash upgrade could not persist: %v", err)
	}
	if res.Token == "" {
		t.Error("no token issued")
	}
}

func TestChangePassword(t *testing.T) {
	user := activeUser("frank")
	repo := newFakeUserRepo(user)
	ident := authz.Identity{UserID: user.ID, Role: user.Role, Active: true}

	t.Run("wrong current password", func(t *testing.T) {
		hasher := &countingHasher{match: false}
		svc, _, _ := newTestAuthService(repo, hasher)
		err := svc.ChangePassword(context.Background(), ident, "wrong", "a-long-enough-password", testMeta())
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("got %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("new password too short", func(t *testing.T) {
		hasher := &countingHasher{match: true}
		svc, _, _ := newTestAuthService(repo, hasher)
		err := svc.ChangePassword(context.Background(), ident, "current", "short", testMeta())
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("got %v, want ValidationError", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		hasher := &countingHasher{match: true}
		svc, auditSvc, auditRepo := newTestAuthService(repo, hasher)
		err := svc.ChangePassword(context.Background(), ident, "current", "a-long-enough-password", testMeta())
		if err != nil {
			t.Fatalf("ChangePassword: %v", err)
		}
		if _, ok := repo.passwordUpdates[user.ID]; !ok {
			t.Error("new hash not persisted")
		}
		if got := auditRepo.actions(auditSvc); len(got) != 1 || got[0] != domain.ActionPasswordChange {
			t.Errorf("audit actions = %v, want [password_change]", got)
		}
	})
}

// ResolveIdentity re-reads the user row, so a deactivation or lockout
// applied after the token was issued takes effect on the next request.
func TestResolveIdentityReflectsCurrentState(t *testing.T) {
	user := activeUser("grace")
	repo := newFakeUserRepo(user)
	svc, _, _ := newTestAuthService(repo, &countingHasher{})

	sess := &auth.Session{UserID: user.ID, Username: user.Username, Role: user.Role}

	ident, err := svc.ResolveIdentity(context.Background(), sess)
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if !ident.Active || ident.Locked {
		t.Errorf("fresh user resolved as active=%v locked=%v", ident.Active, ident.Locked)
	}

	user.IsActive = false
	until := time.Now().Add(time.Hour)
	user.LockedUntil = &until

	ident, err = svc.ResolveIdentity(context.Background(), sess)
	if err != nil {
		t.Fatalf("ResolveIdentity after deactivation: %v", err)
	}
	if ident.Active {
		t.Error("deactivated user still resolves as active")
	}
	if !ident.Locked {
		t.Error("locked user resolves as unlocked")
	}
}

func TestResolveIdentityDeletedUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _, _ := newTestAuthService(repo, &countingHasher{})

	sess := &auth.Session{UserID: uuid.New()}
	if _, err := svc.ResolveIdentity(context.Background(), sess); !errors.Is(err, auth.ErrSessionInvalid) {
		t.Errorf("got %v, want ErrSessionInvalid", err)
	}
}
