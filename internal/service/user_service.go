package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/config"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/patient"
	"github.com/harborhealth/caregate/internal/domain/staff"
)

type ListUsersQuery struct {
	Role     *domain.Role
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

type PagedUsers struct {
	Users      []*domain.User
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

type RegisterPatientCommand struct {
	Username    string
	Password    string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Address     string
	DateOfBirth time.Time
	Gender      patient.Gender
	BloodType   patient.BloodType
}

type CreateStaffUserCommand struct {
	Username       string
	Password       string
	Email          string
	FirstName      string
	LastName       string
	Role           domain.Role // doctor or nurse
	Specialization string
	LicenseNumber  string
	Department     string
}

type UpdateUserProfileCommand struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

type UserService struct {
	users    UserRepository
	hasher   PasswordHasher
	auditSvc *AuditService
	cfg      config.SecurityConfig
	log      *zap.Logger
}

func NewUserService(
	users UserRepository,
	hasher PasswordHasher,
	auditSvc *AuditService,
	cfg config.SecurityConfig,
	log *zap.Logger,
) *UserService {
	return &UserService{
		users:    users,
		hasher:   hasher,
		auditSvc: auditSvc,
		cfg:      cfg,
		log:      log,
	}
}

// RegisterPatient is the one unauthenticated mutation: self-service
// signup, always with the patient role. Staff and admin accounts only
// come from an administrator.
func (s *UserService) RegisterPatient(ctx context.Context, cmd *RegisterPatientCommand, meta RequestMeta) (*domain.User, error) {
	if err := s.validateNewAccount(cmd.Username, cmd.Password, cmd.Email, cmd.FirstName, cmd.LastName); err != nil {
		return nil, err
	}
	if cmd.DateOfBirth.IsZero() || cmd.DateOfBirth.After(time.Now()) {
		return nil, &ValidationError{Fields: []string{"date_of_birth is required and cannot be in the future"}}
	}
	if !cmd.Gender.IsValid() {
		return nil, &ValidationError{Fields: []string{"gender is invalid"}}
	}

	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		Username:          strings.TrimSpace(cmd.Username),
		Email:             strings.ToLower(strings.TrimSpace(cmd.Email)),
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(cmd.FirstName),
		LastName:          strings.TrimSpace(cmd.LastName),
		Phone:             strings.TrimSpace(cmd.Phone),
		Address:           cmd.Address,
		Role:              domain.RolePatient,
		IsActive:          true,
		PasswordChangedAt: time.Now(),
	}
	profile := &patient.Patient{
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		DateOfBirth: cmd.DateOfBirth,
		Gender:      cmd.Gender,
		BloodType:   cmd.BloodType,
		Status:      patient.StatusActive,
	}
	// One transaction: a profile failure must not strand a user row that
	// holds the username and email.
	if err := s.users.CreatePatientUser(ctx, user, profile); err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &user.ID,
		ActorRole:  user.Role,
		Action:     domain.ActionCreate,
		Resource:   "user",
		ResourceID: user.ID.String(),
		New:        map[string]any{"username": user.Username, "role": string(user.Role)},
		Meta:       meta,
	})
	s.log.Info("patient registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// CreateStaffUser provisions a doctor or nurse account with its staff
// profile. Admin only.
func (s *UserService) CreateStaffUser(ctx context.Context, ident authz.Identity, cmd *CreateStaffUserCommand, meta RequestMeta) (*domain.User, error) {
	if d := authz.Authorize(ident, authz.ResourceUser, authz.ActionCreate, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	if err := s.validateNewAccount(cmd.Username, cmd.Password, cmd.Email, cmd.FirstName, cmd.LastName); err != nil {
		return nil, err
	}
	if !cmd.Role.IsStaff() {
		return nil, &ValidationError{Fields: []string{"role must be doctor or nurse"}}
	}
	if strings.TrimSpace(cmd.LicenseNumber) == "" {
		return nil, &ValidationError{Fields: []string{"license_number is required"}}
	}

	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		Username:          strings.TrimSpace(cmd.Username),
		Email:             strings.ToLower(strings.TrimSpace(cmd.Email)),
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(cmd.FirstName),
		LastName:          strings.TrimSpace(cmd.LastName),
		Role:              cmd.Role,
		IsActive:          true,
		PasswordChangedAt: time.Now(),
	}
	profile := &staff.MedicalStaff{
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Specialization:   cmd.Specialization,
		LicenseNumber:    strings.TrimSpace(cmd.LicenseNumber),
		Department:       cmd.Department,
		EmploymentStatus: staff.StatusActive,
		CreatedBy:        ident.UserID,
	}
	if err := s.users.CreateStaffMember(ctx, user, profile); err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionCreate,
		Resource:   "user",
		ResourceID: user.ID.String(),
		New:        map[string]any{"username": user.Username, "role": string(user.Role), "license_number": profile.LicenseNumber},
		Meta:       meta,
	})
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, ident authz.Identity, id uuid.UUID) (*domain.User, error) {
	if d := authz.Authorize(ident, authz.ResourceUser, authz.ActionRead, authz.Hints{UserID: &id}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	return s.users.GetByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context, ident authz.Identity, q *ListUsersQuery) (*PagedUsers, error) {
	if d := authz.Authorize(ident, authz.ResourceUser, authz.ActionList, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.users.List(ctx, q)
}

// UpdateProfile edits contact fields. Username and role are deliberately
// not part of the command: those go through ChangeUsername/ChangeRole.
func (s *UserService) UpdateProfile(ctx context.Context, ident authz.Identity, id uuid.UUID, cmd *UpdateUserProfileCommand, meta RequestMeta) (*domain.User, error) {
	if d := authz.Authorize(ident, authz.ResourceUser, authz.ActionUpdate, authz.Hints{UserID: &id}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := profileSnapshot(user)

	if cmd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*cmd.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, &ValidationError{Fields: []string{"email is invalid"}}
		}
		user.Email = email
	}
	if cmd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*cmd.FirstName)
	}
	if cmd.LastName != nil {
		user.LastName = strings.TrimSpace(*cmd.LastName)
	}
	if cmd.Phone != nil {
		user.Phone = strings.TrimSpace(*cmd.Phone)
	}
	if cmd.Address != nil {
		user.Address = *cmd.Address
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	oldVals, newVals := DiffSnapshots(before, profileSnapshot(user))
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "user",
		ResourceID: id.String(),
		Old:        oldVals,
		New:        newVals,
		Meta:       meta,
	})
	return user, nil
}

// ChangeRole is the only path that mutates a role. The mediator has no
// grant for change_role below admin, so self-service role edits deny.
func (s *UserService) ChangeRole(ctx context.Context, ident authz.Identity, id uuid.UUID, newRole domain.Role, meta RequestMeta) error {
	if d := authz.Authorize(ident, authz.ResourceUser, authz.ActionChangeRole, authz.Hints{UserID: &id}); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if !newRole.IsValid() {
		return &ValidationError{Fields: []string{"role is invalid"}}
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	oldRole := user.Role

	if err := s.users.SetRole(ctx, id, newRole); err != nil {
		return err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionRoleChange,
		Resource:   "user",
		ResourceID: id.String(),
		Old:        map[string]any{"role": string(oldRole)},
		New:        map[string]any{"role": string(newRole)},
		Meta:       meta,
	})
	return nil
}

func (s *UserService) ChangeUsername(ctx context.Context, ident authz.Identity, id uuid.UUID, username string, meta RequestMeta) error {
	if d := authz.Authorize(ident, authz.ResourceUser, authz.ActionChangeUsername, authz.Hints{UserID: &id}); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return &ValidationError{Fields: []string{"username is required"}}
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	old := user.Username

	if err := s.users.SetUsername(ctx, id, username); err != nil {
		return err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "user",
		ResourceID: id.String(),
		Old:        map[string]any{"username": old},
		New:        map[string]any{"username": username},
		Meta:       meta,
	})
	return nil
}

// Deactivate soft-disables an account; the user row and all clinical
// history stay put.
func (s *UserService) Deactivate(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) error {
	if d := authz.Authorize(ident, authz.ResourceUser, authz.ActionDelete, authz.Hints{UserID: &id}); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	if err := s.users.SetActive(ctx, id, false); err != nil {
		return err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionDelete,
		Resource:   "user",
		ResourceID: id.String(),
		New:        map[string]any{"is_active": false},
		Meta:       meta,
	})
	return nil
}

// HardDelete removes the user row for good. Disabled by default because
// it conflicts with clinical retention; when enabled, the full row is
// snapshotted into the audit log before the delete.
func (s *UserService) HardDelete(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) error {
	if d := authz.Authorize(ident, authz.ResourceUser, authz.ActionDelete, authz.Hints{UserID: &id}); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if !s.cfg.HardDeleteEnabled {
		return ErrHardDeleteDenied
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	snapshot := profileSnapshot(user)
	snapshot["username"] = user.Username
	snapshot["role"] = string(user.Role)
	snapshot["is_active"] = user.IsActive

	// Audit first: once the row is gone there is nothing left to snapshot.
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionHardDelete,
		Resource:   "user",
		ResourceID: id.String(),
		Old:        snapshot,
		Meta:       meta,
	})

	s.log.Warn("hard-deleting user",
		zap.String("user_id", id.String()),
		zap.String("deleted_by", ident.UserID.String()),
	)
	return s.users.HardDelete(ctx, id)
}

func (s *UserService) validateNewAccount(username, password, email, firstName, lastName string) error {
	var errs []string

	if strings.TrimSpace(username) == "" {
		errs = append(errs, "username is required")
	}
	if len(password) < s.cfg.PasswordMinLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinLength))
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		errs = append(errs, "email is invalid")
	}
	if strings.TrimSpace(firstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(lastName) == "" {
		errs = append(errs, "last_name is required")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func profileSnapshot(u *domain.User) map[string]any {
	return map[string]any{
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"phone":      u.Phone,
		"address":    u.Address,
	}
}
