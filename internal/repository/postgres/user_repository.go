package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/patient"
	"github.com/harborhealth/caregate/internal/domain/staff"
	"github.com/harborhealth/caregate/internal/service"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ service.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return service.ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

// CreatePatientUser inserts the account, the patient profile, and the
// link column in one transaction. If any step fails the username and
// email are released with the rollback instead of lingering on an
// orphaned user row.
func (r *UserRepository) CreatePatientUser(ctx context.Context, u *domain.User, p *patient.Patient) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		p.UserID = u.ID
		if p.CreatedBy == uuid.Nil {
			p.CreatedBy = u.ID
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		u.PatientID = &p.ID
		return tx.Model(&domain.User{}).
			Where("id = ?", u.ID).
			Update("patient_id", p.ID).Error
	})
	if isDuplicate(err) {
		return service.ErrUserAlreadyExists
	}
	return err
}

func (r *UserRepository) CreateStaffMember(ctx context.Context, u *domain.User, m *staff.MedicalStaff) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			if isDuplicate(err) {
				return service.ErrUserAlreadyExists
			}
			return err
		}
		m.UserID = u.ID
		if err := tx.Create(m).Error; err != nil {
			if isDuplicate(err) {
				return staff.ErrLicenseAlreadyExists
			}
			return err
		}
		u.StaffID = &m.ID
		return tx.Model(&domain.User{}).
			Where("id = ?", u.ID).
			Update("staff_id", m.ID).Error
	})
	return err
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("username = ? AND deleted_at IS NULL", username).
		First(&u).Error
	if err != nil {
		return nil, notFound(err, service.ErrUserNotFound)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&u).Error
	if err != nil {
		return nil, notFound(err, service.ErrUserNotFound)
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context, q *service.ListUsersQuery) (*service.PagedUsers, error) {
	db := r.db.WithContext(ctx).Model(&domain.User{}).Where("deleted_at IS NULL")

	if q.Role != nil {
		db = db.Where("role = ?", *q.Role)
	}
	if q.Active != nil {
		db = db.Where("is_active = ?", *q.Active)
	}
	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		db = db.Where("username ILIKE ? OR email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?",
			pattern, pattern, pattern, pattern)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return nil, err
	}

	var users []*domain.User
	err := db.Order("created_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return &service.PagedUsers{
		Users:      users,
		TotalCount: count,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(count, q.PageSize),
	}, nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND deleted_at IS NULL", u.ID).
		Updates(map[string]any{
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"phone":      u.Phone,
			"address":    u.Address,
			"staff_id":   u.StaffID,
			"patient_id": u.PatientID,
		})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return service.ErrUserAlreadyExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return service.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"password_hash":       hash,
			"password_changed_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return service.ErrUserNotFound
	}
	return nil
}

// RecordFailedLogin bumps the failure counter and applies the lockout in
// a single statement, so two concurrent wrong-password attempts both
// count instead of racing on a read-modify-write.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id uuid.UUID, threshold int, lockFor time.Duration) (bool, error) {
	lockUntil := time.Now().Add(lockFor)

	var row struct {
		FailedLoginCount int
		LockedUntil      *time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		UPDATE auth.users
		SET failed_login_count = failed_login_count + 1,
		    locked_until = CASE
		        WHEN failed_login_count + 1 >= ? THEN ?
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE id = ? AND deleted_at IS NULL
		RETURNING failed_login_count, locked_until`,
		threshold, lockUntil, id,
	).Scan(&row).Error
	if err != nil {
		return false, err
	}

	locked := row.LockedUntil != nil && time.Now().Before(*row.LockedUntil)
	return locked, nil
}

func (r *UserRepository) ResetLoginState(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_count": 0,
			"locked_until":       nil,
			"last_login_at":      time.Now(),
		}).Error
}

func (r *UserRepository) SetRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	return r.setColumn(ctx, id, "role", role)
}

func (r *UserRepository) SetUsername(ctx context.Context, id uuid.UUID, username string) error {
	err := r.setColumn(ctx, id, "username", username)
	if isDuplicate(err) {
		return service.ErrUserAlreadyExists
	}
	return err
}

func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.setColumn(ctx, id, "is_active", active)
}

func (r *UserRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"deleted_at": time.Now(),
			"is_active":  false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return service.ErrUserNotFound
	}
	return nil
}

// HardDelete physically removes the row. Callers snapshot the user into
// the audit trail first; the repository does not enforce that.
func (r *UserRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return service.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) setColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return service.ErrUserNotFound
	}
	return nil
}
