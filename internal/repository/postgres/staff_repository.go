package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborhealth/caregate/internal/domain/staff"
)

type StaffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

var _ staff.Repository = (*StaffRepository)(nil)

func (r *StaffRepository) Create(ctx context.Context, m *staff.MedicalStaff) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicate(err) {
			// Both unique indexes (user_id, license_number) land here; the
			// license is the one operators actually collide on.
			return staff.ErrLicenseAlreadyExists
		}
		return err
	}
	return nil
}

func (r *StaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*staff.MedicalStaff, error) {
	var m staff.MedicalStaff
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, staff.ErrStaffNotFound)
	}
	return &m, nil
}

func (r *StaffRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*staff.MedicalStaff, error) {
	var m staff.MedicalStaff
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, staff.ErrStaffNotFound)
	}
	return &m, nil
}

func (r *StaffRepository) Update(ctx context.Context, id uuid.UUID, cmd *staff.UpdateStaffCommand) (*staff.MedicalStaff, error) {
	updates := map[string]any{}
	if cmd.FirstName != nil {
		updates["first_name"] = *cmd.FirstName
	}
	if cmd.LastName != nil {
		updates["last_name"] = *cmd.LastName
	}
	if cmd.Specialization != nil {
		updates["specialization"] = *cmd.Specialization
	}
	if cmd.Department != nil {
		updates["department"] = *cmd.Department
	}
	if cmd.EmploymentStatus != nil {
		updates["employment_status"] = *cmd.EmploymentStatus
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&staff.MedicalStaff{}).
			Where("id = ? AND deleted_at IS NULL", id).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, staff.ErrStaffNotFound
		}
	}
	return r.GetByID(ctx, id)
}

func (r *StaffRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&staff.MedicalStaff{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"deleted_at":        time.Now(),
			"employment_status": staff.StatusInactive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return staff.ErrStaffNotFound
	}
	return nil
}

func (r *StaffRepository) List(ctx context.Context, q *staff.ListStaffQuery) (*staff.PagedStaff, error) {
	db := r.db.WithContext(ctx).Model(&staff.MedicalStaff{}).Where("deleted_at IS NULL")

	if q.Department != nil {
		db = db.Where("department = ?", *q.Department)
	}
	if q.EmploymentStatus != nil {
		db = db.Where("employment_status = ?", *q.EmploymentStatus)
	}
	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		db = db.Where("first_name ILIKE ? OR last_name ILIKE ? OR specialization ILIKE ?",
			pattern, pattern, pattern)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return nil, err
	}

	var members []*staff.MedicalStaff
	err := db.Order("last_name ASC, first_name ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&members).Error
	if err != nil {
		return nil, err
	}

	return &staff.PagedStaff{
		Staff:      members,
		TotalCount: count,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(count, q.PageSize),
	}, nil
}
