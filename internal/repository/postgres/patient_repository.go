package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborhealth/caregate/internal/domain/patient"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

var _ patient.Repository = (*PatientRepository)(nil)

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isDuplicate(err) {
			return patient.ErrPatientAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, patient.ErrPatientNotFound)
	}
	return &p, nil
}

func (r *PatientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, patient.ErrPatientNotFound)
	}
	return &p, nil
}

func (r *PatientRepository) Update(ctx context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	updates := map[string]any{}
	if cmd.FirstName != nil {
		updates["first_name"] = *cmd.FirstName
	}
	if cmd.LastName != nil {
		updates["last_name"] = *cmd.LastName
	}
	if cmd.Gender != nil {
		updates["gender"] = *cmd.Gender
	}
	if cmd.BloodType != nil {
		updates["blood_type"] = *cmd.BloodType
	}
	if cmd.AssignedDoctorID != nil {
		updates["assigned_doctor_id"] = *cmd.AssignedDoctorID
	}
	if cmd.Notes != nil {
		updates["notes"] = *cmd.Notes
	}

	var p *patient.Patient
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing patient.Patient
		if err := tx.Where("id = ? AND deleted_at IS NULL", id).First(&existing).Error; err != nil {
			return notFound(err, patient.ErrPatientNotFound)
		}

		// JSON-serialized columns go through the model so the serializer
		// runs; scalar columns use the updates map.
		if cmd.EmergencyContact != nil {
			existing.EmergencyContact = cmd.EmergencyContact
		}
		if cmd.Insurance != nil {
			existing.Insurance = cmd.Insurance
		}
		if cmd.Allergies != nil {
			existing.Allergies = *cmd.Allergies
		}
		if cmd.ChronicConditions != nil {
			existing.ChronicConditions = *cmd.ChronicConditions
		}
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
		}
		p = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PatientRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&patient.Patient{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"deleted_at": time.Now(),
			"status":     patient.StatusInactive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *PatientRepository) List(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	db := r.db.WithContext(ctx).Model(&patient.Patient{}).Where("deleted_at IS NULL")

	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}
	if q.AssignedDoctorID != nil {
		db = db.Where("assigned_doctor_id = ?", *q.AssignedDoctorID)
	}
	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		db = db.Where("first_name ILIKE ? OR last_name ILIKE ?", pattern, pattern)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return nil, err
	}

	order := "created_at DESC"
	switch q.SortBy {
	case "last_name", "first_name", "date_of_birth", "created_at":
		dir := "ASC"
		if q.SortOrder == "desc" {
			dir = "DESC"
		}
		order = q.SortBy + " " + dir
	}

	var patients []*patient.Patient
	err := db.Order(order).
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&patients).Error
	if err != nil {
		return nil, err
	}

	return &patient.PagedPatients{
		Patients:   patients,
		TotalCount: count,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(count, q.PageSize),
	}, nil
}
