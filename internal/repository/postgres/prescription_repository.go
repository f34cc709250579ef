package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborhealth/caregate/internal/domain/prescription"
)

type PrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

var _ prescription.Repository = (*PrescriptionRepository)(nil)

func (r *PrescriptionRepository) Create(ctx context.Context, p *prescription.Prescription) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PrescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	var p prescription.Prescription
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, prescription.ErrPrescriptionNotFound)
	}
	return &p, nil
}

func (r *PrescriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status prescription.PrescriptionStatus) error {
	res := r.db.WithContext(ctx).Model(&prescription.Prescription{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return prescription.ErrPrescriptionNotFound
	}
	return nil
}

// Refill persists a refill already applied in memory. The guard on
// refills_used keeps two concurrent refills from both landing.
func (r *PrescriptionRepository) Refill(ctx context.Context, p *prescription.Prescription) error {
	res := r.db.WithContext(ctx).Model(&prescription.Prescription{}).
		Where("id = ? AND deleted_at IS NULL AND refills_used < refills_allowed", p.ID).
		Updates(map[string]any{
			"refills_used": p.RefillsUsed,
			"status":       p.Status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return prescription.ErrNotRefillable
	}
	return nil
}

func (r *PrescriptionRepository) List(ctx context.Context, q *prescription.ListPrescriptionsQuery) (*prescription.PagedPrescriptions, error) {
	db := r.db.WithContext(ctx).Model(&prescription.Prescription{}).Where("deleted_at IS NULL")

	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.DoctorID != nil {
		db = db.Where("doctor_id = ?", *q.DoctorID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return nil, err
	}

	var items []*prescription.Prescription
	err := db.Order("issued_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return &prescription.PagedPrescriptions{
		Prescriptions: items,
		TotalCount:    count,
		Page:          q.Page,
		PageSize:      q.PageSize,
		TotalPages:    totalPages(count, q.PageSize),
	}, nil
}

func (r *PrescriptionRepository) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*prescription.Prescription, error) {
	var items []*prescription.Prescription
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND deleted_at IS NULL AND status = ? AND expires_at > ?",
			patientID, prescription.StatusActive, time.Now()).
		Order("issued_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
