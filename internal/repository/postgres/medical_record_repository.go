package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	mr "github.com/harborhealth/caregate/internal/domain/medical_record"
)

type MedicalRecordRepository struct {
	db *gorm.DB
}

func NewMedicalRecordRepository(db *gorm.DB) *MedicalRecordRepository {
	return &MedicalRecordRepository{db: db}
}

var _ mr.Repository = (*MedicalRecordRepository)(nil)

func (r *MedicalRecordRepository) Create(ctx context.Context, record *mr.MedicalRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *MedicalRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	var record mr.MedicalRecord
	err := r.db.WithContext(ctx).
		Preload("Addenda").
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, notFound(err, mr.ErrRecordNotFound)
	}
	return &record, nil
}

func (r *MedicalRecordRepository) AddAddendum(ctx context.Context, a *mr.Addendum) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *MedicalRecordRepository) List(ctx context.Context, q *mr.ListRecordsQuery) (*mr.PagedRecords, error) {
	db := r.db.WithContext(ctx).Model(&mr.MedicalRecord{})

	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.DoctorID != nil {
		db = db.Where("doctor_id = ?", *q.DoctorID)
	}
	if q.Type != nil {
		db = db.Where("type = ?", *q.Type)
	}
	if q.AppointmentID != nil {
		db = db.Where("appointment_id = ?", *q.AppointmentID)
	}
	if q.DateFrom != nil {
		db = db.Where("visit_at >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		db = db.Where("visit_at <= ?", *q.DateTo)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return nil, err
	}

	var records []*mr.MedicalRecord
	err := db.Order("visit_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return &mr.PagedRecords{
		Records:    records,
		TotalCount: count,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(count, q.PageSize),
	}, nil
}

func (r *MedicalRecordRepository) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*mr.MedicalRecord, error) {
	var record mr.MedicalRecord
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		First(&record).Error
	if err != nil {
		return nil, notFound(err, mr.ErrRecordNotFound)
	}
	return &record, nil
}
