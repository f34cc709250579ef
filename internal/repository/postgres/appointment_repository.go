package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborhealth/caregate/internal/domain/appointment"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

var _ appointment.Repository = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&a).Error
	if err != nil {
		return nil, notFound(err, appointment.ErrAppointmentNotFound)
	}
	return &a, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateAppointmentCommand) (*appointment.Appointment, error) {
	updates := map[string]any{}
	if cmd.ScheduledAt != nil {
		updates["scheduled_at"] = *cmd.ScheduledAt
	}
	if cmd.DurationMins != nil {
		updates["duration_mins"] = *cmd.DurationMins
	}
	if cmd.Type != nil {
		updates["type"] = *cmd.Type
	}
	if cmd.Reason != nil {
		updates["reason"] = *cmd.Reason
	}
	if cmd.Notes != nil {
		updates["notes"] = *cmd.Notes
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&appointment.Appointment{}).
			Where("id = ? AND deleted_at IS NULL", id).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, appointment.ErrAppointmentNotFound
		}
	}
	return r.GetByID(ctx, id)
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	db := r.db.WithContext(ctx).Model(&appointment.Appointment{}).Where("deleted_at IS NULL")

	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.DoctorID != nil {
		db = db.Where("doctor_id = ?", *q.DoctorID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}
	if q.Type != nil {
		db = db.Where("type = ?", *q.Type)
	}
	if q.DateFrom != nil {
		db = db.Where("scheduled_at >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		db = db.Where("scheduled_at <= ?", *q.DateTo)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return nil, err
	}

	var appts []*appointment.Appointment
	err := db.Order("scheduled_at ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&appts).Error
	if err != nil {
		return nil, err
	}

	return &appointment.PagedAppointments{
		Appointments: appts,
		TotalCount:   count,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   totalPages(count, q.PageSize),
	}, nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	res := r.db.WithContext(ctx).Model(&appointment.Appointment{}).
		Where("id = ? AND deleted_at IS NULL", a.ID).
		Updates(map[string]any{
			"status":              a.Status,
			"cancelled_at":        a.CancelledAt,
			"cancellation_reason": a.CancellationReason,
			"cancelled_by":        a.CancelledBy,
			"completed_at":        a.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

func (r *AppointmentRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&appointment.Appointment{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

// HasConflict reports whether the doctor has a live appointment
// overlapping [start, end). Cancelled and no-show slots are free.
func (r *AppointmentRepository) HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx).Model(&appointment.Appointment{}).
		Where("doctor_id = ? AND deleted_at IS NULL", doctorID).
		Where("status NOT IN ?", []appointment.AppointmentStatus{
			appointment.StatusCancelled,
			appointment.StatusNoShow,
		}).
		Where("scheduled_at < ? AND scheduled_at + (duration_mins * INTERVAL '1 minute') > ?", end, start)

	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AppointmentRepository) GetUpcoming(ctx context.Context, doctorID, patientID *uuid.UUID, within time.Duration) ([]*appointment.Appointment, error) {
	now := time.Now()

	db := r.db.WithContext(ctx).
		Where("deleted_at IS NULL AND scheduled_at BETWEEN ? AND ?", now, now.Add(within)).
		Where("status IN ?", []appointment.AppointmentStatus{
			appointment.StatusScheduled,
			appointment.StatusConfirmed,
		})
	if doctorID != nil {
		db = db.Where("doctor_id = ?", *doctorID)
	}
	if patientID != nil {
		db = db.Where("patient_id = ?", *patientID)
	}

	var appts []*appointment.Appointment
	if err := db.Order("scheduled_at ASC").Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}
