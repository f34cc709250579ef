package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/appointment"
	"github.com/harborhealth/caregate/internal/domain/patient"
	"github.com/harborhealth/caregate/internal/domain/staff"
	"github.com/harborhealth/caregate/pkg/metrics"
)

type AppointmentService struct {
	repo        appointment.Repository
	patientRepo patient.Repository
	staffRepo   staff.Repository
	auditSvc    *AuditService
	metrics     *metrics.Collector
	log         *zap.Logger
}

func NewAppointmentService(
	repo appointment.Repository,
	patientRepo patient.Repository,
	staffRepo staff.Repository,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *AppointmentService {
	return &AppointmentService{
		repo:        repo,
		patientRepo: patientRepo,
		staffRepo:   staffRepo,
		auditSvc:    auditSvc,
		metrics:     m,
		log:         log,
	}
}

// ScheduleAppointment books a slot. A patient can only name themselves as
// the patient (the ownership rule compares the command's patient to the
// caller's profile); staff book for anyone.
func (s *AppointmentService) ScheduleAppointment(ctx context.Context, ident authz.Identity, cmd *appointment.CreateAppointmentCommand, meta RequestMeta) (*appointment.Appointment, error) {
	if d := authz.Authorize(ident, authz.ResourceAppointment, authz.ActionCreate, authz.Hints{PatientID: &cmd.PatientID}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	if cmd.ScheduledAt.Before(time.Now()) {
		return nil, appointment.ErrScheduledInPast
	}
	if cmd.DurationMins < 5 || cmd.DurationMins > 480 {
		return nil, appointment.ErrInvalidDuration
	}
	if !cmd.Type.IsValid() {
		return nil, appointment.ErrInvalidAppointmentType
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive() {
		return nil, &ValidationError{Fields: []string{"patient is not active"}}
	}

	doc, err := s.staffRepo.GetByID(ctx, cmd.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("verifying doctor: %w", err)
	}
	if !doc.IsActive() {
		return nil, &ValidationError{Fields: []string{"doctor is not available"}}
	}

	endsAt := cmd.ScheduledAt.Add(time.Duration(cmd.DurationMins) * time.Minute)
	conflict, err := s.repo.HasConflict(ctx, cmd.DoctorID, cmd.ScheduledAt, endsAt, nil)
	if err != nil {
		return nil, fmt.Errorf("checking conflicts: %w", err)
	}
	if conflict {
		return nil, appointment.ErrAppointmentConflict
	}

	a := &appointment.Appointment{
		PatientID:    cmd.PatientID,
		DoctorID:     cmd.DoctorID,
		ScheduledAt:  cmd.ScheduledAt,
		DurationMins: cmd.DurationMins,
		Type:         cmd.Type,
		Status:       appointment.StatusScheduled,
		Reason:       cmd.Reason,
		Notes:        cmd.Notes,
		CreatedBy:    ident.UserID,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentsTotal.WithLabelValues(string(a.Status)).Inc()
	}
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionCreate,
		Resource:   "appointment",
		ResourceID: a.ID.String(),
		New:        appointmentSnapshot(a),
		Meta:       meta,
	})
	return a, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, ident authz.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{PatientID: &a.PatientID, DoctorID: &a.DoctorID}
	if d := authz.Authorize(ident, authz.ResourceAppointment, authz.ActionRead, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	return a, nil
}

// ListAppointments pins the query to the caller's own ids for
// non-privileged roles before it reaches the store.
func (s *AppointmentService) ListAppointments(ctx context.Context, ident authz.Identity, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	if d := authz.Authorize(ident, authz.ResourceAppointment, authz.ActionList, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	switch ident.Role {
	case domain.RolePatient:
		q.PatientID = ident.PatientID
	case domain.RoleDoctor:
		q.DoctorID = ident.StaffID
	}

	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

// UpcomingAppointments backs the reminder and dashboard views: the
// near-term schedule, soonest first. Pinned like ListAppointments, so a
// doctor sees their own calendar and a patient their own visits.
func (s *AppointmentService) UpcomingAppointments(ctx context.Context, ident authz.Identity, within time.Duration) ([]*appointment.Appointment, error) {
	if d := authz.Authorize(ident, authz.ResourceAppointment, authz.ActionList, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	if within <= 0 || within > 7*24*time.Hour {
		within = 24 * time.Hour
	}

	var doctorID, patientID *uuid.UUID
	switch ident.Role {
	case domain.RolePatient:
		patientID = ident.PatientID
	case domain.RoleDoctor:
		doctorID = ident.StaffID
	}
	return s.repo.GetUpcoming(ctx, doctorID, patientID, within)
}

func (s *AppointmentService) RescheduleAppointment(ctx context.Context, ident authz.Identity, id uuid.UUID, cmd *appointment.UpdateAppointmentCommand, meta RequestMeta) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{PatientID: &a.PatientID, DoctorID: &a.DoctorID}
	if d := authz.Authorize(ident, authz.ResourceAppointment, authz.ActionUpdate, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if a.IsTerminal() {
		return nil, appointment.ErrInvalidStatusTransition
	}

	if cmd.ScheduledAt != nil {
		if cmd.ScheduledAt.Before(time.Now()) {
			return nil, appointment.ErrScheduledInPast
		}
		mins := a.DurationMins
		if cmd.DurationMins != nil {
			mins = *cmd.DurationMins
		}
		endsAt := cmd.ScheduledAt.Add(time.Duration(mins) * time.Minute)
		conflict, err := s.repo.HasConflict(ctx, a.DoctorID, *cmd.ScheduledAt, endsAt, &id)
		if err != nil {
			return nil, fmt.Errorf("checking conflicts: %w", err)
		}
		if conflict {
			return nil, appointment.ErrAppointmentConflict
		}
	}

	oldSnap := appointmentSnapshot(a)

	cmd.UpdatedBy = ident.UserID
	updated, err := s.repo.Update(ctx, id, cmd)
	if err != nil {
		return nil, err
	}

	oldVals, newVals := DiffSnapshots(oldSnap, appointmentSnapshot(updated))
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "appointment",
		ResourceID: id.String(),
		Old:        oldVals,
		New:        newVals,
		Meta:       meta,
	})
	return updated, nil
}

// TransitionAppointment applies a status change. Patients may only
// cancel; the richer transitions belong to staff.
func (s *AppointmentService) TransitionAppointment(ctx context.Context, ident authz.Identity, id uuid.UUID, cmd *appointment.TransitionCommand, meta RequestMeta) (*appointment.Appointment, error) {
	if !cmd.NewStatus.IsValid() {
		return nil, appointment.ErrInvalidStatus
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{PatientID: &a.PatientID, DoctorID: &a.DoctorID}
	if d := authz.Authorize(ident, authz.ResourceAppointment, authz.ActionTransition, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if ident.Role == domain.RolePatient && cmd.NewStatus != appointment.StatusCancelled {
		return nil, fmt.Errorf("%w: patients may only cancel appointments", ErrForbidden)
	}

	oldStatus := a.Status
	if err := a.Transition(cmd.NewStatus, ident.UserID, cmd.Reason); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentsTotal.WithLabelValues(string(a.Status)).Inc()
	}
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "appointment",
		ResourceID: id.String(),
		Old:        map[string]any{"status": string(oldStatus)},
		New:        map[string]any{"status": string(a.Status)},
		Meta:       meta,
	})
	return a, nil
}

func (s *AppointmentService) DeleteAppointment(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	hints := authz.Hints{PatientID: &a.PatientID, DoctorID: &a.DoctorID}
	if d := authz.Authorize(ident, authz.ResourceAppointment, authz.ActionDelete, hints); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionDelete,
		Resource:   "appointment",
		ResourceID: id.String(),
		Old:        appointmentSnapshot(a),
		Meta:       meta,
	})
	return nil
}

func appointmentSnapshot(a *appointment.Appointment) map[string]any {
	return map[string]any{
		"patient_id":    a.PatientID.String(),
		"doctor_id":     a.DoctorID.String(),
		"scheduled_at":  a.ScheduledAt.UTC().Format(time.RFC3339),
		"duration_mins": a.DurationMins,
		"type":          string(a.Type),
		"status":        string(a.Status),
		"reason":        a.Reason,
	}
}
