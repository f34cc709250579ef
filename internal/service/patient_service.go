package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/patient"
)

type PatientService struct {
	repo     patient.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewPatientService(repo patient.Repository, auditSvc *AuditService, log *zap.Logger) *PatientService {
	return &PatientService{
		repo:     repo,
		auditSvc: auditSvc,
		log:      log,
	}
}

// CreatePatient registers a clinical profile on behalf of an existing
// patient user (front-desk flow; self-signup goes through UserService).
func (s *PatientService) CreatePatient(ctx context.Context, ident authz.Identity, cmd *patient.CreatePatientCommand, meta RequestMeta) (*patient.Patient, error) {
	if d := authz.Authorize(ident, authz.ResourcePatient, authz.ActionCreate, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if err := validateCreatePatient(cmd); err != nil {
		return nil, err
	}

	p := &patient.Patient{
		UserID:            cmd.UserID,
		FirstName:         strings.TrimSpace(cmd.FirstName),
		LastName:          strings.TrimSpace(cmd.LastName),
		DateOfBirth:       cmd.DateOfBirth,
		Gender:            cmd.Gender,
		BloodType:         cmd.BloodType,
		EmergencyContact:  cmd.EmergencyContact,
		Insurance:         cmd.Insurance,
		Allergies:         cmd.Allergies,
		ChronicConditions: cmd.ChronicConditions,
		AssignedDoctorID:  cmd.AssignedDoctorID,
		Notes:             cmd.Notes,
		Status:            patient.StatusActive,
		CreatedBy:         ident.UserID,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionCreate,
		Resource:   "patient",
		ResourceID: p.ID.String(),
		Meta:       meta,
	})
	s.log.Info("patient created",
		zap.String("patient_id", p.ID.String()),
		zap.String("created_by", ident.UserID.String()),
	)
	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) (*patient.Patient, error) {
	if d := authz.Authorize(ident, authz.ResourcePatient, authz.ActionRead, authz.Hints{PatientID: &id}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// PHI reads are themselves security-relevant.
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionRead,
		Resource:   "patient",
		ResourceID: id.String(),
		Meta:       meta,
	})
	return p, nil
}

func (s *PatientService) UpdatePatient(ctx context.Context, ident authz.Identity, id uuid.UUID, cmd *patient.UpdatePatientCommand, meta RequestMeta) (*patient.Patient, error) {
	if d := authz.Authorize(ident, authz.ResourcePatient, authz.ActionUpdate, authz.Hints{PatientID: &id}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if cmd.Gender != nil && !cmd.Gender.IsValid() {
		return nil, &ValidationError{Fields: []string{"gender is invalid"}}
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSnap := patientSnapshot(before)

	cmd.UpdatedBy = ident.UserID
	updated, err := s.repo.Update(ctx, id, cmd)
	if err != nil {
		return nil, err
	}

	oldVals, newVals := DiffSnapshots(oldSnap, patientSnapshot(updated))
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "patient",
		ResourceID: id.String(),
		Old:        oldVals,
		New:        newVals,
		Meta:       meta,
	})
	return updated, nil
}

func (s *PatientService) DeactivatePatient(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) error {
	if d := authz.Authorize(ident, authz.ResourcePatient, authz.ActionDelete, authz.Hints{PatientID: &id}); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := p.Deactivate(); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionDelete,
		Resource:   "patient",
		ResourceID: id.String(),
		Meta:       meta,
	})
	return nil
}

// ListPatients: patients never reach the roster (no list grant for them
// on this resource); staff see everything.
func (s *PatientService) ListPatients(ctx context.Context, ident authz.Identity, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	if d := authz.Authorize(ident, authz.ResourcePatient, authz.ActionList, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

func validateCreatePatient(cmd *patient.CreatePatientCommand) error {
	var errs []string

	if cmd.UserID == uuid.Nil {
		errs = append(errs, "user_id is required")
	}
	if strings.TrimSpace(cmd.FirstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(cmd.LastName) == "" {
		errs = append(errs, "last_name is required")
	}
	if cmd.DateOfBirth.IsZero() {
		errs = append(errs, "date_of_birth is required")
	}
	if cmd.DateOfBirth.After(time.Now()) {
		errs = append(errs, "date_of_birth cannot be in the future")
	}
	if !cmd.Gender.IsValid() {
		errs = append(errs, "gender is invalid")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func patientSnapshot(p *patient.Patient) map[string]any {
	return map[string]any{
		"first_name":         p.FirstName,
		"last_name":          p.LastName,
		"blood_type":         string(p.BloodType),
		"status":             string(p.Status),
		"assigned_doctor_id": uuidString(p.AssignedDoctorID),
		"notes":              p.Notes,
	}
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
