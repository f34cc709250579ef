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
	"github.com/harborhealth/caregate/internal/domain/prescription"
)

type PrescriptionService struct {
	repo        prescription.Repository
	patientRepo patient.Repository
	auditSvc    *AuditService
	log         *zap.Logger
}

func NewPrescriptionService(repo prescription.Repository, patientRepo patient.Repository, auditSvc *AuditService, log *zap.Logger) *PrescriptionService {
	return &PrescriptionService{repo: repo, patientRepo: patientRepo, auditSvc: auditSvc, log: log}
}

// IssuePrescription creates a prescription. The prescribing doctor is
// always the caller for doctor roles; admins may issue on behalf of a
// named doctor.
func (s *PrescriptionService) IssuePrescription(ctx context.Context, ident authz.Identity, cmd *prescription.CreatePrescriptionCommand, meta RequestMeta) (*prescription.Prescription, error) {
	if d := authz.Authorize(ident, authz.ResourcePrescription, authz.ActionCreate, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if err := validateCreatePrescription(cmd); err != nil {
		return nil, err
	}

	if _, err := s.patientRepo.GetByID(ctx, cmd.PatientID); err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	doctorID := cmd.DoctorID
	if ident.Role == domain.RoleDoctor {
		if ident.StaffID == nil {
			return nil, fmt.Errorf("%w: caller has no staff profile", ErrForbidden)
		}
		doctorID = *ident.StaffID
	}

	issuedAt := cmd.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	expiresAt := cmd.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = issuedAt.AddDate(1, 0, 0)
	}

	p := &prescription.Prescription{
		PatientID:       cmd.PatientID,
		DoctorID:        doctorID,
		AppointmentID:   cmd.AppointmentID,
		MedicationName:  strings.TrimSpace(cmd.MedicationName),
		DosageAmount:    cmd.DosageAmount,
		DosageFrequency: cmd.DosageFrequency,
		Route:           cmd.Route,
		Quantity:        cmd.Quantity,
		RefillsAllowed:  cmd.RefillsAllowed,
		IssuedAt:        issuedAt,
		ExpiresAt:       expiresAt,
		Status:          prescription.StatusActive,
		Instructions:    cmd.Instructions,
		CreatedBy:       ident.UserID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("failed to create prescription", zap.Error(err))
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionCreate,
		Resource:   "prescription",
		ResourceID: p.ID.String(),
		New: map[string]any{
			"patient_id": p.PatientID.String(),
			"doctor_id":  p.DoctorID.String(),
			"medication": p.MedicationName,
			"quantity":   p.Quantity,
		},
		Meta: meta,
	})
	return p, nil
}

func (s *PrescriptionService) GetPrescription(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) (*prescription.Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{PatientID: &p.PatientID, DoctorID: &p.DoctorID}
	if d := authz.Authorize(ident, authz.ResourcePrescription, authz.ActionRead, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionRead,
		Resource:   "prescription",
		ResourceID: id.String(),
		Meta:       meta,
	})
	return p, nil
}

func (s *PrescriptionService) ListPrescriptions(ctx context.Context, ident authz.Identity, q *prescription.ListPrescriptionsQuery) (*prescription.PagedPrescriptions, error) {
	if d := authz.Authorize(ident, authz.ResourcePrescription, authz.ActionList, authz.Hints{}); !d.Allowed {
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

// RefillPrescription consumes one refill. Pharmacist workflows are out
// of scope, so doctors trigger refills on the patient's behalf.
func (s *PrescriptionService) RefillPrescription(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) (*prescription.Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{PatientID: &p.PatientID, DoctorID: &p.DoctorID}
	if d := authz.Authorize(ident, authz.ResourcePrescription, authz.ActionUpdate, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	oldRefills := p.RefillsUsed
	oldStatus := p.Status
	if err := p.Refill(); err != nil {
		return nil, err
	}
	if err := s.repo.Refill(ctx, p); err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "prescription",
		ResourceID: id.String(),
		Old:        map[string]any{"refills_used": oldRefills, "status": string(oldStatus)},
		New:        map[string]any{"refills_used": p.RefillsUsed, "status": string(p.Status)},
		Meta:       meta,
	})
	return p, nil
}

// CancelPrescription closes an active prescription. Only the prescriber
// or an admin holds this grant; patients cannot cancel their own.
func (s *PrescriptionService) CancelPrescription(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	hints := authz.Hints{DoctorID: &p.DoctorID}
	if d := authz.Authorize(ident, authz.ResourcePrescription, authz.ActionDelete, hints); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	oldStatus := p.Status
	if err := p.Cancel(); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, p.Status); err != nil {
		return err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionDelete,
		Resource:   "prescription",
		ResourceID: id.String(),
		Old:        map[string]any{"status": string(oldStatus)},
		New:        map[string]any{"status": string(p.Status)},
		Meta:       meta,
	})
	return nil
}

func validateCreatePrescription(cmd *prescription.CreatePrescriptionCommand) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if strings.TrimSpace(cmd.MedicationName) == "" {
		errs = append(errs, "medication_name is required")
	}
	if strings.TrimSpace(cmd.DosageAmount) == "" {
		errs = append(errs, "dosage_amount is required")
	}
	if strings.TrimSpace(cmd.DosageFrequency) == "" {
		errs = append(errs, "dosage_frequency is required")
	}
	if cmd.Quantity <= 0 {
		errs = append(errs, "quantity must be positive")
	}
	if cmd.RefillsAllowed < 0 {
		errs = append(errs, "refills_allowed cannot be negative")
	}
	switch cmd.Route {
	case prescription.RouteOral, prescription.RouteIntravenous, prescription.RouteIntramuscular,
		prescription.RouteTopical, prescription.RouteInhaled:
	default:
		errs = append(errs, "route is invalid")
	}
	if !cmd.ExpiresAt.IsZero() && !cmd.IssuedAt.IsZero() && cmd.ExpiresAt.Before(cmd.IssuedAt) {
		errs = append(errs, "expires_at must be after issued_at")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
