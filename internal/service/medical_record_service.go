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
	mr "github.com/harborhealth/caregate/internal/domain/medical_record"
	"github.com/harborhealth/caregate/internal/domain/patient"
)

type MedicalRecordService struct {
	repo        mr.Repository
	patientRepo patient.Repository
	auditSvc    *AuditService
	log         *zap.Logger
}

func NewMedicalRecordService(repo mr.Repository, patientRepo patient.Repository, auditSvc *AuditService, log *zap.Logger) *MedicalRecordService {
	return &MedicalRecordService{repo: repo, patientRepo: patientRepo, auditSvc: auditSvc, log: log}
}

// CreateRecord writes a visit record. Only doctors (and admins) hold the
// create capability; nurses are read-only on this resource. The authoring
// doctor is always the caller, never taken from the request.
func (s *MedicalRecordService) CreateRecord(ctx context.Context, ident authz.Identity, cmd *mr.CreateRecordCommand, meta RequestMeta) (*mr.MedicalRecord, error) {
	if d := authz.Authorize(ident, authz.ResourceMedicalRecord, authz.ActionCreate, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if !cmd.Type.IsValid() {
		return nil, mr.ErrInvalidRecordType
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	doctorID := cmd.DoctorID
	if ident.Role == domain.RoleDoctor {
		if ident.StaffID == nil {
			return nil, fmt.Errorf("%w: caller has no staff profile", ErrForbidden)
		}
		doctorID = *ident.StaffID
	}

	visitAt := cmd.VisitAt
	if visitAt.IsZero() {
		visitAt = time.Now()
	}

	record := &mr.MedicalRecord{
		PatientID:        p.ID,
		AppointmentID:    cmd.AppointmentID,
		DoctorID:         doctorID,
		Type:             cmd.Type,
		VisitAt:          visitAt,
		SOAPNote:         cmd.SOAPNote,
		Vitals:           cmd.Vitals,
		Symptoms:         cmd.Symptoms,
		Diagnoses:        cmd.Diagnoses,
		Treatment:        cmd.Treatment,
		PrescriptionText: cmd.PrescriptionText,
		Notes:            cmd.Notes,
		CreatedBy:        ident.UserID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.log.Error("failed to create medical record", zap.Error(err))
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionCreate,
		Resource:   "medical_record",
		ResourceID: record.ID.String(),
		New: map[string]any{
			"patient_id": record.PatientID.String(),
			"doctor_id":  record.DoctorID.String(),
			"type":       string(record.Type),
		},
		Meta: meta,
	})
	return record, nil
}

// GetRecord enforces the tightest ownership rule in the system: patients
// see only their own records, doctors only what they authored or what
// belongs to a patient assigned to them.
func (s *MedicalRecordService) GetRecord(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) (*mr.MedicalRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{
		PatientID: &record.PatientID,
		DoctorID:  &record.DoctorID,
	}
	// The assigned-doctor hint costs a patient lookup, so only resolve it
	// for doctor callers who did not author the record.
	if ident.Role == domain.RoleDoctor && (ident.StaffID == nil || *ident.StaffID != record.DoctorID) {
		if p, perr := s.patientRepo.GetByID(ctx, record.PatientID); perr == nil {
			hints.AssignedDoctorID = p.AssignedDoctorID
		}
	}

	if d := authz.Authorize(ident, authz.ResourceMedicalRecord, authz.ActionRead, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionRead,
		Resource:   "medical_record",
		ResourceID: id.String(),
		Meta:       meta,
	})
	return record, nil
}

// AddAddendum appends a correction to an existing record without modifying it.
func (s *MedicalRecordService) AddAddendum(ctx context.Context, ident authz.Identity, cmd *mr.AddAddendumCommand, meta RequestMeta) (*mr.Addendum, error) {
	record, err := s.repo.GetByID(ctx, cmd.MedicalRecordID)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{DoctorID: &record.DoctorID}
	if d := authz.Authorize(ident, authz.ResourceMedicalRecord, authz.ActionAmend, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if strings.TrimSpace(cmd.Content) == "" {
		return nil, &ValidationError{Fields: []string{"content is required"}}
	}

	addendum := &mr.Addendum{
		MedicalRecordID: cmd.MedicalRecordID,
		Content:         cmd.Content,
		CreatedBy:       ident.UserID,
	}
	if err := s.repo.AddAddendum(ctx, addendum); err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "medical_record",
		ResourceID: cmd.MedicalRecordID.String(),
		New:        map[string]any{"addendum_id": addendum.ID.String()},
		Meta:       meta,
	})
	return addendum, nil
}

func (s *MedicalRecordService) ListRecords(ctx context.Context, ident authz.Identity, q *mr.ListRecordsQuery) (*mr.PagedRecords, error) {
	if d := authz.Authorize(ident, authz.ResourceMedicalRecord, authz.ActionList, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	// Patients only ever list their own chart; doctors only the records
	// they authored. Nurses and admins browse unpinned.
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
