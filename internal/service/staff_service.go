package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/staff"
)

type StaffService struct {
	repo     staff.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewStaffService(repo staff.Repository, auditSvc *AuditService, log *zap.Logger) *StaffService {
	return &StaffService{repo: repo, auditSvc: auditSvc, log: log}
}

func (s *StaffService) GetStaff(ctx context.Context, ident authz.Identity, id uuid.UUID) (*staff.MedicalStaff, error) {
	if d := authz.Authorize(ident, authz.ResourceStaff, authz.ActionRead, authz.Hints{StaffID: &id}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	return s.repo.GetByID(ctx, id)
}

// ListStaff backs the directory patients browse when booking.
func (s *StaffService) ListStaff(ctx context.Context, ident authz.Identity, q *staff.ListStaffQuery) (*staff.PagedStaff, error) {
	if d := authz.Authorize(ident, authz.ResourceStaff, authz.ActionList, authz.Hints{}); !d.Allowed {
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

// UpdateStaff: staff edit their own profile; employment status changes
// are admin-only and go through the same command.
func (s *StaffService) UpdateStaff(ctx context.Context, ident authz.Identity, id uuid.UUID, cmd *staff.UpdateStaffCommand, meta RequestMeta) (*staff.MedicalStaff, error) {
	if d := authz.Authorize(ident, authz.ResourceStaff, authz.ActionUpdate, authz.Hints{StaffID: &id}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if cmd.EmploymentStatus != nil {
		if !cmd.EmploymentStatus.IsValid() {
			return nil, &ValidationError{Fields: []string{"employment_status is invalid"}}
		}
		// Only administrators flip employment status.
		if ident.Role != domain.RoleAdmin {
			return nil, fmt.Errorf("%w: employment status changes require an administrator", ErrForbidden)
		}
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSnap := staffSnapshot(before)

	cmd.UpdatedBy = ident.UserID
	updated, err := s.repo.Update(ctx, id, cmd)
	if err != nil {
		return nil, err
	}

	oldVals, newVals := DiffSnapshots(oldSnap, staffSnapshot(updated))
	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "medical_staff",
		ResourceID: id.String(),
		Old:        oldVals,
		New:        newVals,
		Meta:       meta,
	})
	return updated, nil
}

func (s *StaffService) DeactivateStaff(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) error {
	if d := authz.Authorize(ident, authz.ResourceStaff, authz.ActionDelete, authz.Hints{StaffID: &id}); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionDelete,
		Resource:   "medical_staff",
		ResourceID: id.String(),
		Meta:       meta,
	})
	return nil
}

func staffSnapshot(m *staff.MedicalStaff) map[string]any {
	return map[string]any{
		"first_name":        m.FirstName,
		"last_name":         m.LastName,
		"specialization":    m.Specialization,
		"department":        m.Department,
		"employment_status": string(m.EmploymentStatus),
	}
}
