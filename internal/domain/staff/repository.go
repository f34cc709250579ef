package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new staff profile. Returns ErrLicenseAlreadyExists
	// when the license number collides.
	Create(ctx context.Context, m *MedicalStaff) error

	GetByID(ctx context.Context, id uuid.UUID) (*MedicalStaff, error)

	GetByUserID(ctx context.Context, userID uuid.UUID) (*MedicalStaff, error)

	Update(ctx context.Context, id uuid.UUID, cmd *UpdateStaffCommand) (*MedicalStaff, error)

	SoftDelete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, q *ListStaffQuery) (*PagedStaff, error)
}
