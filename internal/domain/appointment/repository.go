package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, id uuid.UUID, cmd *UpdateAppointmentCommand) (*Appointment, error)
	List(ctx context.Context, q *ListAppointmentsQuery) (*PagedAppointments, error)

	// UpdateStatus persists a status transition already applied in memory.
	UpdateStatus(ctx context.Context, a *Appointment) error

	// SoftDelete hides an appointment without losing scheduling history.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// HasConflict checks whether a doctor already has an appointment that overlaps.
	HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)

	// GetUpcoming returns non-terminal appointments starting within the
	// window, soonest first. When doctorID or patientID is set, the result
	// is scoped to that schedule.
	GetUpcoming(ctx context.Context, doctorID, patientID *uuid.UUID, within time.Duration) ([]*Appointment, error)
}
