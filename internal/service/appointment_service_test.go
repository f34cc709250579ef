package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/appointment"
)

type fakeAppointmentRepo struct {
	upcomingDoctorID  *uuid.UUID
	upcomingPatientID *uuid.UUID
	upcomingWithin    time.Duration
}

func (r *fakeAppointmentRepo) Create(ctx context.Context, a *appointment.Appointment) error {
	return nil
}

func (r *fakeAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return nil, appointment.ErrAppointmentNotFound
}

func (r *fakeAppointmentRepo) Update(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateAppointmentCommand) (*appointment.Appointment, error) {
	return nil, appointment.ErrAppointmentNotFound
}

func (r *fakeAppointmentRepo) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	return &appointment.PagedAppointments{}, nil
}

func (r *fakeAppointmentRepo) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	return nil
}

func (r *fakeAppointmentRepo) SoftDelete(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeAppointmentRepo) HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	return false, nil
}

func (r *fakeAppointmentRepo) GetUpcoming(ctx context.Context, doctorID, patientID *uuid.UUID, within time.Duration) ([]*appointment.Appointment, error) {
	r.upcomingDoctorID = doctorID
	r.upcomingPatientID = patientID
	r.upcomingWithin = within
	return nil, nil
}

func newTestAppointmentService(repo *fakeAppointmentRepo) *AppointmentService {
	auditSvc := NewAuditService(&captureAuditRepo{}, nil, zap.NewNop())
	return NewAppointmentService(repo, newFakePatientRepo(), nil, auditSvc, nil, zap.NewNop())
}

// The upcoming view is pinned the same way as the list: doctors see
// their own calendar, patients their own visits, nurses the clinic's.
func TestUpcomingAppointmentsPinning(t *testing.T) {
	staffID := uuid.New()
	profileID := uuid.New()

	tests := []struct {
		name        string
		ident       authz.Identity
		wantDoctor  *uuid.UUID
		wantPatient *uuid.UUID
	}{
		{
			name:       "doctor pinned to own schedule",
			ident:      authz.Identity{UserID: uuid.New(), Role: domain.RoleDoctor, StaffID: &staffID, Active: true},
			wantDoctor: &staffID,
		},
		{
			name:        "patient pinned to own visits",
			ident:       authz.Identity{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &profileID, Active: true},
			wantPatient: &profileID,
		},
		{
			name:  "nurse unpinned",
			ident: authz.Identity{UserID: uuid.New(), Role: domain.RoleNurse, Active: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeAppointmentRepo{}
			svc := newTestAppointmentService(repo)

			if _, err := svc.UpcomingAppointments(context.Background(), tt.ident, time.Hour); err != nil {
				t.Fatalf("UpcomingAppointments: %v", err)
			}
			if (repo.upcomingDoctorID == nil) != (tt.wantDoctor == nil) {
				t.Errorf("doctor pin = %v, want %v", repo.upcomingDoctorID, tt.wantDoctor)
			} else if tt.wantDoctor != nil && *repo.upcomingDoctorID != *tt.wantDoctor {
				t.Errorf("doctor pin = %v, want %v", *repo.upcomingDoctorID, *tt.wantDoctor)
			}
			if (repo.upcomingPatientID == nil) != (tt.wantPatient == nil) {
				t.Errorf("patient pin = %v, want %v", repo.upcomingPatientID, tt.wantPatient)
			} else if tt.wantPatient != nil && *repo.upcomingPatientID != *tt.wantPatient {
				t.Errorf("patient pin = %v, want %v", *repo.upcomingPatientID, *tt.wantPatient)
			}
		})
	}
}

func TestUpcomingAppointmentsClampsWindow(t *testing.T) {
	repo := &fakeAppointmentRepo{}
	svc := newTestAppointmentService(repo)
	nurse := authz.Identity{UserID: uuid.New(), Role: domain.RoleNurse, Active: true}

	for _, within := range []time.Duration{0, -time.Hour, 30 * 24 * time.Hour} {
		if _, err := svc.UpcomingAppointments(context.Background(), nurse, within); err != nil {
			t.Fatalf("UpcomingAppointments(%v): %v", within, err)
		}
		if repo.upcomingWithin != 24*time.Hour {
			t.Errorf("window %v not clamped: got %v", within, repo.upcomingWithin)
		}
	}
}
