package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/patient"
)

func newTestUserService(repo *fakeUserRepo) (*UserService, *AuditService, *captureAuditRepo) {
	auditRepo := &captureAuditRepo{}
	auditSvc := NewAuditService(auditRepo, nil, zap.NewNop())
	svc := NewUserService(repo, &countingHasher{}, auditSvc, testSecurityConfig(), zap.NewNop())
	return svc, auditSvc, auditRepo
}

func registerCommand() *RegisterPatientCommand {
	return &RegisterPatientCommand{
		Username:    "new.patient",
		Password:    "a-long-enough-password",
		Email:       "new.patient@example.com",
		FirstName:   "New",
		LastName:    "Patient",
		DateOfBirth: time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
		Gender:      patient.GenderFemale,
	}
}

func TestRegisterPatientLinksProfile(t *testing.T) {
	repo := newFakeUserRepo()
	svc, auditSvc, auditRepo := newTestUserService(repo)

	user, err := svc.RegisterPatient(context.Background(), registerCommand(), testMeta())
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if user.Role != domain.RolePatient {
		t.Errorf("role = %s, want patient", user.Role)
	}
	if user.PatientID == nil {
		t.Error("user not linked to a patient profile")
	}
	if got := auditRepo.actions(auditSvc); len(got) != 1 || got[0] != domain.ActionCreate {
		t.Errorf("audit actions = %v, want [create]", got)
	}
}

// Registration is one transaction: when the profile insert fails, the
// user row rolls back with it and the username stays available.
func TestRegisterPatientAtomic(t *testing.T) {
	repo := newFakeUserRepo()
	repo.profileCreateErr = errors.New("profile insert failed")
	svc, auditSvc, auditRepo := newTestUserService(repo)

	_, err := svc.RegisterPatient(context.Background(), registerCommand(), testMeta())
	if err == nil {
		t.Fatal("expected registration to fail")
	}
	if len(repo.users) != 0 {
		t.Errorf("orphaned user row survived the failed registration: %v", repo.users)
	}
	if got := auditRepo.drain(auditSvc); len(got) != 0 {
		t.Errorf("failed registration produced %d audit entries", len(got))
	}
}
