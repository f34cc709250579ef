package authz

import (
	"testing"

	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/domain"
)

func activeIdentity(role domain.Role) Identity {
	return Identity{
		UserID: uuid.New(),
		Role:   role,
		Active: true,
	}
}

func TestAuthorizeIdentityChecks(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
	}{
		{"zero identity", Identity{}},
		{"missing user id", Identity{Role: domain.RoleAdmin, Active: true}},
		{"invalid role", Identity{UserID: uuid.New(), Role: "superuser", Active: true}},
		{"inactive account", Identity{UserID: uuid.New(), Role: domain.RoleAdmin, Active: false}},
		{"locked account", Identity{UserID: uuid.New(), Role: domain.RoleAdmin, Active: true, Locked: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.id, ResourcePatient, ActionRead, Hints{})
			if d.Allowed {
				t.Fatalf("expected deny for %s, got allow", tt.name)
			}
			if d.Reason == "" {
				t.Error("deny should carry a reason")
			}
		})
	}
}

func TestAuthorizeAdminBypassesRules(t *testing.T) {
	admin := activeIdentity(domain.RoleAdmin)
	resources := []Resource{
		ResourceUser, ResourcePatient, ResourceStaff, ResourceAppointment,
		ResourceMedicalRecord, ResourcePrescription, ResourceMessage, ResourceAuditLog,
	}
	actions := []Action{
		ActionCreate, ActionRead, ActionUpdate, ActionList, ActionDelete,
		ActionTransition, ActionAmend, ActionChangeRole, ActionChangeUsername,
	}
	for _, res := range resources {
		for _, act := range actions {
			if d := Authorize(admin, res, act, Hints{}); !d.Allowed {
				t.Errorf("admin denied %s/%s: %s", res, act, d.Reason)
			}
		}
	}
}

func TestAuthorizeDefaultDeny(t *testing.T) {
	tests := []struct {
		name     string
		role     domain.Role
		resource Resource
		action   Action
	}{
		{"patient creates medical record", domain.RolePatient, ResourceMedicalRecord, ActionCreate},
		{"nurse creates medical record", domain.RoleNurse, ResourceMedicalRecord, ActionCreate},
		{"nurse amends medical record", domain.RoleNurse, ResourceMedicalRecord, ActionAmend},
		{"patient issues prescription", domain.RolePatient, ResourcePrescription, ActionCreate},
		{"nurse issues prescription", domain.RoleNurse, ResourcePrescription, ActionCreate},
		{"patient lists users", domain.RolePatient, ResourceUser, ActionList},
		{"doctor lists users", domain.RoleDoctor, ResourceUser, ActionList},
		{"patient reads audit logs", domain.RolePatient, ResourceAuditLog, ActionList},
		{"doctor reads audit logs", domain.RoleDoctor, ResourceAuditLog, ActionList},
		{"nurse reads audit logs", domain.RoleNurse, ResourceAuditLog, ActionList},
		{"patient deletes appointment", domain.RolePatient, ResourceAppointment, ActionDelete},
		{"doctor deletes patient", domain.RoleDoctor, ResourcePatient, ActionDelete},
		{"nurse deletes staff", domain.RoleNurse, ResourceStaff, ActionDelete},
		{"patient creates staff", domain.RolePatient, ResourceStaff, ActionCreate},
		{"doctor creates user", domain.RoleDoctor, ResourceUser, ActionCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := activeIdentity(tt.role)
			if d := Authorize(id, tt.resource, tt.action, Hints{}); d.Allowed {
				t.Errorf("expected default deny for %s on %s/%s", tt.role, tt.resource, tt.action)
			}
		})
	}
}

// Role and username changes must deny even for the account owner.
func TestAuthorizeSelfRoleChangeDenied(t *testing.T) {
	for _, role := range []domain.Role{domain.RolePatient, domain.RoleDoctor, domain.RoleNurse} {
		id := activeIdentity(role)
		self := id.UserID

		if d := Authorize(id, ResourceUser, ActionChangeRole, Hints{UserID: &self}); d.Allowed {
			t.Errorf("%s changed their own role", role)
		}
		if d := Authorize(id, ResourceUser, ActionChangeUsername, Hints{UserID: &self}); d.Allowed {
			t.Errorf("%s changed their own username", role)
		}
	}
}

func TestAuthorizePatientOwnership(t *testing.T) {
	profileID := uuid.New()
	otherID := uuid.New()

	patient := activeIdentity(domain.RolePatient)
	patient.PatientID = &profileID

	tests := []struct {
		name    string
		hints   Hints
		allowed bool
	}{
		{"own profile", Hints{PatientID: &profileID}, true},
		{"someone else's profile", Hints{PatientID: &otherID}, false},
		{"missing hint denies", Hints{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(patient, ResourcePatient, ActionRead, tt.hints)
			if d.Allowed != tt.allowed {
				t.Errorf("got allowed=%v (%s), want %v", d.Allowed, d.Reason, tt.allowed)
			}
		})
	}

	// A patient identity without a linked profile can never pass an
	// ownership rule.
	noProfile := activeIdentity(domain.RolePatient)
	if d := Authorize(noProfile, ResourcePatient, ActionRead, Hints{PatientID: &profileID}); d.Allowed {
		t.Error("patient with no profile id passed ownership check")
	}
}

func TestAuthorizeDoctorRecordAccess(t *testing.T) {
	staffID := uuid.New()
	otherStaff := uuid.New()

	doctor := activeIdentity(domain.RoleDoctor)
	doctor.StaffID = &staffID

	tests := []struct {
		name    string
		hints   Hints
		allowed bool
	}{
		{"authored record", Hints{DoctorID: &staffID}, true},
		{"assigned patient's record", Hints{DoctorID: &otherStaff, AssignedDoctorID: &staffID}, true},
		{"unrelated record", Hints{DoctorID: &otherStaff, AssignedDoctorID: &otherStaff}, false},
		{"no hints", Hints{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(doctor, ResourceMedicalRecord, ActionRead, tt.hints)
			if d.Allowed != tt.allowed {
				t.Errorf("got allowed=%v (%s), want %v", d.Allowed, d.Reason, tt.allowed)
			}
		})
	}

	// Amend is stricter: authorship only, assignment does not help.
	d := Authorize(doctor, ResourceMedicalRecord, ActionAmend, Hints{DoctorID: &otherStaff, AssignedDoctorID: &staffID})
	if d.Allowed {
		t.Error("doctor amended a record they did not author")
	}
}

func TestAuthorizeNurseMedicalRecords(t *testing.T) {
	nurse := activeIdentity(domain.RoleNurse)

	if d := Authorize(nurse, ResourceMedicalRecord, ActionRead, Hints{}); !d.Allowed {
		t.Errorf("nurse denied record read: %s", d.Reason)
	}
	if d := Authorize(nurse, ResourceMedicalRecord, ActionList, Hints{}); !d.Allowed {
		t.Errorf("nurse denied record list: %s", d.Reason)
	}
	for _, act := range []Action{ActionCreate, ActionUpdate, ActionAmend, ActionDelete} {
		if d := Authorize(nurse, ResourceMedicalRecord, act, Hints{}); d.Allowed {
			t.Errorf("nurse allowed record %s", act)
		}
	}
}

func TestAuthorizeAppointmentRules(t *testing.T) {
	patientProfile := uuid.New()
	staffProfile := uuid.New()
	other := uuid.New()

	patient := activeIdentity(domain.RolePatient)
	patient.PatientID = &patientProfile

	doctor := activeIdentity(domain.RoleDoctor)
	doctor.StaffID = &staffProfile

	// Patients book only for themselves.
	if d := Authorize(patient, ResourceAppointment, ActionCreate, Hints{PatientID: &patientProfile}); !d.Allowed {
		t.Errorf("patient denied booking own appointment: %s", d.Reason)
	}
	if d := Authorize(patient, ResourceAppointment, ActionCreate, Hints{PatientID: &other}); d.Allowed {
		t.Error("patient booked for another patient")
	}

	// Doctors manage only their own schedule.
	if d := Authorize(doctor, ResourceAppointment, ActionTransition, Hints{DoctorID: &staffProfile}); !d.Allowed {
		t.Errorf("doctor denied own appointment transition: %s", d.Reason)
	}
	if d := Authorize(doctor, ResourceAppointment, ActionTransition, Hints{DoctorID: &other}); d.Allowed {
		t.Error("doctor transitioned another doctor's appointment")
	}

	// Nurses coordinate the whole calendar.
	nurse := activeIdentity(domain.RoleNurse)
	for _, act := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionList, ActionTransition} {
		if d := Authorize(nurse, ResourceAppointment, act, Hints{}); !d.Allowed {
			t.Errorf("nurse denied appointment %s: %s", act, d.Reason)
		}
	}
}

func TestAuthorizeMessageParticipants(t *testing.T) {
	sender := activeIdentity(domain.RolePatient)
	recipient := uuid.New()
	outsider := activeIdentity(domain.RoleDoctor)

	participants := []uuid.UUID{sender.UserID, recipient}

	if d := Authorize(sender, ResourceMessage, ActionRead, Hints{Participants: participants}); !d.Allowed {
		t.Errorf("participant denied message read: %s", d.Reason)
	}
	if d := Authorize(outsider, ResourceMessage, ActionRead, Hints{Participants: participants}); d.Allowed {
		t.Error("non-participant read a message")
	}
	if d := Authorize(sender, ResourceMessage, ActionRead, Hints{}); d.Allowed {
		t.Error("empty participant list should deny")
	}
}

// Decisions are a pure function of the inputs: evaluating twice gives
// the same answer.
func TestAuthorizeDeterministic(t *testing.T) {
	profileID := uuid.New()
	id := activeIdentity(domain.RolePatient)
	id.PatientID = &profileID
	hints := Hints{PatientID: &profileID}

	first := Authorize(id, ResourcePatient, ActionRead, hints)
	for i := 0; i < 100; i++ {
		if got := Authorize(id, ResourcePatient, ActionRead, hints); got != first {
			t.Fatalf("decision changed between evaluations: %+v vs %+v", first, got)
		}
	}
}

// The scenario a doctor hits when opening another doctor's patient:
// record read denied, roster read allowed.
func TestAuthorizeDoctorCrossPatientScenario(t *testing.T) {
	staffID := uuid.New()
	doctor := activeIdentity(domain.RoleDoctor)
	doctor.StaffID = &staffID

	otherDoctor := uuid.New()

	if d := Authorize(doctor, ResourcePatient, ActionRead, Hints{}); !d.Allowed {
		t.Errorf("doctor denied roster read: %s", d.Reason)
	}
	d := Authorize(doctor, ResourceMedicalRecord, ActionRead, Hints{
		DoctorID:         &otherDoctor,
		AssignedDoctorID: &otherDoctor,
	})
	if d.Allowed {
		t.Error("doctor read an unrelated patient's record")
	}
}
