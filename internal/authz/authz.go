// Package authz is the single authorization gate for the API. Every
// handler path resolves an Identity, then calls Authorize before touching
// a repository. Decisions are a pure function of the inputs: the rule
// table is fixed at compile time and nothing here reads or writes
// persistent state.
package authz

import (
	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/domain"
)

type Resource string

const (
	ResourceUser          Resource = "user"
	ResourcePatient       Resource = "patient"
	ResourceStaff         Resource = "medical_staff"
	ResourceAppointment   Resource = "appointment"
	ResourceMedicalRecord Resource = "medical_record"
	ResourcePrescription  Resource = "prescription"
	ResourceMessage       Resource = "message"
	ResourceAuditLog      Resource = "audit_log"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionList   Action = "list"
	ActionDelete Action = "delete"

	// ActionTransition covers appointment status changes.
	ActionTransition Action = "transition"
	// ActionAmend covers medical record addenda.
	ActionAmend Action = "amend"

	// Role and username changes are admin-only operations, distinct from
	// a user editing their own profile.
	ActionChangeRole     Action = "change_role"
	ActionChangeUsername Action = "change_username"
)

// Identity is the resolved caller. Active and Locked reflect the current
// user row, not the session claims, so deactivation takes effect
// immediately rather than at token expiry.
type Identity struct {
	UserID    uuid.UUID
	Role      domain.Role
	PatientID *uuid.UUID
	StaffID   *uuid.UUID
	Active    bool
	Locked    bool
}

// Hints carry the ownership facts of the target resource. A rule that
// needs a hint the caller did not supply denies: missing data is never
// treated as a match.
type Hints struct {
	// PatientID is the owning patient profile of the target resource.
	PatientID *uuid.UUID
	// DoctorID is the authoring or attending doctor's staff profile.
	DoctorID *uuid.UUID
	// AssignedDoctorID is the target patient's assigned doctor, used for
	// medical record reads by non-authoring doctors.
	AssignedDoctorID *uuid.UUID
	// StaffID is the target staff profile for staff self-service.
	StaffID *uuid.UUID
	// UserID is the target user row for user self-service.
	UserID *uuid.UUID
	// Participants are the user ids allowed to see a message thread.
	Participants []uuid.UUID
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Authorize evaluates (identity, resource, action, hints) against the rule
// table. Precedence: identity checks, admin allow, ownership rule, static
// capability, default deny.
func Authorize(id Identity, resource Resource, action Action, hints Hints) Decision {
	if id.UserID == uuid.Nil || !id.Role.IsValid() {
		return deny("unauthenticated")
	}
	if !id.Active {
		return deny("account is inactive")
	}
	if id.Locked {
		return deny("account is locked")
	}

	if id.Role == domain.RoleAdmin {
		return allow()
	}

	key := ruleKey{role: id.Role, resource: resource, action: action}

	if rule, ok := ownershipRules[key]; ok {
		return rule(id, hints)
	}

	if _, ok := capabilities[key]; ok {
		return allow()
	}

	return deny("no grant for " + string(id.Role) + " on " + string(resource) + "/" + string(action))
}
