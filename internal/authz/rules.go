package authz

import (
	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/domain"
)

type ruleKey struct {
	role     domain.Role
	resource Resource
	action   Action
}

// ownershipRule decides based on who owns the target. Rules deny when the
// hint they depend on is absent.
type ownershipRule func(id Identity, h Hints) Decision

func ownPatient(id Identity, h Hints) Decision {
	if id.PatientID == nil {
		return deny("caller has no patient profile")
	}
	if h.PatientID == nil {
		return deny("patient ownership unknown")
	}
	if *h.PatientID != *id.PatientID {
		return deny("not the patient's own record")
	}
	return allow()
}

func ownDoctor(id Identity, h Hints) Decision {
	if id.StaffID == nil {
		return deny("caller has no staff profile")
	}
	if h.DoctorID == nil {
		return deny("doctor ownership unknown")
	}
	if *h.DoctorID != *id.StaffID {
		return deny("not the attending doctor")
	}
	return allow()
}

// doctorAuthoredOrAssigned allows a doctor to reach a medical record they
// authored, or any record of a patient assigned to them.
func doctorAuthoredOrAssigned(id Identity, h Hints) Decision {
	if id.StaffID == nil {
		return deny("caller has no staff profile")
	}
	if h.DoctorID != nil && *h.DoctorID == *id.StaffID {
		return allow()
	}
	if h.AssignedDoctorID != nil && *h.AssignedDoctorID == *id.StaffID {
		return allow()
	}
	return deny("record not authored by caller and patient not assigned")
}

func ownStaffProfile(id Identity, h Hints) Decision {
	if id.StaffID == nil {
		return deny("caller has no staff profile")
	}
	if h.StaffID == nil {
		return deny("staff ownership unknown")
	}
	if *h.StaffID != *id.StaffID {
		return deny("not the caller's staff profile")
	}
	return allow()
}

func ownUserRow(id Identity, h Hints) Decision {
	if h.UserID == nil {
		return deny("target user unknown")
	}
	if *h.UserID != id.UserID {
		return deny("not the caller's own account")
	}
	return allow()
}

func participant(id Identity, h Hints) Decision {
	if len(h.Participants) == 0 {
		return deny("message participants unknown")
	}
	for _, p := range h.Participants {
		if p == id.UserID {
			return allow()
		}
	}
	return deny("caller is not a participant")
}

// ownershipRules take precedence over the static capability table. Admin
// never reaches either: admins are allowed unconditionally upstream.
var ownershipRules = map[ruleKey]ownershipRule{
	// Users: anyone may read and edit their own account. Role and
	// username changes have no entry anywhere, so they fall through to
	// deny for every non-admin, including the account owner.
	{domain.RolePatient, ResourceUser, ActionRead}:   ownUserRow,
	{domain.RolePatient, ResourceUser, ActionUpdate}: ownUserRow,
	{domain.RoleDoctor, ResourceUser, ActionRead}:    ownUserRow,
	{domain.RoleDoctor, ResourceUser, ActionUpdate}:  ownUserRow,
	{domain.RoleNurse, ResourceUser, ActionRead}:     ownUserRow,
	{domain.RoleNurse, ResourceUser, ActionUpdate}:   ownUserRow,

	// Patients may only see and edit their own clinical profile.
	{domain.RolePatient, ResourcePatient, ActionRead}:   ownPatient,
	{domain.RolePatient, ResourcePatient, ActionUpdate}: ownPatient,

	// Staff self-service on their own profile row.
	{domain.RoleDoctor, ResourceStaff, ActionUpdate}: ownStaffProfile,
	{domain.RoleNurse, ResourceStaff, ActionUpdate}:  ownStaffProfile,

	// Appointments: patients book and manage only appointments naming
	// themselves; doctors manage only their own schedule.
	{domain.RolePatient, ResourceAppointment, ActionCreate}:     ownPatient,
	{domain.RolePatient, ResourceAppointment, ActionRead}:       ownPatient,
	{domain.RolePatient, ResourceAppointment, ActionTransition}: ownPatient,
	{domain.RoleDoctor, ResourceAppointment, ActionRead}:        ownDoctor,
	{domain.RoleDoctor, ResourceAppointment, ActionUpdate}:      ownDoctor,
	{domain.RoleDoctor, ResourceAppointment, ActionTransition}:  ownDoctor,

	// Medical records: patients read their own; doctors read what they
	// authored or what belongs to a patient assigned to them, and amend
	// only what they authored. Nurses get read-only via the capability
	// table and have no write entries at all.
	{domain.RolePatient, ResourceMedicalRecord, ActionRead}: ownPatient,
	{domain.RoleDoctor, ResourceMedicalRecord, ActionRead}:  doctorAuthoredOrAssigned,
	{domain.RoleDoctor, ResourceMedicalRecord, ActionAmend}: ownDoctor,

	// Prescriptions follow the record ownership shape; only the
	// prescriber may cancel.
	{domain.RolePatient, ResourcePrescription, ActionRead}:  ownPatient,
	{domain.RoleDoctor, ResourcePrescription, ActionRead}:   ownDoctor,
	{domain.RoleDoctor, ResourcePrescription, ActionDelete}: ownDoctor,

	// Messages: only participants may read a thread or mark it read.
	{domain.RolePatient, ResourceMessage, ActionRead}:   participant,
	{domain.RolePatient, ResourceMessage, ActionUpdate}: participant,
	{domain.RoleDoctor, ResourceMessage, ActionRead}:    participant,
	{domain.RoleDoctor, ResourceMessage, ActionUpdate}:  participant,
	{domain.RoleNurse, ResourceMessage, ActionRead}:     participant,
	{domain.RoleNurse, ResourceMessage, ActionUpdate}:   participant,
}

// capabilities grant unconditionally for (role, resource, action). List
// actions appear here even for patients because the service layer pins
// list queries to the caller's own ids before they reach the store.
var capabilities = map[ruleKey]struct{}{
	// Clinical staff work with the full patient roster.
	{domain.RoleDoctor, ResourcePatient, ActionCreate}: {},
	{domain.RoleDoctor, ResourcePatient, ActionRead}:   {},
	{domain.RoleDoctor, ResourcePatient, ActionUpdate}: {},
	{domain.RoleDoctor, ResourcePatient, ActionList}:   {},
	{domain.RoleNurse, ResourcePatient, ActionCreate}:  {},
	{domain.RoleNurse, ResourcePatient, ActionRead}:    {},
	{domain.RoleNurse, ResourcePatient, ActionUpdate}:  {},
	{domain.RoleNurse, ResourcePatient, ActionList}:    {},

	// Everyone can browse the staff directory (patients need it to book).
	{domain.RolePatient, ResourceStaff, ActionRead}: {},
	{domain.RolePatient, ResourceStaff, ActionList}: {},
	{domain.RoleDoctor, ResourceStaff, ActionRead}:  {},
	{domain.RoleDoctor, ResourceStaff, ActionList}:  {},
	{domain.RoleNurse, ResourceStaff, ActionRead}:   {},
	{domain.RoleNurse, ResourceStaff, ActionList}:   {},

	// Appointments: staff schedule for any patient; nurses coordinate the
	// whole clinic's calendar.
	{domain.RoleDoctor, ResourceAppointment, ActionCreate}:    {},
	{domain.RoleDoctor, ResourceAppointment, ActionList}:      {},
	{domain.RoleNurse, ResourceAppointment, ActionCreate}:     {},
	{domain.RoleNurse, ResourceAppointment, ActionRead}:       {},
	{domain.RoleNurse, ResourceAppointment, ActionUpdate}:     {},
	{domain.RoleNurse, ResourceAppointment, ActionList}:       {},
	{domain.RoleNurse, ResourceAppointment, ActionTransition}: {},
	{domain.RolePatient, ResourceAppointment, ActionList}:     {},

	// Medical records: doctors author; nurses are read-only.
	{domain.RoleDoctor, ResourceMedicalRecord, ActionCreate}: {},
	{domain.RoleDoctor, ResourceMedicalRecord, ActionList}:   {},
	{domain.RoleNurse, ResourceMedicalRecord, ActionRead}:    {},
	{domain.RoleNurse, ResourceMedicalRecord, ActionList}:    {},
	{domain.RolePatient, ResourceMedicalRecord, ActionList}:  {},

	// Prescriptions: issued and managed by doctors only.
	{domain.RoleDoctor, ResourcePrescription, ActionCreate}: {},
	{domain.RoleDoctor, ResourcePrescription, ActionUpdate}: {},
	{domain.RoleDoctor, ResourcePrescription, ActionList}:   {},
	{domain.RoleNurse, ResourcePrescription, ActionRead}:    {},
	{domain.RoleNurse, ResourcePrescription, ActionList}:    {},
	{domain.RolePatient, ResourcePrescription, ActionList}:  {},

	// Any authenticated user can send messages and list their own box.
	{domain.RolePatient, ResourceMessage, ActionCreate}: {},
	{domain.RolePatient, ResourceMessage, ActionList}:   {},
	{domain.RoleDoctor, ResourceMessage, ActionCreate}:  {},
	{domain.RoleDoctor, ResourceMessage, ActionList}:    {},
	{domain.RoleNurse, ResourceMessage, ActionCreate}:   {},
	{domain.RoleNurse, ResourceMessage, ActionList}:     {},

	// Audit logs are admin-only: no entries, so non-admins always deny.
}

// UUIDPtr is a small helper for building hints from values.
func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
