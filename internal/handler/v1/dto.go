package v1

import (
	"time"

	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/appointment"
	mr "github.com/harborhealth/caregate/internal/domain/medical_record"
	"github.com/harborhealth/caregate/internal/domain/message"
	"github.com/harborhealth/caregate/internal/domain/patient"
	"github.com/harborhealth/caregate/internal/domain/prescription"
	"github.com/harborhealth/caregate/internal/domain/staff"
)

// UserResponse is the wire shape for accounts. The password hash and
// lockout bookkeeping never leave the service.
type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	Role        domain.Role `json:"role"`
	StaffID     *uuid.UUID `json:"staff_id,omitempty"`
	PatientID   *uuid.UUID `json:"patient_id,omitempty"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		Address:     u.Address,
		Role:        u.Role,
		StaffID:     u.StaffID,
		PatientID:   u.PatientID,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func toUserResponses(users []*domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

type PatientResponse struct {
	ID                uuid.UUID                 `json:"id"`
	UserID            uuid.UUID                 `json:"user_id"`
	FirstName         string                    `json:"first_name"`
	LastName          string                    `json:"last_name"`
	DateOfBirth       time.Time                 `json:"date_of_birth"`
	Age               int                       `json:"age"`
	Gender            patient.Gender            `json:"gender"`
	BloodType         patient.BloodType         `json:"blood_type,omitempty"`
	EmergencyContact  *patient.EmergencyContact `json:"emergency_contact,omitempty"`
	Insurance         *patient.Insurance        `json:"insurance,omitempty"`
	Allergies         []string                  `json:"allergies,omitempty"`
	ChronicConditions []string                  `json:"chronic_conditions,omitempty"`
	Status            patient.Status            `json:"status"`
	AssignedDoctorID  *uuid.UUID                `json:"assigned_doctor_id,omitempty"`
	Notes             string                    `json:"notes,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
}

func toPatientResponse(p *patient.Patient) PatientResponse {
	return PatientResponse{
		ID:                p.ID,
		UserID:            p.UserID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		DateOfBirth:       p.DateOfBirth,
		Age:               p.Age(),
		Gender:            p.Gender,
		BloodType:         p.BloodType,
		EmergencyContact:  p.EmergencyContact,
		Insurance:         p.Insurance,
		Allergies:         p.Allergies,
		ChronicConditions: p.ChronicConditions,
		Status:            p.Status,
		AssignedDoctorID:  p.AssignedDoctorID,
		Notes:             p.Notes,
		CreatedAt:         p.CreatedAt,
	}
}

func toPatientResponses(patients []*patient.Patient) []PatientResponse {
	out := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		out = append(out, toPatientResponse(p))
	}
	return out
}

type StaffResponse struct {
	ID               uuid.UUID              `json:"id"`
	UserID           uuid.UUID              `json:"user_id"`
	FirstName        string                 `json:"first_name"`
	LastName         string                 `json:"last_name"`
	Specialization   string                 `json:"specialization,omitempty"`
	LicenseNumber    string                 `json:"license_number"`
	Department       string                 `json:"department,omitempty"`
	EmploymentStatus staff.EmploymentStatus `json:"employment_status"`
	HiredAt          *time.Time             `json:"hired_at,omitempty"`
}

func toStaffResponse(m *staff.MedicalStaff) StaffResponse {
	return StaffResponse{
		ID:               m.ID,
		UserID:           m.UserID,
		FirstName:        m.FirstName,
		LastName:         m.LastName,
		Specialization:   m.Specialization,
		LicenseNumber:    m.LicenseNumber,
		Department:       m.Department,
		EmploymentStatus: m.EmploymentStatus,
		HiredAt:          m.HiredAt,
	}
}

func toStaffResponses(members []*staff.MedicalStaff) []StaffResponse {
	out := make([]StaffResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toStaffResponse(m))
	}
	return out
}

type AppointmentResponse struct {
	ID                 uuid.UUID                     `json:"id"`
	PatientID          uuid.UUID                     `json:"patient_id"`
	DoctorID           uuid.UUID                     `json:"doctor_id"`
	ScheduledAt        time.Time                     `json:"scheduled_at"`
	EndsAt             time.Time                     `json:"ends_at"`
	DurationMins       int                           `json:"duration_mins"`
	Type               appointment.AppointmentType   `json:"type"`
	Status             appointment.AppointmentStatus `json:"status"`
	Reason             string                        `json:"reason,omitempty"`
	Notes              string                        `json:"notes,omitempty"`
	CancelledAt        *time.Time                    `json:"cancelled_at,omitempty"`
	CancellationReason string                        `json:"cancellation_reason,omitempty"`
	CompletedAt        *time.Time                    `json:"completed_at,omitempty"`
	CreatedAt          time.Time                     `json:"created_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		DoctorID:           a.DoctorID,
		ScheduledAt:        a.ScheduledAt,
		EndsAt:             a.EndsAt(),
		DurationMins:       a.DurationMins,
		Type:               a.Type,
		Status:             a.Status,
		Reason:             a.Reason,
		Notes:              a.Notes,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		CompletedAt:        a.CompletedAt,
		CreatedAt:          a.CreatedAt,
	}
}

func toAppointmentResponses(appts []*appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type AddendumResponse struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type MedicalRecordResponse struct {
	ID               uuid.UUID          `json:"id"`
	PatientID        uuid.UUID          `json:"patient_id"`
	AppointmentID    *uuid.UUID         `json:"appointment_id,omitempty"`
	DoctorID         uuid.UUID          `json:"doctor_id"`
	Type             mr.RecordType      `json:"type"`
	VisitAt          time.Time          `json:"visit_at"`
	SOAPNote         *mr.SOAPNote       `json:"soap_note,omitempty"`
	Vitals           *mr.Vitals         `json:"vitals,omitempty"`
	Symptoms         string             `json:"symptoms,omitempty"`
	Diagnoses        []string           `json:"diagnoses,omitempty"`
	Treatment        string             `json:"treatment,omitempty"`
	PrescriptionText string             `json:"prescription_text,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	Addenda          []AddendumResponse `json:"addenda,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

func toMedicalRecordResponse(r *mr.MedicalRecord) MedicalRecordResponse {
	addenda := make([]AddendumResponse, 0, len(r.Addenda))
	for _, a := range r.Addenda {
		addenda = append(addenda, AddendumResponse{
			ID:        a.ID,
			Content:   a.Content,
			CreatedBy: a.CreatedBy,
			CreatedAt: a.CreatedAt,
		})
	}
	return MedicalRecordResponse{
		ID:               r.ID,
		PatientID:        r.PatientID,
		AppointmentID:    r.AppointmentID,
		DoctorID:         r.DoctorID,
		Type:             r.Type,
		VisitAt:          r.VisitAt,
		SOAPNote:         r.SOAPNote,
		Vitals:           r.Vitals,
		Symptoms:         r.Symptoms,
		Diagnoses:        r.Diagnoses,
		Treatment:        r.Treatment,
		PrescriptionText: r.PrescriptionText,
		Notes:            r.Notes,
		Addenda:          addenda,
		CreatedAt:        r.CreatedAt,
	}
}

func toMedicalRecordResponses(records []*mr.MedicalRecord) []MedicalRecordResponse {
	out := make([]MedicalRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toMedicalRecordResponse(r))
	}
	return out
}

type PrescriptionResponse struct {
	ID              uuid.UUID                          `json:"id"`
	PatientID       uuid.UUID                          `json:"patient_id"`
	DoctorID        uuid.UUID                          `json:"doctor_id"`
	AppointmentID   *uuid.UUID                         `json:"appointment_id,omitempty"`
	MedicationName  string                             `json:"medication_name"`
	DosageAmount    string                             `json:"dosage_amount"`
	DosageFrequency string                             `json:"dosage_frequency"`
	Route           prescription.RouteOfAdministration `json:"route"`
	Quantity        int                                `json:"quantity"`
	RefillsAllowed  int                                `json:"refills_allowed"`
	RefillsUsed     int                                `json:"refills_used"`
	IssuedAt        time.Time                          `json:"issued_at"`
	ExpiresAt       time.Time                          `json:"expires_at"`
	Status          prescription.PrescriptionStatus    `json:"status"`
	Instructions    string                             `json:"instructions,omitempty"`
}

func toPrescriptionResponse(p *prescription.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:              p.ID,
		PatientID:       p.PatientID,
		DoctorID:        p.DoctorID,
		AppointmentID:   p.AppointmentID,
		MedicationName:  p.MedicationName,
		DosageAmount:    p.DosageAmount,
		DosageFrequency: p.DosageFrequency,
		Route:           p.Route,
		Quantity:        p.Quantity,
		RefillsAllowed:  p.RefillsAllowed,
		RefillsUsed:     p.RefillsUsed,
		IssuedAt:        p.IssuedAt,
		ExpiresAt:       p.ExpiresAt,
		Status:          p.Status,
		Instructions:    p.Instructions,
	}
}

func toPrescriptionResponses(items []*prescription.Prescription) []PrescriptionResponse {
	out := make([]PrescriptionResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toPrescriptionResponse(p))
	}
	return out
}

type MessageResponse struct {
	ID          uuid.UUID             `json:"id"`
	SenderID    uuid.UUID             `json:"sender_id"`
	RecipientID uuid.UUID             `json:"recipient_id"`
	Subject     string                `json:"subject,omitempty"`
	Body        string                `json:"body"`
	Status      message.MessageStatus `json:"status"`
	ReadAt      *time.Time            `json:"read_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

func toMessageResponse(m *message.Message) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Subject:     m.Subject,
		Body:        m.Body,
		Status:      m.Status,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
}

func toMessageResponses(msgs []*message.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

type AuditLogResponse struct {
	ID           uuid.UUID          `json:"id"`
	OccurredAt   time.Time          `json:"occurred_at"`
	UserID       *uuid.UUID         `json:"user_id,omitempty"`
	UserRole     domain.Role        `json:"user_role,omitempty"`
	IPAddress    string             `json:"ip_address,omitempty"`
	Action       domain.AuditAction `json:"action"`
	ResourceType string             `json:"resource_type"`
	ResourceID   string             `json:"resource_id,omitempty"`
	RequestID    string             `json:"request_id,omitempty"`
	OldValues    string             `json:"old_values,omitempty"`
	NewValues    string             `json:"new_values,omitempty"`
}

func toAuditLogResponses(logs []*domain.AuditLog) []AuditLogResponse {
	out := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, AuditLogResponse{
			ID:           l.ID,
			OccurredAt:   l.OccurredAt,
			UserID:       l.UserID,
			UserRole:     l.UserRole,
			IPAddress:    l.IPAddress,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			RequestID:    l.RequestID,
			OldValues:    l.OldValues,
			NewValues:    l.NewValues,
		})
	}
	return out
}

// PagedResponse is the generic list envelope.
type PagedResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}
