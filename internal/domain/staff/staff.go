package staff

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EmploymentStatus represents the lifecycle state of a staff member.
type EmploymentStatus string

const (
	StatusActive   EmploymentStatus = "active"
	StatusInactive EmploymentStatus = "inactive"
	StatusOnLeave  EmploymentStatus = "on_leave"
)

func (s EmploymentStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusOnLeave:
		return true
	}
	return false
}

// MedicalStaff is the professional profile for a user with the doctor or
// nurse role. Exactly one per such user; the user row owns it.
type MedicalStaff struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	UserID uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex;not null"`

	FirstName      string `gorm:"column:first_name;type:varchar(100);not null"`
	LastName       string `gorm:"column:last_name;type:varchar(100);not null"`
	Specialization string `gorm:"column:specialization;type:varchar(100)"`
	// License numbers are globally unique; the index is the enforcement
	// point, not application-level read-then-write.
	LicenseNumber string `gorm:"column:license_number;type:varchar(50);uniqueIndex;not null"`
	Department    string `gorm:"column:department;type:varchar(100)"`

	EmploymentStatus EmploymentStatus `gorm:"column:employment_status;type:varchar(20);default:'active';index"`
	HiredAt          *time.Time       `gorm:"column:hired_at"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (MedicalStaff) TableName() string {
	return "clinical.medical_staff"
}

func (m *MedicalStaff) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m *MedicalStaff) IsActive() bool {
	return m.EmploymentStatus == StatusActive && m.DeletedAt == nil
}

type CreateStaffCommand struct {
	UserID         uuid.UUID
	FirstName      string
	LastName       string
	Specialization string
	LicenseNumber  string
	Department     string
	HiredAt        *time.Time
	CreatedBy      uuid.UUID
}

type UpdateStaffCommand struct {
	FirstName        *string
	LastName         *string
	Specialization   *string
	Department       *string
	EmploymentStatus *EmploymentStatus
	UpdatedBy        uuid.UUID
}

type ListStaffQuery struct {
	Search           string
	Department       *string
	EmploymentStatus *EmploymentStatus
	Page             int
	PageSize         int
}

type PagedStaff struct {
	Staff      []*MedicalStaff
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
