package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RolePatient Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RolePatient:
		return true
	}
	return false
}

// IsStaff reports whether the role has a medical_staff profile row.
func (r Role) IsStaff() bool {
	return r == RoleDoctor || r == RoleNurse
}

type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	Username     string `gorm:"column:username;type:varchar(100);uniqueIndex;not null"`
	Email        string `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(255);not null"`
	FirstName    string `gorm:"column:first_name;type:varchar(100);not null"`
	LastName     string `gorm:"column:last_name;type:varchar(100);not null"`
	Phone        string `gorm:"column:phone;type:varchar(20)"`
	Address      string `gorm:"column:address;type:text"`
	Role         Role   `gorm:"column:role;type:varchar(30);not null;index"`

	// For doctor/nurse roles, links to their staff record
	StaffID *uuid.UUID `gorm:"column:staff_id;type:uuid;index"`
	// For patient role, links to their patient record
	PatientID *uuid.UUID `gorm:"column:patient_id;type:uuid;index"`

	IsActive          bool       `gorm:"column:is_active;default:true;index"`
	FailedLoginCount  int        `gorm:"column:failed_login_count;default:0"`
	LockedUntil       *time.Time `gorm:"column:locked_until"`
	LastLoginAt       *time.Time `gorm:"column:last_login_at"`
	PasswordChangedAt time.Time  `gorm:"column:password_changed_at"`
}

func (User) TableName() string {
	return "auth.users"
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type AuditAction string

const (
	ActionCreate         AuditAction = "create"
	ActionRead           AuditAction = "read"
	ActionUpdate         AuditAction = "update"
	ActionDelete         AuditAction = "delete"
	ActionHardDelete     AuditAction = "hard_delete"
	ActionLogin          AuditAction = "login"
	ActionLoginFailed    AuditAction = "login_failed"
	ActionLockout        AuditAction = "lockout"
	ActionLogout         AuditAction = "logout"
	ActionRoleChange     AuditAction = "role_change"
	ActionPasswordChange AuditAction = "password_change"
	ActionDenied         AuditAction = "denied"
)

// AuditLog rows are append-only: no application code path updates or
// deletes them. UserID is nullable so entries survive actor deletion.
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	UserRole  Role       `gorm:"column:user_role;type:varchar(30)"`
	IPAddress string     `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(30);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID string `gorm:"column:request_id;type:varchar(50);index"`
	UserAgent string `gorm:"column:user_agent;type:text"`

	// Changed-field snapshots for updates; full row for hard deletes.
	OldValues string `gorm:"column:old_values;type:jsonb"`
	NewValues string `gorm:"column:new_values;type:jsonb"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}
