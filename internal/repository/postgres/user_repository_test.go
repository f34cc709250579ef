package postgres

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborhealth/caregate/internal/config"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/staff"
	"github.com/harborhealth/caregate/pkg/database"
)

// Integration tests against a real postgres. Skipped unless DB_HOST is
// set; the counter semantics under test live in SQL, so a fake proves
// nothing here.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("DB_HOST not set; skipping postgres integration tests")
	}

	port := 5432
	if raw := os.Getenv("DB_PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			port = p
		}
	}
	name := os.Getenv("DB_NAME")
	if name == "" {
		name = "caregate_test"
	}

	cfg := config.DatabaseConfig{
		Host:            host,
		Port:            port,
		Name:            name,
		User:            os.Getenv("DB_USER"),
		Password:        os.Getenv("DB_PASSWORD"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	}

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func seedUser(t *testing.T, repo *UserRepository) *domain.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	u := &domain.User{
		Username:          "it-" + suffix,
		Email:             fmt.Sprintf("it-%s@clinic.example", suffix),
		PasswordHash:      "$2a$10$integrationtestplaceholder",
		FirstName:         "Integration",
		LastName:          "Test",
		Role:              domain.RolePatient,
		IsActive:          true,
		PasswordChangedAt: time.Now(),
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.HardDelete(context.Background(), u.ID)
	})
	return u
}

func newStaffProfile(license string, createdBy uuid.UUID) *staff.MedicalStaff {
	return &staff.MedicalStaff{
		FirstName:        "Integration",
		LastName:         "Doctor",
		Specialization:   "general",
		LicenseNumber:    license,
		EmploymentStatus: staff.StatusActive,
		CreatedBy:        createdBy,
	}
}

func seedStaffUser(t *testing.T, repo *UserRepository, license string) *domain.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	u := &domain.User{
		Username:          "it-staff-" + suffix,
		Email:             fmt.Sprintf("it-staff-%s@clinic.example", suffix),
		PasswordHash:      "$2a$10$integrationtestplaceholder",
		FirstName:         "Integration",
		LastName:          "Doctor",
		Role:              domain.RoleDoctor,
		IsActive:          true,
		PasswordChangedAt: time.Now(),
	}
	if err := repo.CreateStaffMember(context.Background(), u, newStaffProfile(license, u.ID)); err != nil {
		t.Fatalf("seeding staff user: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.HardDelete(context.Background(), u.ID)
	})
	return u
}

// Two concurrent wrong-password attempts must both land on the counter.
// The increment and lockout decision run in one UPDATE, so neither
// attempt can overwrite the other's read.
func TestRecordFailedLoginConcurrent(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	u := seedUser(t, repo)

	const attempts = 2
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RecordFailedLogin(context.Background(), u.ID, 5, 30*time.Minute)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordFailedLogin: %v", err)
		}
	}

	got, err := repo.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FailedLoginCount != attempts {
		t.Errorf("failed_login_count = %d, want %d", got.FailedLoginCount, attempts)
	}
	if got.LockedUntil != nil {
		t.Errorf("locked below the threshold: locked_until = %v", got.LockedUntil)
	}
}

func TestRecordFailedLoginLocksAtThreshold(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	u := seedUser(t, repo)

	const threshold = 5
	var locked bool
	for i := 0; i < threshold; i++ {
		var err error
		locked, err = repo.RecordFailedLogin(context.Background(), u.ID, threshold, 30*time.Minute)
		if err != nil {
			t.Fatalf("RecordFailedLogin attempt %d: %v", i+1, err)
		}
		if i < threshold-1 && locked {
			t.Fatalf("locked after %d attempts, threshold is %d", i+1, threshold)
		}
	}
	if !locked {
		t.Error("not locked at the threshold")
	}

	got, err := repo.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LockedUntil == nil || !time.Now().Before(*got.LockedUntil) {
		t.Errorf("locked_until = %v, want a future timestamp", got.LockedUntil)
	}

	if err := repo.ResetLoginState(context.Background(), u.ID); err != nil {
		t.Fatalf("ResetLoginState: %v", err)
	}
	got, err = repo.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID after reset: %v", err)
	}
	if got.FailedLoginCount != 0 || got.LockedUntil != nil {
		t.Errorf("reset left count=%d locked_until=%v", got.FailedLoginCount, got.LockedUntil)
	}
}

// The transactional create releases the username when the profile insert
// fails inside the same transaction.
func TestCreateStaffMemberAtomic(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	first := seedUser(t, repo)

	// A duplicate license is the easiest way to make the second insert in
	// CreateStaffMember fail after the user insert succeeded.
	license := "LIC-" + uuid.NewString()[:8]
	okUser := seedStaffUser(t, repo, license)
	if okUser.StaffID == nil {
		t.Fatal("staff user not linked to a profile")
	}

	suffix := uuid.NewString()[:8]
	dupe := &domain.User{
		Username:          "it-dupe-" + suffix,
		Email:             fmt.Sprintf("it-dupe-%s@clinic.example", suffix),
		PasswordHash:      "$2a$10$integrationtestplaceholder",
		FirstName:         "Dupe",
		LastName:          "Test",
		Role:              domain.RoleDoctor,
		IsActive:          true,
		PasswordChangedAt: time.Now(),
	}
	err := repo.CreateStaffMember(context.Background(), dupe, newStaffProfile(license, first.ID))
	if err == nil {
		t.Fatal("expected duplicate license to fail")
	}

	if _, err := repo.GetByUsername(context.Background(), dupe.Username); err == nil {
		t.Error("orphaned user row survived the rolled-back registration")
		_ = repo.HardDelete(context.Background(), dupe.ID)
	}
}
