package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/domain"
	mr "github.com/harborhealth/caregate/internal/domain/medical_record"
	"github.com/harborhealth/caregate/internal/domain/patient"
)

type fakeRecordRepo struct {
	records map[uuid.UUID]*mr.MedicalRecord

	createCalls   int
	addendumCalls int
	lastListQuery *mr.ListRecordsQuery
}

func newFakeRecordRepo(records ...*mr.MedicalRecord) *fakeRecordRepo {
	r := &fakeRecordRepo{records: make(map[uuid.UUID]*mr.MedicalRecord)}
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return r
}

func (r *fakeRecordRepo) Create(ctx context.Context, rec *mr.MedicalRecord) error {
	r.createCalls++
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *fakeRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, mr.ErrRecordNotFound
	}
	return rec, nil
}

func (r *fakeRecordRepo) AddAddendum(ctx context.Context, a *mr.Addendum) error {
	r.addendumCalls++
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (r *fakeRecordRepo) List(ctx context.Context, q *mr.ListRecordsQuery) (*mr.PagedRecords, error) {
	r.lastListQuery = q
	return &mr.PagedRecords{}, nil
}

func (r *fakeRecordRepo) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*mr.MedicalRecord, error) {
	return nil, mr.ErrRecordNotFound
}

type fakePatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
}

func newFakePatientRepo(patients ...*patient.Patient) *fakePatientRepo {
	r := &fakePatientRepo{patients: make(map[uuid.UUID]*patient.Patient)}
	for _, p := range patients {
		r.patients[p.ID] = p
	}
	return r
}

func (r *fakePatientRepo) Create(ctx context.Context, p *patient.Patient) error { return nil }

func (r *fakePatientRepo) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

func (r *fakePatientRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*patient.Patient, error) {
	return nil, patient.ErrPatientNotFound
}

func (r *fakePatientRepo) Update(ctx context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	return nil, patient.ErrPatientNotFound
}

func (r *fakePatientRepo) SoftDelete(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakePatientRepo) List(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	return &patient.PagedPatients{}, nil
}

func newTestRecordService(repo *fakeRecordRepo, patients *fakePatientRepo) (*MedicalRecordService, *AuditService, *captureAuditRepo) {
	auditRepo := &captureAuditRepo{}
	auditSvc := NewAuditService(auditRepo, nil, zap.NewNop())
	svc := NewMedicalRecordService(repo, patients, auditSvc, zap.NewNop())
	return svc, auditSvc, auditRepo
}

func doctorIdentity() (authz.Identity, uuid.UUID) {
	staffID := uuid.New()
	return authz.Identity{
		UserID:  uuid.New(),
		Role:    domain.RoleDoctor,
		StaffID: &staffID,
		Active:  true,
	}, staffID
}

// A mediator deny returns before the repository is touched and leaves no
// audit row for the mutation.
func TestCreateRecordDenyShortCircuits(t *testing.T) {
	p := &patient.Patient{ID: uuid.New()}
	repo := newFakeRecordRepo()
	svc, auditSvc, auditRepo := newTestRecordService(repo, newFakePatientRepo(p))

	nurse := authz.Identity{UserID: uuid.New(), Role: domain.RoleNurse, Active: true}
	_, err := svc.CreateRecord(context.Background(), nurse, &mr.CreateRecordCommand{
		PatientID: p.ID,
		Type:      mr.TypeProgressNote,
	}, testMeta())

	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if repo.createCalls != 0 {
		t.Error("repository reached after a deny")
	}
	if got := auditRepo.drain(auditSvc); len(got) != 0 {
		t.Errorf("denied mutation produced %d audit entries", len(got))
	}
}

// The authoring doctor is always the caller; a forged doctor_id in the
// request body is ignored.
func TestCreateRecordDoctorAuthorsAsSelf(t *testing.T) {
	p := &patient.Patient{ID: uuid.New()}
	repo := newFakeRecordRepo()
	svc, auditSvc, auditRepo := newTestRecordService(repo, newFakePatientRepo(p))

	ident, staffID := doctorIdentity()
	rec, err := svc.CreateRecord(context.Background(), ident, &mr.CreateRecordCommand{
		PatientID: p.ID,
		DoctorID:  uuid.New(),
		Type:      mr.TypeSOAP,
	}, testMeta())
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if rec.DoctorID != staffID {
		t.Errorf("record authored as %v, want caller's staff id %v", rec.DoctorID, staffID)
	}
	if got := auditRepo.actions(auditSvc); len(got) != 1 || got[0] != domain.ActionCreate {
		t.Errorf("audit actions = %v, want [create]", got)
	}
}

func TestCreateRecordUnknownPatient(t *testing.T) {
	repo := newFakeRecordRepo()
	svc, _, _ := newTestRecordService(repo, newFakePatientRepo())

	ident, _ := doctorIdentity()
	_, err := svc.CreateRecord(context.Background(), ident, &mr.CreateRecordCommand{
		PatientID: uuid.New(),
		Type:      mr.TypeSOAP,
	}, testMeta())
	if !errors.Is(err, patient.ErrPatientNotFound) {
		t.Errorf("got %v, want ErrPatientNotFound", err)
	}
	if repo.createCalls != 0 {
		t.Error("record created for a nonexistent patient")
	}
}

func TestGetRecordPatientOwnership(t *testing.T) {
	ownProfile := uuid.New()
	rec := &mr.MedicalRecord{ID: uuid.New(), PatientID: ownProfile, DoctorID: uuid.New()}
	repo := newFakeRecordRepo(rec)
	svc, _, _ := newTestRecordService(repo, newFakePatientRepo())

	owner := authz.Identity{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &ownProfile, Active: true}
	if _, err := svc.GetRecord(context.Background(), owner, rec.ID, testMeta()); err != nil {
		t.Errorf("patient denied their own record: %v", err)
	}

	otherProfile := uuid.New()
	stranger := authz.Identity{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &otherProfile, Active: true}
	if _, err := svc.GetRecord(context.Background(), stranger, rec.ID, testMeta()); !errors.Is(err, ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden for another patient's record", err)
	}
}

// A doctor who did not author the record still reads it when the patient
// is assigned to them.
func TestGetRecordAssignedDoctor(t *testing.T) {
	ident, staffID := doctorIdentity()

	p := &patient.Patient{ID: uuid.New(), AssignedDoctorID: &staffID}
	rec := &mr.MedicalRecord{ID: uuid.New(), PatientID: p.ID, DoctorID: uuid.New()}
	repo := newFakeRecordRepo(rec)
	svc, _, _ := newTestRecordService(repo, newFakePatientRepo(p))

	if _, err := svc.GetRecord(context.Background(), ident, rec.ID, testMeta()); err != nil {
		t.Errorf("assigned doctor denied: %v", err)
	}

	unrelated, _ := doctorIdentity()
	if _, err := svc.GetRecord(context.Background(), unrelated, rec.ID, testMeta()); !errors.Is(err, ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden for an unrelated doctor", err)
	}
}

func TestAddAddendumAuthorOnly(t *testing.T) {
	author, authorStaffID := doctorIdentity()
	rec := &mr.MedicalRecord{ID: uuid.New(), PatientID: uuid.New(), DoctorID: authorStaffID}
	repo := newFakeRecordRepo(rec)
	svc, _, _ := newTestRecordService(repo, newFakePatientRepo())

	other, _ := doctorIdentity()
	_, err := svc.AddAddendum(context.Background(), other, &mr.AddAddendumCommand{
		MedicalRecordID: rec.ID,
		Content:         "correction",
	}, testMeta())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden for a non-authoring doctor", err)
	}
	if repo.addendumCalls != 0 {
		t.Error("addendum persisted after a deny")
	}

	a, err := svc.AddAddendum(context.Background(), author, &mr.AddAddendumCommand{
		MedicalRecordID: rec.ID,
		Content:         "correction",
	}, testMeta())
	if err != nil {
		t.Fatalf("AddAddendum by author: %v", err)
	}
	if a.CreatedBy != author.UserID {
		t.Error("addendum not attributed to the caller")
	}
}

// Patients can hold the list capability only because the service pins the
// query to their own profile before it reaches the store.
func TestListRecordsPinsPatientQuery(t *testing.T) {
	ownProfile := uuid.New()
	repo := newFakeRecordRepo()
	svc, _, _ := newTestRecordService(repo, newFakePatientRepo())

	ident := authz.Identity{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &ownProfile, Active: true}
	someoneElse := uuid.New()
	_, err := svc.ListRecords(context.Background(), ident, &mr.ListRecordsQuery{PatientID: &someoneElse})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if repo.lastListQuery == nil || repo.lastListQuery.PatientID == nil {
		t.Fatal("list query not pinned")
	}
	if *repo.lastListQuery.PatientID != ownProfile {
		t.Errorf("query pinned to %v, want caller's profile %v", *repo.lastListQuery.PatientID, ownProfile)
	}
}

// Doctors hold the list capability the same way: an unpinned doctor query
// would hand back every patient's records.
func TestListRecordsPinsDoctorQuery(t *testing.T) {
	repo := newFakeRecordRepo()
	svc, _, _ := newTestRecordService(repo, newFakePatientRepo())

	ident, staffID := doctorIdentity()
	_, err := svc.ListRecords(context.Background(), ident, &mr.ListRecordsQuery{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if repo.lastListQuery == nil || repo.lastListQuery.DoctorID == nil {
		t.Fatal("doctor list query not pinned")
	}
	if *repo.lastListQuery.DoctorID != staffID {
		t.Errorf("query pinned to %v, want caller's staff id %v", *repo.lastListQuery.DoctorID, staffID)
	}
}
