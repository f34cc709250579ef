package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/domain/patient"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
)

type PatientHandler struct {
	svc *service.PatientService
}

func NewPatientHandler(svc *service.PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

type createPatientRequest struct {
	UserID            uuid.UUID                 `json:"user_id" binding:"required"`
	FirstName         string                    `json:"first_name" binding:"required"`
	LastName          string                    `json:"last_name" binding:"required"`
	DateOfBirth       string                    `json:"date_of_birth" binding:"required"`
	Gender            string                    `json:"gender" binding:"required"`
	BloodType         string                    `json:"blood_type"`
	EmergencyContact  *patient.EmergencyContact `json:"emergency_contact"`
	Insurance         *patient.Insurance        `json:"insurance"`
	Allergies         []string                  `json:"allergies"`
	ChronicConditions []string                  `json:"chronic_conditions"`
	AssignedDoctorID  *uuid.UUID                `json:"assigned_doctor_id"`
	Notes             string                    `json:"notes"`
}

func (h *PatientHandler) Create(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		respondError(c, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
		return
	}

	p, err := h.svc.CreatePatient(c.Request.Context(), ident, &patient.CreatePatientCommand{
		UserID:            req.UserID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		DateOfBirth:       dob,
		Gender:            patient.Gender(req.Gender),
		BloodType:         patient.BloodType(req.BloodType),
		EmergencyContact:  req.EmergencyContact,
		Insurance:         req.Insurance,
		Allergies:         req.Allergies,
		ChronicConditions: req.ChronicConditions,
		AssignedDoctorID:  req.AssignedDoctorID,
		Notes:             req.Notes,
	}, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toPatientResponse(p))
}

func (h *PatientHandler) Get(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPatient(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPatientResponse(p))
}

func (h *PatientHandler) List(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	q := &patient.ListPatientsQuery{
		Search:    c.Query("search"),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("status"); raw != "" {
		status := patient.Status(raw)
		q.Status = &status
	}
	q.AssignedDoctorID = parseQueryUUID(c, "assigned_doctor_id")

	page, err := h.svc.ListPatients(c.Request.Context(), ident, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, PagedResponse[PatientResponse]{
		Items:      toPatientResponses(page.Patients),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

type updatePatientRequest struct {
	FirstName         *string                   `json:"first_name"`
	LastName          *string                   `json:"last_name"`
	Gender            *string                   `json:"gender"`
	BloodType         *string                   `json:"blood_type"`
	EmergencyContact  *patient.EmergencyContact `json:"emergency_contact"`
	Insurance         *patient.Insurance        `json:"insurance"`
	Allergies         *[]string                 `json:"allergies"`
	ChronicConditions *[]string                 `json:"chronic_conditions"`
	AssignedDoctorID  *uuid.UUID                `json:"assigned_doctor_id"`
	Notes             *string                   `json:"notes"`
}

func (h *PatientHandler) Update(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &patient.UpdatePatientCommand{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		EmergencyContact:  req.EmergencyContact,
		Insurance:         req.Insurance,
		Allergies:         req.Allergies,
		ChronicConditions: req.ChronicConditions,
		AssignedDoctorID:  req.AssignedDoctorID,
		Notes:             req.Notes,
	}
	if req.Gender != nil {
		g := patient.Gender(*req.Gender)
		cmd.Gender = &g
	}
	if req.BloodType != nil {
		bt := patient.BloodType(*req.BloodType)
		cmd.BloodType = &bt
	}

	p, err := h.svc.UpdatePatient(c.Request.Context(), ident, id, cmd, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPatientResponse(p))
}

func (h *PatientHandler) Deactivate(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeactivatePatient(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
