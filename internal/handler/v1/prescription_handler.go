package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/domain/prescription"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
)

type PrescriptionHandler struct {
	svc *service.PrescriptionService
}

func NewPrescriptionHandler(svc *service.PrescriptionService) *PrescriptionHandler {
	return &PrescriptionHandler{svc: svc}
}

type issuePrescriptionRequest struct {
	PatientID       uuid.UUID  `json:"patient_id" binding:"required"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	AppointmentID   *uuid.UUID `json:"appointment_id"`
	MedicationName  string     `json:"medication_name" binding:"required"`
	DosageAmount    string     `json:"dosage_amount" binding:"required"`
	DosageFrequency string     `json:"dosage_frequency" binding:"required"`
	Route           string     `json:"route" binding:"required"`
	Quantity        int        `json:"quantity" binding:"required"`
	RefillsAllowed  int        `json:"refills_allowed"`
	IssuedAt        *time.Time `json:"issued_at"`
	ExpiresAt       *time.Time `json:"expires_at"`
	Instructions    string     `json:"instructions"`
}

func (h *PrescriptionHandler) Issue(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	var req issuePrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &prescription.CreatePrescriptionCommand{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		AppointmentID:   req.AppointmentID,
		MedicationName:  req.MedicationName,
		DosageAmount:    req.DosageAmount,
		DosageFrequency: req.DosageFrequency,
		Route:           prescription.RouteOfAdministration(req.Route),
		Quantity:        req.Quantity,
		RefillsAllowed:  req.RefillsAllowed,
		Instructions:    req.Instructions,
	}
	if req.IssuedAt != nil {
		cmd.IssuedAt = *req.IssuedAt
	}
	if req.ExpiresAt != nil {
		cmd.ExpiresAt = *req.ExpiresAt
	}

	p, err := h.svc.IssuePrescription(c.Request.Context(), ident, cmd, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toPrescriptionResponse(p))
}

func (h *PrescriptionHandler) Get(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPrescription(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPrescriptionResponse(p))
}

func (h *PrescriptionHandler) List(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	q := &prescription.ListPrescriptionsQuery{
		PatientID: parseQueryUUID(c, "patient_id"),
		DoctorID:  parseQueryUUID(c, "doctor_id"),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := prescription.PrescriptionStatus(raw)
		q.Status = &status
	}

	page, err := h.svc.ListPrescriptions(c.Request.Context(), ident, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, PagedResponse[PrescriptionResponse]{
		Items:      toPrescriptionResponses(page.Prescriptions),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

func (h *PrescriptionHandler) Refill(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.RefillPrescription(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPrescriptionResponse(p))
}

func (h *PrescriptionHandler) Cancel(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.CancelPrescription(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
