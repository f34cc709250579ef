package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	mr "github.com/harborhealth/caregate/internal/domain/medical_record"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
)

type MedicalRecordHandler struct {
	svc *service.MedicalRecordService
}

func NewMedicalRecordHandler(svc *service.MedicalRecordService) *MedicalRecordHandler {
	return &MedicalRecordHandler{svc: svc}
}

type createRecordRequest struct {
	PatientID        uuid.UUID    `json:"patient_id" binding:"required"`
	AppointmentID    *uuid.UUID   `json:"appointment_id"`
	DoctorID         uuid.UUID    `json:"doctor_id"`
	Type             string       `json:"type" binding:"required"`
	VisitAt          *time.Time   `json:"visit_at"`
	SOAPNote         *mr.SOAPNote `json:"soap_note"`
	Vitals           *mr.Vitals   `json:"vitals"`
	Symptoms         string       `json:"symptoms"`
	Diagnoses        []string     `json:"diagnoses"`
	Treatment        string       `json:"treatment"`
	PrescriptionText string       `json:"prescription_text"`
	Notes            string       `json:"notes"`
}

func (h *MedicalRecordHandler) Create(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	var req createRecordRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &mr.CreateRecordCommand{
		PatientID:        req.PatientID,
		AppointmentID:    req.AppointmentID,
		DoctorID:         req.DoctorID,
		Type:             mr.RecordType(req.Type),
		SOAPNote:         req.SOAPNote,
		Vitals:           req.Vitals,
		Symptoms:         req.Symptoms,
		Diagnoses:        req.Diagnoses,
		Treatment:        req.Treatment,
		PrescriptionText: req.PrescriptionText,
		Notes:            req.Notes,
	}
	if req.VisitAt != nil {
		cmd.VisitAt = *req.VisitAt
	}

	record, err := h.svc.CreateRecord(c.Request.Context(), ident, cmd, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toMedicalRecordResponse(record))
}

func (h *MedicalRecordHandler) Get(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	record, err := h.svc.GetRecord(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toMedicalRecordResponse(record))
}

func (h *MedicalRecordHandler) List(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	q := &mr.ListRecordsQuery{
		PatientID:     parseQueryUUID(c, "patient_id"),
		DoctorID:      parseQueryUUID(c, "doctor_id"),
		AppointmentID: parseQueryUUID(c, "appointment_id"),
		Page:          parseQueryInt(c, "page", 1),
		PageSize:      parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("type"); raw != "" {
		t := mr.RecordType(raw)
		q.Type = &t
	}

	page, err := h.svc.ListRecords(c.Request.Context(), ident, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, PagedResponse[MedicalRecordResponse]{
		Items:      toMedicalRecordResponses(page.Records),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

type addAddendumRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MedicalRecordHandler) AddAddendum(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req addAddendumRequest
	if !bindJSON(c, &req) {
		return
	}

	addendum, err := h.svc.AddAddendum(c.Request.Context(), ident, &mr.AddAddendumCommand{
		MedicalRecordID: id,
		Content:         req.Content,
	}, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, AddendumResponse{
		ID:        addendum.ID,
		Content:   addendum.Content,
		CreatedBy: addendum.CreatedBy,
		CreatedAt: addendum.CreatedAt,
	})
}
