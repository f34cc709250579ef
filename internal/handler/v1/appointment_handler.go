package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/domain/appointment"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
)

type AppointmentHandler struct {
	svc *service.AppointmentService
}

func NewAppointmentHandler(svc *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type scheduleAppointmentRequest struct {
	PatientID    uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID     uuid.UUID `json:"doctor_id" binding:"required"`
	ScheduledAt  time.Time `json:"scheduled_at" binding:"required"`
	DurationMins int       `json:"duration_mins"`
	Type         string    `json:"type" binding:"required"`
	Reason       string    `json:"reason"`
	Notes        string    `json:"notes"`
}

func (h *AppointmentHandler) Schedule(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	var req scheduleAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.DurationMins == 0 {
		req.DurationMins = 30
	}

	a, err := h.svc.ScheduleAppointment(c.Request.Context(), ident, &appointment.CreateAppointmentCommand{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
		Type:         appointment.AppointmentType(req.Type),
		Reason:       req.Reason,
		Notes:        req.Notes,
	}, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.GetAppointment(c.Request.Context(), ident, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) List(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	q := &appointment.ListAppointmentsQuery{
		PatientID: parseQueryUUID(c, "patient_id"),
		DoctorID:  parseQueryUUID(c, "doctor_id"),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := appointment.AppointmentStatus(raw)
		q.Status = &status
	}
	if raw := c.Query("type"); raw != "" {
		t := appointment.AppointmentType(raw)
		q.Type = &t
	}
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.DateFrom = &t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.DateTo = &t
		}
	}

	page, err := h.svc.ListAppointments(c.Request.Context(), ident, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, PagedResponse[AppointmentResponse]{
		Items:      toAppointmentResponses(page.Appointments),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

func (h *AppointmentHandler) Upcoming(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	within := time.Duration(parseQueryInt(c, "within_hours", 24)) * time.Hour
	appts, err := h.svc.UpcomingAppointments(c.Request.Context(), ident, within)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponses(appts))
}

type rescheduleRequest struct {
	ScheduledAt  *time.Time `json:"scheduled_at"`
	DurationMins *int       `json:"duration_mins"`
	Type         *string    `json:"type"`
	Reason       *string    `json:"reason"`
	Notes        *string    `json:"notes"`
}

func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req rescheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &appointment.UpdateAppointmentCommand{
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
		Reason:       req.Reason,
		Notes:        req.Notes,
	}
	if req.Type != nil {
		t := appointment.AppointmentType(*req.Type)
		cmd.Type = &t
	}

	a, err := h.svc.RescheduleAppointment(c.Request.Context(), ident, id, cmd, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Transition(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.TransitionAppointment(c.Request.Context(), ident, id, &appointment.TransitionCommand{
		NewStatus: appointment.AppointmentStatus(req.Status),
		Reason:    req.Reason,
	}, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) Delete(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteAppointment(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
