package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborhealth/caregate/internal/domain/staff"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
)

type StaffHandler struct {
	svc *service.StaffService
}

func NewStaffHandler(svc *service.StaffService) *StaffHandler {
	return &StaffHandler{svc: svc}
}

func (h *StaffHandler) Get(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	m, err := h.svc.GetStaff(c.Request.Context(), ident, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toStaffResponse(m))
}

func (h *StaffHandler) List(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	q := &staff.ListStaffQuery{
		Search:   c.Query("search"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("department"); raw != "" {
		q.Department = &raw
	}
	if raw := c.Query("employment_status"); raw != "" {
		status := staff.EmploymentStatus(raw)
		q.EmploymentStatus = &status
	}

	page, err := h.svc.ListStaff(c.Request.Context(), ident, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, PagedResponse[StaffResponse]{
		Items:      toStaffResponses(page.Staff),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

type updateStaffRequest struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	Specialization   *string `json:"specialization"`
	Department       *string `json:"department"`
	EmploymentStatus *string `json:"employment_status"`
}

func (h *StaffHandler) Update(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req updateStaffRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &staff.UpdateStaffCommand{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Specialization: req.Specialization,
		Department:     req.Department,
	}
	if req.EmploymentStatus != nil {
		status := staff.EmploymentStatus(*req.EmploymentStatus)
		cmd.EmploymentStatus = &status
	}

	m, err := h.svc.UpdateStaff(c.Request.Context(), ident, id, cmd, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toStaffResponse(m))
}

func (h *StaffHandler) Deactivate(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeactivateStaff(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
