package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/service"
)

// AuditHandler exposes the audit trail to administrators. The route
// group is admin-gated; there is no write surface at all.
type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

func (h *AuditHandler) List(c *gin.Context) {
	q := &service.AuditQuery{
		UserID:       parseQueryUUID(c, "user_id"),
		ResourceType: c.Query("resource_type"),
		Page:         parseQueryInt(c, "page", 1),
		PageSize:     parseQueryInt(c, "page_size", 50),
	}
	if raw := c.Query("action"); raw != "" {
		action := domain.AuditAction(raw)
		q.Action = &action
	}
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.From = &t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.To = &t
		}
	}

	logs, total, err := h.svc.ListLogs(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, PagedResponse[AuditLogResponse]{
		Items:      toAuditLogResponses(logs),
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int((total + int64(q.PageSize) - 1) / int64(q.PageSize)),
	})
}
