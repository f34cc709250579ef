package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harborhealth/caregate/internal/domain/message"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
)

type MessageHandler struct {
	svc *service.MessageService
}

func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type sendMessageRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body" binding:"required"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.svc.SendMessage(c.Request.Context(), ident, &message.SendMessageCommand{
		RecipientID: req.RecipientID,
		Subject:     req.Subject,
		Body:        req.Body,
	}, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toMessageResponse(m))
}

func (h *MessageHandler) Get(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	m, err := h.svc.GetMessage(c.Request.Context(), ident, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toMessageResponse(m))
}

func (h *MessageHandler) List(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	q := &message.ListMessagesQuery{
		Unread:   c.Query("unread") == "true",
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}

	page, err := h.svc.ListMessages(c.Request.Context(), ident, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, PagedResponse[MessageResponse]{
		Items:      toMessageResponses(page.Messages),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	m, err := h.svc.MarkMessageRead(c.Request.Context(), ident, id, middleware.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toMessageResponse(m))
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	ident, _ := middleware.IdentityFrom(c)

	count, err := h.svc.CountUnread(c.Request.Context(), ident)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"unread": count})
}
