package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/domain/message"
)

type MessageService struct {
	repo     message.Repository
	userRepo UserRepository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewMessageService(repo message.Repository, userRepo UserRepository, auditSvc *AuditService, log *zap.Logger) *MessageService {
	return &MessageService{repo: repo, userRepo: userRepo, auditSvc: auditSvc, log: log}
}

// SendMessage delivers a direct message. The sender is always the
// caller; the recipient must be an active account.
func (s *MessageService) SendMessage(ctx context.Context, ident authz.Identity, cmd *message.SendMessageCommand, meta RequestMeta) (*message.Message, error) {
	if d := authz.Authorize(ident, authz.ResourceMessage, authz.ActionCreate, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if strings.TrimSpace(cmd.Body) == "" {
		return nil, message.ErrEmptyBody
	}
	if cmd.RecipientID == ident.UserID {
		return nil, message.ErrSelfMessage
	}

	recipient, err := s.userRepo.GetByID(ctx, cmd.RecipientID)
	if err != nil || !recipient.IsActive {
		return nil, message.ErrRecipientInvalid
	}

	m := &message.Message{
		SenderID:    ident.UserID,
		RecipientID: cmd.RecipientID,
		Subject:     strings.TrimSpace(cmd.Subject),
		Body:        cmd.Body,
		Status:      message.StatusSent,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.log.Error("failed to create message", zap.Error(err))
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionCreate,
		Resource:   "message",
		ResourceID: m.ID.String(),
		New:        map[string]any{"recipient_id": m.RecipientID.String()},
		Meta:       meta,
	})
	return m, nil
}

func (s *MessageService) GetMessage(ctx context.Context, ident authz.Identity, id uuid.UUID) (*message.Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{Participants: m.Participants()}
	if d := authz.Authorize(ident, authz.ResourceMessage, authz.ActionRead, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	return m, nil
}

// ListMessages is always scoped to the caller's own inbox and sent
// folder, regardless of role.
func (s *MessageService) ListMessages(ctx context.Context, ident authz.Identity, q *message.ListMessagesQuery) (*message.PagedMessages, error) {
	if d := authz.Authorize(ident, authz.ResourceMessage, authz.ActionList, authz.Hints{}); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	q.UserID = ident.UserID
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

// MarkMessageRead flips a message to read. Only the recipient can do
// this; marking an already-read message is a no-op.
func (s *MessageService) MarkMessageRead(ctx context.Context, ident authz.Identity, id uuid.UUID, meta RequestMeta) (*message.Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hints := authz.Hints{UserID: &m.RecipientID}
	if d := authz.Authorize(ident, authz.ResourceMessage, authz.ActionUpdate, hints); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if m.Status == message.StatusRead {
		return m, nil
	}

	m.MarkRead()
	if err := s.repo.MarkRead(ctx, m); err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, AuditEntry{
		ActorID:    &ident.UserID,
		ActorRole:  ident.Role,
		Action:     domain.ActionUpdate,
		Resource:   "message",
		ResourceID: id.String(),
		Old:        map[string]any{"status": string(message.StatusSent)},
		New:        map[string]any{"status": string(message.StatusRead)},
		Meta:       meta,
	})
	return m, nil
}

func (s *MessageService) CountUnread(ctx context.Context, ident authz.Identity) (int64, error) {
	if d := authz.Authorize(ident, authz.ResourceMessage, authz.ActionList, authz.Hints{}); !d.Allowed {
		return 0, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	return s.repo.CountUnread(ctx, ident.UserID)
}
