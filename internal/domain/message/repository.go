package message

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	MarkRead(ctx context.Context, m *Message) error
	List(ctx context.Context, q *ListMessagesQuery) (*PagedMessages, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}
