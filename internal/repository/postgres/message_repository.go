package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborhealth/caregate/internal/domain/message"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

var _ message.Repository = (*MessageRepository)(nil)

func (r *MessageRepository) Create(ctx context.Context, m *message.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, message.ErrMessageNotFound)
	}
	return &m, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Model(&message.Message{}).
		Where("id = ? AND deleted_at IS NULL", m.ID).
		Updates(map[string]any{
			"status":  m.Status,
			"read_at": m.ReadAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return message.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepository) List(ctx context.Context, q *message.ListMessagesQuery) (*message.PagedMessages, error) {
	db := r.db.WithContext(ctx).Model(&message.Message{}).
		Where("deleted_at IS NULL").
		Where("sender_id = ? OR recipient_id = ?", q.UserID, q.UserID)

	if q.Unread {
		db = db.Where("recipient_id = ? AND status = ?", q.UserID, message.StatusSent)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return nil, err
	}

	var msgs []*message.Message
	err := db.Order("created_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	return &message.PagedMessages{
		Messages:   msgs,
		TotalCount: count,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(count, q.PageSize),
	}, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&message.Message{}).
		Where("recipient_id = ? AND status = ? AND deleted_at IS NULL", userID, message.StatusSent).
		Count(&count).Error
	return count, err
}
