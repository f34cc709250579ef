package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/service"
)

// AuditRepository is append-and-query only. There is deliberately no
// update or delete method on this type.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ service.AuditRepository = (*AuditRepository)(nil)

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) List(ctx context.Context, q *service.AuditQuery) ([]*domain.AuditLog, int64, error) {
	db := r.db.WithContext(ctx).Model(&domain.AuditLog{})

	if q.UserID != nil {
		db = db.Where("user_id = ?", *q.UserID)
	}
	if q.Action != nil {
		db = db.Where("action = ?", *q.Action)
	}
	if q.ResourceType != "" {
		db = db.Where("resource_type = ?", q.ResourceType)
	}
	if q.From != nil {
		db = db.Where("occurred_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("occurred_at <= ?", *q.To)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var logs []*domain.AuditLog
	err := db.Order("occurred_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, count, nil
}
