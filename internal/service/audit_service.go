package service

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/pkg/metrics"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, q *AuditQuery) ([]*domain.AuditLog, int64, error)
}

type AuditQuery struct {
	UserID       *uuid.UUID
	Action       *domain.AuditAction
	ResourceType string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// AuditEntry is what services hand to the recorder. Old and New are
// snapshot maps; for updates, pass only the fields that changed.
type AuditEntry struct {
	ActorID    *uuid.UUID
	ActorRole  domain.Role
	Action     domain.AuditAction
	Resource   string
	ResourceID string
	Old        map[string]any
	New        map[string]any
	Meta       RequestMeta
}

// AuditService persists entries through a buffered queue. Writes are
// best-effort: a failed or dropped entry degrades to a warning and a
// counter bump, never to a rolled-back clinical mutation.
type AuditService struct {
	repo    AuditRepository
	log     *zap.Logger
	metrics *metrics.Collector
	entries chan *domain.AuditLog
	done    chan struct{}
}

const auditBufferSize = 10_000

func NewAuditService(repo AuditRepository, m *metrics.Collector, log *zap.Logger) *AuditService {
	svc := &AuditService{
		repo:    repo,
		log:     log,
		metrics: m,
		entries: make(chan *domain.AuditLog, auditBufferSize),
		done:    make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// Record enqueues an audit entry. If the buffer is full, the entry is
// dropped and a warning is emitted.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	al := &domain.AuditLog{
		UserID:       entry.ActorID,
		UserRole:     entry.ActorRole,
		Action:       entry.Action,
		ResourceType: entry.Resource,
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.Meta.IPAddress,
		UserAgent:    entry.Meta.UserAgent,
		RequestID:    entry.Meta.RequestID,
		OldValues:    marshalSnapshot(entry.Old),
		NewValues:    marshalSnapshot(entry.New),
	}

	select {
	case s.entries <- al:
	default:
		if s.metrics != nil {
			s.metrics.AuditBufferDropped.Inc()
		}
		s.log.Warn("audit log buffer full, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("resource", entry.Resource),
		)
	}
}

// ListLogs is the admin-facing query over the audit trail. Read-only; the
// table has no update or delete path anywhere in the codebase.
func (s *AuditService) ListLogs(ctx context.Context, q *AuditQuery) ([]*domain.AuditLog, int64, error) {
	if q.PageSize <= 0 || q.PageSize > 200 {
		q.PageSize = 50
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

func (s *AuditService) Shutdown() {
	close(s.entries)
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("audit service shutdown timed out; some entries may be lost")
	}
}

func (s *AuditService) worker() {
	defer close(s.done)
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Error("failed to persist audit log", zap.Error(err))
		} else if s.metrics != nil {
			s.metrics.AuditEntriesTotal.Inc()
		}
		cancel()
	}
}

func marshalSnapshot(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// DiffSnapshots reduces two full snapshots to the fields that actually
// changed, keeping audit rows bounded.
func DiffSnapshots(before, after map[string]any) (map[string]any, map[string]any) {
	oldChanged := make(map[string]any)
	newChanged := make(map[string]any)
	for k, nv := range after {
		ov, had := before[k]
		if !had || !reflect.DeepEqual(ov, nv) {
			if had {
				oldChanged[k] = ov
			}
			newChanged[k] = nv
		}
	}
	for k, ov := range before {
		if _, still := after[k]; !still {
			oldChanged[k] = ov
		}
	}
	return oldChanged, newChanged
}
