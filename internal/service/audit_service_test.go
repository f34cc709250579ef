package service

import (
	"context"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/domain"
)

func TestDiffSnapshots(t *testing.T) {
	tests := []struct {
		name    string
		before  map[string]any
		after   map[string]any
		wantOld map[string]any
		wantNew map[string]any
	}{
		{
			name:    "no change",
			before:  map[string]any{"phone": "555-0100"},
			after:   map[string]any{"phone": "555-0100"},
			wantOld: map[string]any{},
			wantNew: map[string]any{},
		},
		{
			name:    "changed field only",
			before:  map[string]any{"phone": "555-0100", "city": "Portland"},
			after:   map[string]any{"phone": "555-0199", "city": "Portland"},
			wantOld: map[string]any{"phone": "555-0100"},
			wantNew: map[string]any{"phone": "555-0199"},
		},
		{
			name:    "added field",
			before:  map[string]any{},
			after:   map[string]any{"allergies": "penicillin"},
			wantOld: map[string]any{},
			wantNew: map[string]any{"allergies": "penicillin"},
		},
		{
			name:    "removed field",
			before:  map[string]any{"notes": "obsolete"},
			after:   map[string]any{},
			wantOld: map[string]any{"notes": "obsolete"},
			wantNew: map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOld, gotNew := DiffSnapshots(tt.before, tt.after)
			if !reflect.DeepEqual(gotOld, tt.wantOld) {
				t.Errorf("old = %v, want %v", gotOld, tt.wantOld)
			}
			if !reflect.DeepEqual(gotNew, tt.wantNew) {
				t.Errorf("new = %v, want %v", gotNew, tt.wantNew)
			}
		})
	}
}

func TestRecordPersistsThroughWorker(t *testing.T) {
	repo := &captureAuditRepo{}
	svc := NewAuditService(repo, nil, zap.NewNop())

	actor := activeUser("auditor")
	svc.Record(context.Background(), AuditEntry{
		ActorID:    &actor.ID,
		ActorRole:  actor.Role,
		Action:     domain.ActionUpdate,
		Resource:   "patient",
		ResourceID: "some-id",
		Old:        map[string]any{"phone": "a"},
		New:        map[string]any{"phone": "b"},
		Meta:       testMeta(),
	})

	entries := repo.drain(svc)
	if len(entries) != 1 {
		t.Fatalf("persisted %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != domain.ActionUpdate || e.ResourceType != "patient" {
		t.Errorf("entry = %+v", e)
	}
	if e.OldValues == "" || e.NewValues == "" {
		t.Error("snapshots not serialized")
	}
	if e.IPAddress == "" || e.RequestID == "" {
		t.Error("request metadata not carried onto the entry")
	}
}

// A full buffer drops the entry instead of blocking the request path.
func TestRecordDropsWhenBufferFull(t *testing.T) {
	svc := &AuditService{
		log:     zap.NewNop(),
		entries: make(chan *domain.AuditLog, 1),
	}

	svc.Record(context.Background(), AuditEntry{Action: domain.ActionRead, Resource: "patient"})
	svc.Record(context.Background(), AuditEntry{Action: domain.ActionRead, Resource: "patient"})

	if got := len(svc.entries); got != 1 {
		t.Errorf("buffered %d entries, want 1 with the overflow dropped", got)
	}
}
