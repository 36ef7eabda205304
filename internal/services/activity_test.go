package services

import (
	"context"
	"testing"

	"github.com/taskhive/backend/internal/models"
)

func TestActivityService_RecordAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	taskID := "task-1"

	f.activity.Record(ctx, "ws-1", &taskID, "user-1", ActionTaskCreated, "created", map[string]string{"k": "v"})
	f.activity.Record(ctx, "ws-1", &taskID, "user-1", ActionTaskStatus, "moved", nil)
	f.activity.Record(ctx, "ws-2", &taskID, "user-1", ActionTaskCreated, "elsewhere", nil)

	logs, err := f.activity.ListForTask(ctx, "ws-1", taskID)
	if err != nil {
		t.Fatalf("ListForTask() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 entries scoped to ws-1, got %d", len(logs))
	}
	var created *models.ActivityLog
	for i := range logs {
		if logs[i].Action == ActionTaskCreated {
			created = &logs[i]
		}
	}
	if created == nil || created.Extra != `{"k":"v"}` {
		t.Errorf("expected extra to be stored as JSON, got %+v", created)
	}
}

func TestActivityService_CleanupOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.activity.RecordAudit(ctx, &models.ActivityLog{WorkspaceID: "ws", UserID: "u", Action: "audit.tasks.create", CreatedAt: t0.AddDate(0, 0, -31)})
	f.activity.RecordAudit(ctx, &models.ActivityLog{WorkspaceID: "ws", UserID: "u", Action: "audit.tasks.create"})

	n, err := f.activity.CleanupOld(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupOld() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 entry deleted, got %d", n)
	}

	if n, _ := f.activity.CleanupOld(ctx, 0); n != 0 {
		t.Errorf("zero retention must keep everything, got %d deleted", n)
	}
}
