package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingMailer struct {
	mu   sync.Mutex
	sent []*EmailMessage
}

func (m *recordingMailer) Send(_ context.Context, msg *EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) Enabled() bool { return true }

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.sent {
		out = append(out, msg.To...)
	}
	return out
}

type fixture struct {
	db         *gorm.DB
	mailer     *recordingMailer
	queue      *InlineMailQueue
	hub        *SSEHub
	activity   *ActivityService
	notifier   *NotificationService
	workspaces *WorkspaceService
	tasks      *TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	mailer := &recordingMailer{}
	queue := NewInlineMailQueue(mailer)
	hub := NewSSEHub()

	activity := NewActivityService(db)
	activity.now = testutil.FixedClock(t0)
	notifier := NewNotificationService(db, queue, hub, "http://app.test")
	workspaces := NewWorkspaceService(db, config.DefaultConfig().Subscription, notifier, activity)
	workspaces.now = testutil.FixedClock(t0)
	tasks := NewTaskService(db, notifier, activity)
	tasks.now = testutil.FixedClock(t0)

	return &fixture{
		db:         db,
		mailer:     mailer,
		queue:      queue,
		hub:        hub,
		activity:   activity,
		notifier:   notifier,
		workspaces: workspaces,
		tasks:      tasks,
	}
}

// accessFor builds the access a guarded request by user on ws would carry.
func accessFor(t *testing.T, db *gorm.DB, ws *models.Workspace, user *models.User) *authz.Access {
	t.Helper()
	var m models.WorkspaceMember
	if err := db.Preload("Workspace").
		Where("workspace_id = ? AND user_id = ?", ws.ID, user.ID).
		First(&m).Error; err != nil {
		t.Fatalf("load membership: %v", err)
	}
	return &authz.Access{
		Identity:   &authz.Identity{User: user, Memberships: []models.WorkspaceMember{m}},
		Workspace:  m.Workspace,
		Membership: &m,
	}
}

func strPtr(s string) *string { return &s }
