package services

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/pkg/logger"
)

// Activity actions recorded for tasks.
const (
	ActionTaskCreated   = "task.created"
	ActionTaskUpdated   = "task.updated"
	ActionTaskStatus    = "task.status_changed"
	ActionTaskAssigned  = "task.assigned"
	ActionTaskDeleted   = "task.deleted"
	ActionCommentAdded  = "task.comment_added"
	ActionMemberAdded   = "workspace.member_added"
	ActionMemberRemoved = "workspace.member_removed"
)

// ActivityService writes and reads the workspace activity log. Writes are
// best effort: a failed insert is logged and never fails the caller.
type ActivityService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db, now: time.Now}
}

func (s *ActivityService) Record(ctx context.Context, workspaceID string, taskID *string, userID, action, message string, extra interface{}) {
	entry := &models.ActivityLog{
		WorkspaceID: workspaceID,
		TaskID:      taskID,
		UserID:      userID,
		Action:      action,
		Message:     message,
	}
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = string(b)
		}
	}
	s.write(ctx, entry)
}

// RecordAudit stores a request-level audit entry.
func (s *ActivityService) RecordAudit(ctx context.Context, entry *models.ActivityLog) {
	s.write(ctx, entry)
}

func (s *ActivityService) write(ctx context.Context, entry *models.ActivityLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Error().Err(err).Str("action", entry.Action).Msg("[Activity] failed to record")
	}
}

// ListForTask returns a task's history, newest first.
func (s *ActivityService) ListForTask(ctx context.Context, workspaceID, taskID string) ([]models.ActivityLog, error) {
	var logs []models.ActivityLog
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND task_id = ?", workspaceID, taskID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// CleanupOld deletes entries older than retentionDays and returns how many.
func (s *ActivityService) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	return result.RowsAffected, result.Error
}
