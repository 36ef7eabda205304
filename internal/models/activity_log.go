package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog records what happened inside a workspace, per task or as
// request-level audit entries.
type ActivityLog struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"size:36;index" json:"workspace_id"`
	TaskID      *string   `gorm:"size:36;index" json:"task_id"`
	UserID      string    `gorm:"size:36;index" json:"user_id"`
	Action      string    `gorm:"size:100;index" json:"action"`
	Message     string    `gorm:"type:text" json:"message"`
	IP          string    `gorm:"size:50" json:"ip"`
	Extra       string    `gorm:"type:text" json:"extra"` // JSON extra data
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
