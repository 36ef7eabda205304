package models

type NotificationType string

const (
	NotificationTaskAssigned        NotificationType = "TASK_ASSIGNED"
	NotificationTaskStatusUpdated   NotificationType = "TASK_STATUS_UPDATED"
	NotificationTaskCommentAdded    NotificationType = "TASK_COMMENT_ADDED"
	NotificationWorkspaceInvitation NotificationType = "WORKSPACE_INVITATION"
)

// Notification is an in-app message for one user.
type Notification struct {
	Base
	UserID      string           `gorm:"size:36;index;not null" json:"user_id"`
	WorkspaceID string           `gorm:"size:36;index" json:"workspace_id"`
	Type        NotificationType `gorm:"size:40;not null" json:"type"`
	Title       string           `gorm:"size:200" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	Data        map[string]any   `gorm:"serializer:json" json:"data"`
	IsRead      bool             `gorm:"default:false;index" json:"is_read"`
}

func (Notification) TableName() string { return "notifications" }
