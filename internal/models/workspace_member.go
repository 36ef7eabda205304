package models

// WorkspaceMember binds a user to a workspace with a role. At most one row
// per (workspace, user).
type WorkspaceMember struct {
	Base
	WorkspaceID string     `gorm:"uniqueIndex:idx_workspace_user;size:36;not null" json:"workspace_id"`
	Workspace   *Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	UserID      string     `gorm:"uniqueIndex:idx_workspace_user;size:36;not null" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role        Role       `gorm:"size:20;default:member;not null" json:"role"`
}

func (WorkspaceMember) TableName() string { return "workspace_members" }
