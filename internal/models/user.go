package models

import (
	"time"
)

// User is a platform account. Workspace access comes only from Memberships.
type User struct {
	Base
	Email       string            `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name        string            `gorm:"size:100;not null" json:"name"`
	Password    string            `gorm:"size:255;not null" json:"-"`
	Role        string            `gorm:"size:20;default:user" json:"role"` // user, super_admin
	IsActive    bool              `gorm:"default:true" json:"is_active"`
	LastLogin   *time.Time        `json:"last_login"`
	Memberships []WorkspaceMember `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsSuperAdmin() bool {
	return u.Role == GlobalRoleSuperAdmin
}
