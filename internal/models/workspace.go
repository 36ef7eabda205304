package models

import (
	"time"
)

// SubscriptionStatus of a workspace.
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionInactive, SubscriptionCancelled:
		return true
	}
	return false
}

const PlanFree = "FREE"

type Workspace struct {
	Base
	Name               string             `gorm:"size:50;not null" json:"name"`
	Slug               string             `gorm:"uniqueIndex;size:80;not null" json:"slug"`
	Description        string             `gorm:"type:text" json:"description"`
	OwnerID            string             `gorm:"size:36;index;not null" json:"owner_id"`
	Owner              *User              `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Settings           map[string]any     `gorm:"serializer:json" json:"settings"`
	SubscriptionStatus SubscriptionStatus `gorm:"size:20;default:trial;index" json:"subscription_status"`
	SubscriptionPlan   string             `gorm:"size:20;default:FREE" json:"subscription_plan"`
	MaxMembers         int                `gorm:"default:5" json:"max_members"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at"`
	SubscriptionEndsAt *time.Time         `json:"subscription_ends_at"`
	IsActive           bool               `gorm:"default:true" json:"is_active"`
}

func (Workspace) TableName() string { return "workspaces" }

// SubscriptionActiveAt reports whether the workspace may use gated features at now.
func (w *Workspace) SubscriptionActiveAt(now time.Time) bool {
	switch w.SubscriptionStatus {
	case SubscriptionActive:
		return true
	case SubscriptionTrial:
		return w.TrialEndsAt != nil && now.Before(*w.TrialEndsAt)
	}
	return false
}

// CanAddMembers reports whether one more member fits under the limit.
func (w *Workspace) CanAddMembers(current int64) bool {
	return current < int64(w.MaxMembers)
}
