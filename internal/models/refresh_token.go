package models

import "time"

// RefreshToken is a stored session credential. Only the SHA-256 of the
// token is kept; rotation revokes the row and points it at its successor.
type RefreshToken struct {
	Base
	UserID            string     `gorm:"size:36;index;not null" json:"user_id"`
	TokenHash         string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt         time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt         *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	ReplacedByTokenID *string    `gorm:"size:36" json:"replaced_by_token_id,omitempty"`
	CreatedByIP       string     `gorm:"size:64" json:"created_by_ip,omitempty"`
	UserAgent         string     `gorm:"size:255" json:"user_agent,omitempty"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// UsableAt reports whether the token can still be exchanged at now.
func (t *RefreshToken) UsableAt(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
