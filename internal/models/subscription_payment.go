package models

const (
	PaymentCreated = "created"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// SubscriptionPayment tracks one gateway order for a workspace plan upgrade.
type SubscriptionPayment struct {
	Base
	WorkspaceID string `gorm:"size:36;index;not null" json:"workspace_id"`
	UserID      string `gorm:"size:36;not null" json:"user_id"`
	OrderID     string `gorm:"uniqueIndex;size:64;not null" json:"order_id"`
	PaymentID   string `gorm:"size:64" json:"payment_id,omitempty"`
	Plan        string `gorm:"size:20;not null" json:"plan"`
	Amount      int64  `gorm:"not null" json:"amount"`
	Currency    string `gorm:"size:8;not null" json:"currency"`
	Status      string `gorm:"size:20;default:created" json:"status"`
}

func (SubscriptionPayment) TableName() string { return "subscription_payments" }
