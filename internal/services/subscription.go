package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/pkg/logger"
	"github.com/taskhive/backend/pkg/response"
)

var ErrInvalidSignature = response.NewBadRequest("Payment verification failed")

// SubscriptionService moves workspaces through trial, active, inactive and
// cancelled.
type SubscriptionService struct {
	db      *gorm.DB
	gateway PaymentGateway
	payment config.PaymentConfig
	cfg     config.SubscriptionConfig
	now     func() time.Time
}

func NewSubscriptionService(db *gorm.DB, gateway PaymentGateway, payment config.PaymentConfig, cfg config.SubscriptionConfig) *SubscriptionService {
	return &SubscriptionService{db: db, gateway: gateway, payment: payment, cfg: cfg, now: time.Now}
}

type Plan struct {
	Name       string `json:"name"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	MaxMembers int    `json:"max_members"`
}

// Plans lists the purchasable plans ordered by price.
func (s *SubscriptionService) Plans() []Plan {
	plans := make([]Plan, 0, len(s.payment.Plans))
	for name, p := range s.payment.Plans {
		plans = append(plans, Plan{Name: name, Amount: p.Amount, Currency: s.payment.Currency, MaxMembers: p.MaxMembers})
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Amount < plans[j].Amount })
	return plans
}

func (s *SubscriptionService) plan(name string) (string, config.PlanConfig, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	p, ok := s.payment.Plans[name]
	if !ok {
		return "", config.PlanConfig{}, response.NewBadRequest("Unknown subscription plan")
	}
	return name, p, nil
}

type CreateOrderRequest struct {
	Plan string `json:"plan" binding:"required"`
}

type OrderResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Plan     string `json:"plan"`
	KeyID    string `json:"key_id"`
}

// CreateOrder opens a gateway order for plan and records it as pending.
func (s *SubscriptionService) CreateOrder(ctx context.Context, access *authz.Access, req *CreateOrderRequest) (*OrderResponse, error) {
	if !s.gateway.Enabled() {
		return nil, ErrPaymentsDisabled
	}
	name, plan, err := s.plan(req.Plan)
	if err != nil {
		return nil, err
	}

	ws := access.Workspace
	receipt := fmt.Sprintf("ws_%s_%d", receiptTag(ws.ID), s.now().Unix())
	order, err := s.gateway.CreateOrder(ctx, plan.Amount, s.payment.Currency, receipt, map[string]string{
		"workspace_id": ws.ID,
		"plan":         name,
	})
	if err != nil {
		return nil, err
	}

	payment := &models.SubscriptionPayment{
		WorkspaceID: ws.ID,
		UserID:      access.UserID(),
		OrderID:     order.ID,
		Plan:        name,
		Amount:      plan.Amount,
		Currency:    s.payment.Currency,
		Status:      models.PaymentCreated,
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}

	return &OrderResponse{
		OrderID:  order.ID,
		Amount:   plan.Amount,
		Currency: s.payment.Currency,
		Plan:     name,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

// receiptTag shortens a workspace ID for use in a gateway receipt.
func receiptTag(id string) string {
	tag := strings.ReplaceAll(id, "-", "")
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return tag
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// VerifyPayment checks the gateway signature and activates the workspace on
// the plan the order was created for.
func (s *SubscriptionService) VerifyPayment(ctx context.Context, access *authz.Access, req *VerifyPaymentRequest) (*models.Workspace, error) {
	if !s.gateway.Enabled() {
		return nil, ErrPaymentsDisabled
	}
	db := s.db.WithContext(ctx)
	wsID := access.Workspace.ID

	var payment models.SubscriptionPayment
	if err := db.Where("order_id = ? AND workspace_id = ?", req.OrderID, wsID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("Order not found for this workspace")
		}
		return nil, err
	}

	if payment.Status == models.PaymentPaid {
		return nil, response.NewConflict("This order has already been paid")
	}
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		if err := db.Model(&models.SubscriptionPayment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentCreated).
			Update("status", models.PaymentFailed).Error; err != nil {
			logger.Warn().Err(err).Str("order_id", req.OrderID).Msg("Failed to mark payment failed")
		}
		return nil, ErrInvalidSignature
	}

	_, plan, err := s.plan(payment.Plan)
	if err != nil {
		return nil, err
	}

	now := s.now()
	endsAt := now.AddDate(0, 0, s.cfg.PeriodDays)
	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"status":     models.PaymentPaid,
			"payment_id": req.PaymentID,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Workspace{}).Where("id = ?", wsID).Updates(map[string]interface{}{
			"subscription_status":  models.SubscriptionActive,
			"subscription_plan":    payment.Plan,
			"max_members":          plan.MaxMembers,
			"subscription_ends_at": endsAt,
		}).Error
	}); err != nil {
		return nil, err
	}

	logger.Info().Str("workspace_id", wsID).Str("plan", payment.Plan).Msg("Subscription activated")

	var ws models.Workspace
	if err := db.First(&ws, "id = ?", wsID).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

// Cancel ends a trial or active subscription immediately.
func (s *SubscriptionService) Cancel(ctx context.Context, access *authz.Access) (*models.Workspace, error) {
	db := s.db.WithContext(ctx)
	result := db.Model(&models.Workspace{}).
		Where("id = ? AND subscription_status IN ?", access.Workspace.ID,
			[]models.SubscriptionStatus{models.SubscriptionTrial, models.SubscriptionActive}).
		Update("subscription_status", models.SubscriptionCancelled)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, response.NewBadRequest("Only a trial or active subscription can be cancelled")
	}

	var ws models.Workspace
	if err := db.First(&ws, "id = ?", access.Workspace.ID).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

// ExpireTrials marks lapsed trials and paid periods inactive and returns
// how many workspaces changed.
func (s *SubscriptionService) ExpireTrials(ctx context.Context) (int64, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	trials := db.Model(&models.Workspace{}).
		Where("subscription_status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at <= ?", models.SubscriptionTrial, now).
		Update("subscription_status", models.SubscriptionInactive)
	if trials.Error != nil {
		return 0, trials.Error
	}

	paid := db.Model(&models.Workspace{}).
		Where("subscription_status = ? AND subscription_ends_at IS NOT NULL AND subscription_ends_at <= ?", models.SubscriptionActive, now).
		Update("subscription_status", models.SubscriptionInactive)
	if paid.Error != nil {
		return trials.RowsAffected, paid.Error
	}
	return trials.RowsAffected + paid.RowsAffected, nil
}
