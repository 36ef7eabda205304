package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/backend/internal/middleware"
	"github.com/taskhive/backend/internal/services"
	"github.com/taskhive/backend/pkg/response"
)

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

// Plans lists the paid plans on offer
// GET /api/subscription/plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	response.Success(c, h.subscriptionService.Plans())
}

// CreateOrder opens a gateway order for a plan
// POST /api/workspaces/:workspaceId/subscription/order
func (h *SubscriptionHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	order, err := h.subscriptionService.CreateOrder(c.Request.Context(), middleware.AccessFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// Verify checks the checkout signature and activates the subscription
// POST /api/workspaces/:workspaceId/subscription/verify
func (h *SubscriptionHandler) Verify(c *gin.Context) {
	var req services.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ws, err := h.subscriptionService.VerifyPayment(c.Request.Context(), middleware.AccessFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ws)
}

// POST /api/workspaces/:workspaceId/subscription/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	ws, err := h.subscriptionService.Cancel(c.Request.Context(), middleware.AccessFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ws)
}
