package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/services"
)

// HealthHandler reports the state of the server's dependencies.
type HealthHandler struct {
	db    *gorm.DB
	queue services.MailQueue
	hub   *services.SSEHub
}

func NewHealthHandler(db *gorm.DB, queue services.MailQueue, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

// CheckHealth pings the database and summarizes the other components.
// An unreachable database answers 503.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	code := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	queueMode := "inline"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(code, gin.H{
		"status":  overall,
		"service": "taskhive",
		"components": gin.H{
			"database":    dbStatus,
			"mail_queue":  queueMode,
			"sse_clients": h.hub.ClientCount(),
		},
	})
}
