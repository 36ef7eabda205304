package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/services"
)

var startTime = time.Now()

type MetricsHandler struct {
	db    *gorm.DB
	queue services.MailQueue
	hub   *services.SSEHub
}

func NewMetricsHandler(db *gorm.DB, queue services.MailQueue, hub *services.SSEHub) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, hub: hub}
}

// Metrics returns Prometheus-compatible text format metrics.
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "taskhive_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "taskhive_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "taskhive_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "taskhive_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "taskhive_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database --
	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "taskhive_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "taskhive_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		writeGauge(&b, "taskhive_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
	}

	writeGauge(&b, "taskhive_sse_active_clients", "Number of active SSE connections", float64(h.hub.ClientCount()))

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "taskhive_mail_queue_async", "Whether mail goes through the Redis queue (1=yes, 0=no)", queueAsync)

	// -- Domain --
	db := h.db.WithContext(c.Request.Context())
	var workspaces, activeSubs, trials, users, tasks, openTasks int64
	db.Model(&models.Workspace{}).Count(&workspaces)
	db.Model(&models.Workspace{}).Where("subscription_status = ?", models.SubscriptionActive).Count(&activeSubs)
	db.Model(&models.Workspace{}).Where("subscription_status = ?", models.SubscriptionTrial).Count(&trials)
	db.Model(&models.User{}).Where("is_active = ?", true).Count(&users)
	db.Model(&models.Task{}).Count(&tasks)
	db.Model(&models.Task{}).Where("status IN ?", []models.TaskStatus{models.TaskPending, models.TaskInProgress}).Count(&openTasks)

	writeGauge(&b, "taskhive_workspaces_total", "Total number of workspaces", float64(workspaces))
	writeGauge(&b, "taskhive_workspaces_active_subscriptions", "Workspaces on a paid active subscription", float64(activeSubs))
	writeGauge(&b, "taskhive_workspaces_trial", "Workspaces in their trial window", float64(trials))
	writeGauge(&b, "taskhive_users_active", "Number of active users", float64(users))
	writeGauge(&b, "taskhive_tasks_total", "Total number of tasks", float64(tasks))
	writeGauge(&b, "taskhive_tasks_open", "Tasks pending or in progress", float64(openTasks))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
