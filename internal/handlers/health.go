package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	db := models.GetDB()

	// Database check
	dbStatus := "ok"
	if db == nil {
		dbStatus = "error: not initialized"
		overall = "unhealthy"
	} else if sqlDB, err := db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// Queue mode
	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// SSE connections
	sseClients := services.GetSSEHub().ClientCount()

	var pendingApplications int64
	var lastSweep *time.Time
	if overall == "healthy" {
		db.Model(&models.Application{}).
			Where("state = ?", models.ApplicationStateNotAssessed).
			Count(&pendingApplications)

		var lock models.SchedulerLock
		if err := db.Where("lock_name = ?", services.JobAutoReject).Order("locked_at DESC").First(&lock).Error; err == nil {
			lastSweep = &lock.LockedAt
		}
	}

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "thesis-management",
		"components": gin.H{
			"database":             dbStatus,
			"queue_mode":           queueMode,
			"sse_clients":          sseClients,
			"pending_applications": pendingApplications,
			"last_auto_reject":     lastSweep,
		},
	})
}
