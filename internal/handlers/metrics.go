package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

// Metrics returns Prometheus-compatible text format metrics.
func Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "thesis_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "thesis_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "thesis_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "thesis_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	db := models.GetDB()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "thesis_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "thesis_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		}
	}

	// -- SSE metrics --
	if sseHub := services.GetSSEHub(); sseHub != nil {
		writeGauge(&b, "thesis_sse_active_clients", "Number of active SSE connections", float64(sseHub.ClientCount()))
	}

	// -- Queue metrics --
	taskQueue := services.GetTaskQueue()
	queueAsync := 0.0
	if taskQueue != nil && taskQueue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "thesis_mail_queue_async_enabled", "Whether the async mail queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Workflow metrics --
	if db != nil {
		writeStateGauges(&b, db.Model(&models.Application{}), "thesis_applications", "Applications in state")
		writeStateGauges(&b, db.Model(&models.Thesis{}), "thesis_theses", "Theses in state")

		var openTopics, activeUsers int64
		db.Model(&models.Topic{}).Where("published_at IS NOT NULL AND closed_at IS NULL").Count(&openTopics)
		db.Model(&models.User{}).Where("is_active = ?", true).Count(&activeUsers)
		writeGauge(&b, "thesis_topics_open", "Number of open topics", float64(openTopics))
		writeGauge(&b, "thesis_users_active", "Number of active users", float64(activeUsers))
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

type stateCount struct {
	State string
	Count int64
}

func writeStateGauges(b *strings.Builder, query *gorm.DB, name, help string) {
	var rows []stateCount
	if err := query.Select("state, COUNT(*) as count").Group("state").Scan(&rows).Error; err != nil {
		return
	}
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	for _, r := range rows {
		fmt.Fprintf(b, "%s{state=%q} %d\n", name, r.State, r.Count)
	}
	b.WriteString("\n")
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
