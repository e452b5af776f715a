package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/irfndi/funding-monitor-go/internal/services"
)

var startTime = time.Now()

// HealthChecker is satisfied by *database.PostgresDB and *database.RedisClient.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CollectorStatus reports per-exchange worker state.
type CollectorStatus interface {
	GetWorkerStatus() map[string]services.Worker
	IsHealthy() bool
}

type HealthHandler struct {
	db        HealthChecker
	redis     HealthChecker
	collector CollectorStatus
	version   string
}

type HealthResponse struct {
	Status    string                     `json:"status"`
	Timestamp time.Time                  `json:"timestamp"`
	Services  map[string]string          `json:"services"`
	Workers   map[string]services.Worker `json:"workers,omitempty"`
	Resources ResourceStats              `json:"resources"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
}

type ResourceStats struct {
	Goroutines        int     `json:"goroutines"`
	HeapAllocMB       float64 `json:"heap_alloc_mb"`
	SystemMemoryUsed  float64 `json:"system_memory_used_percent"`
	SystemMemoryTotal uint64  `json:"system_memory_total_mb"`
}

// NewHealthHandler accepts nil dependencies; each one missing is reported unhealthy.
func NewHealthHandler(db, redis HealthChecker, collector CollectorStatus, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		collector: collector,
		version:   version,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	svc := map[string]string{
		"database": checkDependency(ctx, h.db),
		"redis":    checkDependency(ctx, h.redis),
	}

	response := HealthResponse{
		Timestamp: time.Now().UTC(),
		Services:  svc,
		Resources: resourceStats(ctx),
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	}

	if h.collector != nil {
		response.Workers = h.collector.GetWorkerStatus()
		if h.collector.IsHealthy() {
			svc["collector"] = "healthy"
		} else {
			svc["collector"] = "degraded"
		}
	} else {
		svc["collector"] = "unhealthy: not configured"
	}

	// Redis and a lagging collector degrade service; Postgres is required.
	response.Status = "healthy"
	if svc["database"] != "healthy" {
		response.Status = "unhealthy"
	} else if svc["redis"] != "healthy" || svc["collector"] != "healthy" {
		response.Status = "degraded"
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

func checkDependency(ctx context.Context, dep HealthChecker) string {
	if dep == nil {
		return "unhealthy: not configured"
	}
	if err := dep.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

func resourceStats(ctx context.Context) ResourceStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := ResourceStats{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.SystemMemoryUsed = vm.UsedPercent
		stats.SystemMemoryTotal = vm.Total / 1024 / 1024
	}
	return stats
}

// LivenessCheck for container restarts
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
