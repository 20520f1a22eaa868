package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"bazaar-api/pkg/apierror"
	"bazaar-api/pkg/response"

	"go.uber.org/zap"
)

// StatsSource reports listing store statistics.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// SweepRunner triggers a notification retention sweep.
type SweepRunner interface {
	RunNow() (int64, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	stats     StatsSource
	sweeper   SweepRunner
	storeType string // sqlite, postgres or mysql
	startTime time.Time
	logger    *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(stats StatsSource, sweeper SweepRunner, storeType string, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		stats:     stats,
		sweeper:   sweeper,
		storeType: storeType,
		startTime: time.Now(),
		logger:    logger.Named("admin"),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if store, err := h.stats.Stats(r.Context()); err == nil {
		store["status"] = "connected"
		stats["store"] = store
	} else {
		stats["store"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// Sweep handles POST /api/v1/admin/sweep
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		response.Error(w, apierror.ServiceUnavailable("sweep is not configured"))
		return
	}

	removed, err := h.sweeper.RunNow()
	if err != nil {
		h.logger.Error("manual sweep failed", zap.Error(err))
		response.Error(w, apierror.InternalError("sweep failed"))
		return
	}
	h.logger.Info("manual sweep completed", zap.Int64("removed", removed))
	response.OK(w, map[string]interface{}{
		"removed": removed,
	})
}
