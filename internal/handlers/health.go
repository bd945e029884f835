package handlers

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/participa-df/ouvidoria-server/internal/models"
	"go.uber.org/zap"
)

var startTime = time.Now()

const version = "1.2.0"

// HealthHandler provides health check endpoints
type HealthHandler struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *pgxpool.Pool, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// Check handles GET /api/v1/health (liveness probe)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, models.HealthStatus{
			Status:   "not ready",
			Version:  version,
			Database: "disconnected",
		})
		return
	}

	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:   "ready",
		Version:  version,
		Uptime:   time.Since(startTime).String(),
		Database: "connected",
	})
}

// Status handles GET /api/v1/status
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"service": "Participa DF API",
	})
}
