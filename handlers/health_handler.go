package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vedaai/veda-backend/utils"
	"go.uber.org/zap"
)

// DatabaseChecker reports whether the database can serve queries
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// ProviderLister lists the registered model providers
type ProviderLister interface {
	ListProviders() []string
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusResponse describes the running service
type StatusResponse struct {
	Service     string   `json:"service"`
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	Providers   []string `json:"providers"`
	Tasks       []string `json:"tasks"`

	// DailyMessageLimit is the free-plan allowance new users start with
	DailyMessageLimit int `json:"daily_message_limit"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db        DatabaseChecker
	providers ProviderLister
	status    StatusResponse
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when the
// service runs without a database (tests, local tooling).
func NewHealthHandler(db DatabaseChecker, providers ProviderLister, status StatusResponse, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		providers: providers,
		status:    status,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: returns 200 while the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.db == nil {
		checks["database"] = "not_initialized"
		ready = false
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		ready = false
	} else {
		checks["database"] = "healthy"
	}

	// with no providers no route can answer
	if h.providers == nil || len(h.providers.ListProviders()) == 0 {
		checks["providers"] = "none_configured"
		ready = false
	} else {
		checks["providers"] = "configured"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := h.status
	resp.Providers = []string{}
	if h.providers != nil {
		resp.Providers = h.providers.ListProviders()
	}
	if resp.Tasks == nil {
		resp.Tasks = []string{}
	}
	_ = utils.WriteJSON(w, http.StatusOK, resp)
}
