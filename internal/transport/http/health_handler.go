package http

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	apierrors "agentforge/internal/errors"

	"github.com/go-chi/render"
)

// ReadinessProbe reports whether the backing resources answer
type ReadinessProbe interface {
	Ping(ctx context.Context) error
}

// ServiceInfo identifies the running service in health payloads
type ServiceInfo struct {
	Name    string
	Version string
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Version   string  `json:"version"`
	Timestamp float64 `json:"timestamp"`
}

// RootResponse is the body of GET /
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Health  string `json:"health"`
}

// ReadinessResponse is the body of GET /health/ready
type ReadinessResponse struct {
	Status string `json:"status"`
}

// LivenessResponse is the body of GET /health/live
type LivenessResponse struct {
	Status     string `json:"status"`
	Goroutines int    `json:"goroutines"`
	GoVersion  string `json:"go_version"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	info   ServiceInfo
	probe  ReadinessProbe
	now    func() time.Time
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler. probe may be nil, in which
// case the readiness check always succeeds.
func NewHealthHandler(info ServiceInfo, probe ReadinessProbe, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		info:   info,
		probe:  probe,
		now:    time.Now,
		logger: logger.With(slog.String("handler", "health")),
	}
}

// Root handles GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, RootResponse{
		Message: h.info.Name + " API",
		Version: h.info.Version,
		Health:  "/health",
	})
}

// Health handles GET /health. It does not touch the database or the cache.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	render.JSON(w, r, HealthResponse{
		Status:    "healthy",
		Service:   h.info.Name,
		Version:   h.info.Version,
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) error {
	if h.probe != nil {
		if err := h.probe.Ping(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "Readiness check failed", slog.String("error", err.Error()))
			return apierrors.ErrServiceUnavailable
		}
	}
	render.JSON(w, r, ReadinessResponse{Status: "ready"})
	return nil
}

// Live handles GET /health/live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, LivenessResponse{
		Status:     "alive",
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
	})
}
