package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"drinkpoint-api/pkg/response"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains the public probe handlers and their dependencies.
type Handler struct {
	version   string
	checks    map[string]Pinger
	startTime time.Time
}

// New creates a probe handler. checks maps a dependency name to its pinger.
func New(version string, checks map[string]Pinger) *Handler {
	return &Handler{version: version, checks: checks, startTime: time.Now()}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) runChecks(ctx context.Context) ([]Check, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	checks := []Check{{Name: "api", Status: "ok"}}
	allReady := true
	for name, p := range h.checks {
		c := Check{Name: name, Status: "ok"}
		if err := p.Ping(ctx); err != nil {
			c.Status, c.Error = "error", err.Error()
			allReady = false
		}
		checks = append(checks, c)
	}
	return checks, allReady
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks, allReady := h.runChecks(r.Context())

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, ReadyResponse{
		Ready:     allReady,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// StatusResponse represents the unified status response for uptime monitoring.
type StatusResponse struct {
	Service       string            `json:"service"`
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Timestamp     string            `json:"timestamp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	PingMS        int64             `json:"ping_ms"`
	MemoryMB      float64           `json:"memory_mb"`
	Checks        map[string]string `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()
	checks, allReady := h.runChecks(r.Context())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	resp := StatusResponse{
		Service:       "drinkpoint-api",
		Status:        "ok",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		PingMS:        time.Since(requestStart).Milliseconds(),
		MemoryMB:      float64(int(memoryMB*100)) / 100,
		Checks:        make(map[string]string, len(checks)),
	}
	if !allReady {
		resp.Status = "degraded"
	}
	for _, c := range checks {
		resp.Checks[c.Name] = c.Status
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
