package handler

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/repository"
	"drinkpoint-api/internal/service"
	"drinkpoint-api/pkg/apierror"
	"drinkpoint-api/pkg/response"
)

// StatsSource reports storage statistics for the admin stats page.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	admin     *service.AdminService
	store     StatsSource
	cache     Pinger
	dbType    string
	cacheType string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin *service.AdminService, store StatsSource, cache Pinger, dbType, cacheType string) *AdminHandler {
	return &AdminHandler{
		admin:     admin,
		store:     store,
		cache:     cache,
		dbType:    dbType,
		cacheType: cacheType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	cacheStats := map[string]interface{}{"type": h.cacheType, "status": "connected"}
	if err := h.cache.Ping(ctx); err != nil {
		cacheStats["status"] = "error"
		cacheStats["error"] = err.Error()
	}
	stats["cache"] = cacheStats

	dbStats, err := h.store.Stats(ctx)
	if err != nil {
		stats["database"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		dbStats["status"] = "connected"
		stats["database"] = dbStats
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// ListUsers handles GET /api/v1/admin/users?q=&page=&limit=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	users, total, err := h.admin.ListUsers(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), page)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Paged(w, users, page.Page, page.Limit, total)
}

// GetUser handles GET /api/v1/admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.admin.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, u)
}

// UpdateUser handles PATCH /api/v1/admin/users/{id}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd model.UserUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		response.Error(w, err)
		return
	}
	u, err := h.admin.UpdateUser(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, u)
}

// AdjustPointsRequest is the body of a points adjustment.
type AdjustPointsRequest struct {
	Points int64  `json:"points"`
	Reason string `json:"reason"`
}

// AdjustPoints handles POST /api/v1/admin/users/{id}/points
func (h *AdminHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req AdjustPointsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.admin.AdjustPoints(r.Context(), chi.URLParam(r, "id"), req.Points, req.Reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, res)
}

// ListVenues handles GET /api/v1/admin/venues
func (h *AdminHandler) ListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := h.admin.ListVenues(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, venues)
}

// GetVenue handles GET /api/v1/admin/venues/{id}
func (h *AdminHandler) GetVenue(w http.ResponseWriter, r *http.Request) {
	v, err := h.admin.GetVenue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, v)
}

// CreateVenue handles POST /api/v1/admin/venues
func (h *AdminHandler) CreateVenue(w http.ResponseWriter, r *http.Request) {
	var v model.Venue
	if err := decodeJSON(w, r, &v); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.admin.CreateVenue(r.Context(), &v); err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, v)
}

// UpdateVenue handles PUT /api/v1/admin/venues/{id}
func (h *AdminHandler) UpdateVenue(w http.ResponseWriter, r *http.Request) {
	var v model.Venue
	if err := decodeJSON(w, r, &v); err != nil {
		response.Error(w, err)
		return
	}
	v.ID = chi.URLParam(r, "id")
	if err := h.admin.UpdateVenue(r.Context(), &v); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, v)
}

// DeleteVenue handles DELETE /api/v1/admin/venues/{id}
func (h *AdminHandler) DeleteVenue(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteVenue(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// ListProducts handles GET /api/v1/admin/products
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.admin.ListProducts(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, products)
}

// GetProduct handles GET /api/v1/admin/products/{id}
func (h *AdminHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.admin.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, p)
}

// CreateProduct handles POST /api/v1/admin/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := decodeJSON(w, r, &p); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.admin.CreateProduct(r.Context(), &p); err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, p)
}

// UpdateProduct handles PUT /api/v1/admin/products/{id}
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := decodeJSON(w, r, &p); err != nil {
		response.Error(w, err)
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := h.admin.UpdateProduct(r.Context(), &p); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, p)
}

// DeleteProduct handles DELETE /api/v1/admin/products/{id}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Analytics handles GET /api/v1/admin/analytics?days=
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(w, apierror.ValidationError("validation failed", apierror.FieldError{Field: "days", Message: "must be a positive integer"}))
			return
		}
		days = n
	}
	a, err := h.admin.Analytics(r.Context(), days)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, a)
}

var _ StatsSource = (repository.Store)(nil)
