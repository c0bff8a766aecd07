package handler

import (
	"net/http"

	"drinkpoint-api/internal/middleware"
	"drinkpoint-api/internal/service"
	"drinkpoint-api/pkg/response"
)

// ProfileHandler serves the signed-in user's own data and the public catalog.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me handles GET /api/v1/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Profile(r.Context(), middleware.GetUser(r.Context()).ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, p)
}

// Badges handles GET /api/v1/me/badges
func (h *ProfileHandler) Badges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.profiles.Badges(r.Context(), middleware.GetUser(r.Context()).ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, badges)
}

// Characters handles GET /api/v1/me/characters
func (h *ProfileHandler) Characters(w http.ResponseWriter, r *http.Request) {
	chars, err := h.profiles.Characters(r.Context(), middleware.GetUser(r.Context()).ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, chars)
}

// Consumptions handles GET /api/v1/me/consumptions?page=&limit=
func (h *ProfileHandler) Consumptions(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	records, total, err := h.profiles.Consumptions(r.Context(), middleware.GetUser(r.Context()).ID, page)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Paged(w, records, page.Page, page.Limit, total)
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *ProfileHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.profiles.Leaderboard(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, board)
}

// Venues handles GET /api/v1/venues
func (h *ProfileHandler) Venues(w http.ResponseWriter, r *http.Request) {
	venues, err := h.profiles.Venues(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, venues)
}

// Products handles GET /api/v1/products
func (h *ProfileHandler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.profiles.Products(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, products)
}
