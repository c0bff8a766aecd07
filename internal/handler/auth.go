package handler

import (
	"errors"
	"net/http"

	"drinkpoint-api/internal/middleware"
	"drinkpoint-api/internal/service"
	"drinkpoint-api/pkg/apierror"
	"drinkpoint-api/pkg/response"
)

// AuthHandler handles admin session requests.
type AuthHandler struct {
	tokenService *service.TokenService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokenService *service.TokenService) *AuthHandler {
	return &AuthHandler{tokenService: tokenService}
}

// LoginRequest represents the request body for admin login.
type LoginRequest struct {
	Key string `json:"key"`
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Login handles POST /api/v1/admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.Key == "" {
		response.Error(w, apierror.ValidationError("validation failed", apierror.FieldError{Field: "key", Message: "is required"}))
		return
	}

	token, err := h.tokenService.Login(r.Context(), req.Key, middleware.ClientIP(r))
	if errors.Is(err, service.ErrInvalidLogin) {
		response.Error(w, apierror.Unauthorized("invalid login key"))
		return
	}
	if err != nil {
		response.Error(w, apierror.InternalError("failed to generate token"))
		return
	}

	response.OK(w, TokenResponse{
		Token:     token,
		ExpiresIn: int(h.tokenService.TTL().Seconds()),
	})
}

// Logout handles POST /api/v1/admin/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.AdminTokenHeader)
	if err := h.tokenService.RevokeToken(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}
	response.OK(w, map[string]string{"status": "revoked"})
}

// Refresh handles POST /api/v1/admin/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.AdminTokenHeader)
	session, err := h.tokenService.RefreshToken(r.Context(), token)
	if errors.Is(err, service.ErrInvalidToken) {
		response.Error(w, apierror.Unauthorized("Invalid or expired token"))
		return
	}
	if err != nil {
		response.Error(w, apierror.InternalError("failed to refresh token"))
		return
	}
	response.OK(w, map[string]interface{}{
		"status":     "refreshed",
		"expires_at": session.ExpiresAt,
		"expires_in": int(h.tokenService.TTL().Seconds()),
	})
}
