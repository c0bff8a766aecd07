package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"drinkpoint-api/internal/middleware"
	"drinkpoint-api/internal/service"
	"drinkpoint-api/pkg/apierror"
	"drinkpoint-api/pkg/response"
)

// DefaultMaxUploadBytes caps a capture photo.
const DefaultMaxUploadBytes = 10 << 20

// CaptureHandler handles photo and manual captures.
type CaptureHandler struct {
	captures *service.CaptureService
	maxBytes int64
}

// NewCaptureHandler creates a capture handler. A non-positive maxBytes uses DefaultMaxUploadBytes.
func NewCaptureHandler(captures *service.CaptureService, maxBytes int64) *CaptureHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &CaptureHandler{captures: captures, maxBytes: maxBytes}
}

// Capture handles POST /api/v1/captures (multipart: image, venue_id)
func (h *CaptureHandler) Capture(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	// Room for the form fields around the image.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, apierror.PayloadTooLarge("image too large"))
			return
		}
		response.Error(w, apierror.BadRequest("expected multipart/form-data with an image field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		response.Error(w, apierror.ValidationError("validation failed", apierror.FieldError{Field: "image", Message: "is required"}))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		response.Error(w, apierror.PayloadTooLarge("image too large"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		response.Error(w, apierror.BadRequest("could not read image"))
		return
	}
	if int64(len(body)) > h.maxBytes {
		response.Error(w, apierror.PayloadTooLarge("image too large"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}

	res, err := h.captures.Capture(r.Context(), service.CaptureRequest{
		UserID:      user.ID,
		VenueID:     strings.TrimSpace(r.FormValue("venue_id")),
		Image:       body,
		ContentType: contentType,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, res)
}

// CaptureManual handles POST /api/v1/captures/manual
func (h *CaptureHandler) CaptureManual(w http.ResponseWriter, r *http.Request) {
	var req service.ManualRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	req.UserID = middleware.GetUser(r.Context()).ID

	res, err := h.captures.CaptureManual(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, res)
}
