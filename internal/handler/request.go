package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"drinkpoint-api/internal/repository"
	"drinkpoint-api/pkg/apierror"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apierror.PayloadTooLarge("request body too large")
		case errors.Is(err, io.EOF):
			return apierror.BadRequest("request body is required")
		default:
			return apierror.BadRequest("invalid request body")
		}
	}
	return nil
}

// pageFromQuery reads ?page= and ?limit=, normalized to repository bounds.
func pageFromQuery(r *http.Request) repository.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return repository.Page{Page: page, Limit: limit}.Normalize()
}
