package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cindychow0101/Portfolio-tracker/internal/marketdata"
	"github.com/cindychow0101/Portfolio-tracker/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, marketdata.ErrNoMarketData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, marketdata.ErrRateLimited):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var ve *models.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		if status == http.StatusInternalServerError {
			body.Error = "internal server error"
		}
	}

	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
