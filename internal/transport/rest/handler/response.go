package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"skillgate/internal/service"

	"github.com/rs/zerolog/hlog"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps service errors onto HTTP. Anything unknown is a 500 with a
// generic message; the cause is logged, never returned.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, "quiz unavailable"
	case errors.Is(err, service.ErrInvalidSession):
		return http.StatusUnauthorized, "invalid or expired session"
	case errors.Is(err, service.ErrAlreadyCompleted):
		return http.StatusConflict, "attempt already completed"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusGone, "invalid or expired code"
	case errors.Is(err, service.ErrMissingToken):
		return http.StatusInternalServerError, "attempt cannot be redirected"
	case errors.Is(err, service.ErrUnknownQuestion):
		return http.StatusBadRequest, "unknown question"
	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound, "job not found"
	}
	return http.StatusInternalServerError, "internal error"
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, message)
}
