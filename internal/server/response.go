package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	goVerify "github.com/MrEthical07/goVerify"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// apiError is the body of every non-2xx response.
type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// readJSON decodes at most 64KB into v. It writes the 400 itself and
// returns false on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		writeError(w, r, http.StatusUnsupportedMediaType, "unsupported_media_type", "content type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, apiError{
		Code:      code,
		Message:   message,
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

// writeEngineError maps an engine error to a response. Unknown accounts
// never reach here as a distinct error, and Invalid has a single body.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, goVerify.ErrMisconfigured):
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	case errors.Is(err, goVerify.ErrEngineNotReady), errors.Is(err, goVerify.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "service unavailable")
	case errors.Is(err, goVerify.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
	case errors.Is(err, goVerify.ErrTooManyAttempts):
		writeError(w, r, http.StatusTooManyRequests, "too_many_attempts", "too many attempts")
	case errors.Is(err, goVerify.ErrExpired):
		writeError(w, r, http.StatusGone, "expired", "code or token expired")
	case errors.Is(err, goVerify.ErrPasswordPolicy):
		writeError(w, r, http.StatusBadRequest, "password_policy", "password does not meet policy")
	case errors.Is(err, goVerify.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, "invalid", "invalid code or token")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
