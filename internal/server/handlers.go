package server

import (
	"net/http"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/middleware"
	"github.com/MrEthical07/goVerify/record"
	"go.uber.org/zap"
)

type handlers struct {
	engine *goVerify.Engine
	logger *zap.Logger
}

type codeRequest struct {
	Recipient string `json:"recipient"`
	Purpose   string `json:"purpose"`
	Code      string `json:"code,omitempty"`
}

type submitResponse struct {
	State        string `json:"state"`
	RecordID     string `json:"record_id"`
	SessionToken string `json:"session_token,omitempty"`
}

type signInRequest struct {
	Recipient string `json:"recipient"`
	Code      string `json:"code"`
}

type signInResponse struct {
	UserID      string     `json:"user_id"`
	AccessToken string     `json:"access_token,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type resetRequest struct {
	SessionToken string `json:"session_token"`
	Token        string `json:"token"`
	NewPassword  string `json:"new_password"`
}

type forgotRequest struct {
	Recipient string `json:"recipient"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) requestCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !readJSON(w, r, &req) {
		return
	}
	purpose, ok := record.ParsePurpose(req.Purpose)
	if !ok || req.Recipient == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "recipient and purpose are required")
		return
	}

	if err := h.engine.RequestCode(r.Context(), req.Recipient, purpose); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) submitCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !readJSON(w, r, &req) {
		return
	}
	purpose, ok := record.ParsePurpose(req.Purpose)
	if !ok || req.Recipient == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "recipient and purpose are required")
		return
	}

	res, err := h.engine.SubmitCode(r.Context(), req.Recipient, purpose, req.Code)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		State:        res.State.String(),
		RecordID:     res.RecordID,
		SessionToken: res.SessionToken,
	})
}

func (h *handlers) signInWithCode(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Recipient == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "recipient is required")
		return
	}

	res, err := h.engine.SignInWithCode(r.Context(), req.Recipient, req.Code)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	out := signInResponse{UserID: res.UserID, AccessToken: res.AccessToken}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		out.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) consumeResetSession(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.engine.ConsumeResetSession(r.Context(), req.SessionToken, req.NewPassword); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) requestResetLink(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Recipient == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "recipient is required")
		return
	}
	if err := h.engine.RequestPasswordResetLink(r.Context(), req.Recipient); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) confirmResetLink(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.engine.ConfirmPasswordResetLink(r.Context(), req.Token, req.NewPassword); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": claims.UID})
}
