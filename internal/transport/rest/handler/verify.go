package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"skillgate/internal/model"
	"skillgate/internal/transport/rest/middleware"
)

// VerifyService confirms outcomes to client backends
type VerifyService interface {
	Verify(ctx context.Context, teamID string, req model.VerifyRequest) (*model.VerifyResponse, error)
}

// VerifyHandler handles server-to-server verification
type VerifyHandler struct {
	verifySvc VerifyService
}

// NewVerifyHandler creates a new verify handler
func NewVerifyHandler(verifySvc VerifyService) *VerifyHandler {
	return &VerifyHandler{verifySvc: verifySvc}
}

// Verify handles POST /v1/verify
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	if teamID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req model.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.JobID == "" {
		writeError(w, http.StatusBadRequest, "email and jobId are required")
		return
	}

	resp, err := h.verifySvc.Verify(r.Context(), teamID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
