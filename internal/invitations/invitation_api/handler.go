package invitation_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-visitpass/internal/auth"
	"ms-visitpass/internal/invitations"
	"ms-visitpass/internal/logger"
	"ms-visitpass/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Invitations *invitations.Service
	Logger      *logger.Logger
}

func NewHandler(invitationService *invitations.Service) *Handler {
	return &Handler{
		Invitations: invitationService,
		Logger:      logger.NewLogger(),
	}
}

// RegisterRoutes mounts the invitation endpoints. Accepting terms is
// unauthenticated: the invitation id in the emailed link is the
// credential.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/invitations", h.CreateInvitation)
	r.Post("/api/invitations/{invitationID}/accept", h.AcceptTerms)
}

// CreateInvitation issues an invitation from the authenticated host to a
// guest and returns the minted QR pass.
func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", err.Error()))
		return
	}
	hostID, err := auth.ExtractHostIDFromJWT(token)
	if err != nil {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Invalid token", err.Error()))
		return
	}

	var req invitations.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateInvitation: invalid body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	issued, err := h.Invitations.CreateInvitation(r.Context(), hostID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateInvitation: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Could not create invitation", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Invitation created", issued))
}

// AcceptTerms records the guest's terms acceptance for an invitation.
func (h *Handler) AcceptTerms(w http.ResponseWriter, r *http.Request) {
	invitationID := chi.URLParam(r, "invitationID")

	invitation, err := h.Invitations.AcceptTerms(r.Context(), invitationID)
	if err != nil {
		switch {
		case errors.Is(err, invitations.ErrInvitationNotFound):
			h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Invitation not found", err.Error()))
		case errors.Is(err, invitations.ErrInvitationClosed):
			h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("Invitation no longer open", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("AcceptTerms: %v", err))
			h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not accept terms", err.Error()))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Terms accepted", invitation))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}
