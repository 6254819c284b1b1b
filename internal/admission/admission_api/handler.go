package admission_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-visitpass/internal/admission"
	"ms-visitpass/internal/auth"
	"ms-visitpass/internal/logger"
	"ms-visitpass/internal/qr"
	"ms-visitpass/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Admission *admission.Service
	Logger    *logger.Logger
}

func NewHandler(admissionService *admission.Service) *Handler {
	return &Handler{
		Admission: admissionService,
		Logger:    logger.NewLogger(),
	}
}

// RegisterRoutes mounts the check-in and policy endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/checkin", h.CheckIn)
	r.Get("/api/policy", h.GetPolicy)
	r.Put("/api/policy", h.UpdatePolicy)
}

type checkInRequest struct {
	QRPayload          string `json:"qr_payload"`
	OverrideReason     string `json:"override_reason,omitempty"`
	OverrideCredential string `json:"override_credential,omitempty"`
}

// CheckIn decodes the scanned payload and runs one admission per guest it
// names. The HTTP status mirrors the engine outcome so kiosk clients can
// branch without parsing the body.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckIn: missing credentials: %v", err))
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", err.Error()))
		return
	}
	hostID, err := auth.ExtractHostIDFromJWT(token)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckIn: bad token: %v", err))
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Invalid token", err.Error()))
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckIn: invalid body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	payload, err := qr.Decode(req.QRPayload, time.Now())
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CheckIn: undecodable payload from host %s: %v", hostID, err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Unreadable pass", decodeReason(err)))
		return
	}

	base := admission.Request{
		HostID:             hostID,
		OperatorID:         hostID,
		OverrideReason:     req.OverrideReason,
		OverrideCredential: req.OverrideCredential,
	}

	switch payload.Kind {
	case qr.KindBatch:
		results, err := h.Admission.AdmitBatch(r.Context(), base, payload.Batch.Guests)
		if err != nil {
			h.Logger.Error("API", fmt.Sprintf("CheckIn: batch admission failed: %v", err))
			h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Admission failed", err.Error()))
			return
		}
		h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Batch processed", results))

	default:
		single := base
		single.GuestEmail = payload.Single.GuestEmail
		single.GuestName = payload.Single.GuestName
		single.InvitationID = payload.Single.InvitationID
		single.CredentialExpiry = payload.Single.Expiry()

		result, err := h.Admission.Admit(r.Context(), single)
		if err != nil {
			h.Logger.Error("API", fmt.Sprintf("CheckIn: admission failed: %v", err))
			h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Admission failed", err.Error()))
			return
		}
		h.writeJSON(w, statusForOutcome(result.Status), utils.SuccessResponse(messageForOutcome(result.Status), result))
	}
}

// GetPolicy returns the effective admission limits.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Admission.Policy(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetPolicy: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load policy", err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Policy", policy))
}

type policyRequest struct {
	GuestMonthlyLimit   int `json:"guest_monthly_limit"`
	HostConcurrentLimit int `json:"host_concurrent_limit"`
}

// UpdatePolicy replaces the admission limits, rejecting out-of-bounds
// values.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	policy, err := h.Admission.UpdatePolicy(r.Context(), req.GuestMonthlyLimit, req.HostConcurrentLimit)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdatePolicy: rejected: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid policy", err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Policy updated", policy))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, qr.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, qr.ErrMalformedBatch):
		return "malformed_batch"
	default:
		return "unrecognized_payload"
	}
}

func statusForOutcome(status admission.Status) int {
	switch status {
	case admission.StatusAdmitted, admission.StatusReEntry:
		return http.StatusOK
	case admission.StatusOverrideRequired:
		return http.StatusConflict
	case admission.StatusOverrideDenied:
		return http.StatusForbidden
	default:
		return http.StatusForbidden
	}
}

func messageForOutcome(status admission.Status) string {
	switch status {
	case admission.StatusAdmitted:
		return "Guest admitted"
	case admission.StatusReEntry:
		return "Guest re-entered"
	case admission.StatusOverrideRequired:
		return "Host at capacity, override required"
	case admission.StatusOverrideDenied:
		return "Override denied"
	default:
		return "Admission rejected"
	}
}
