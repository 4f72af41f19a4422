package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eunej/CleanField/internal/claim"
	"github.com/eunej/CleanField/internal/farmlock"
	"github.com/eunej/CleanField/internal/farms"
	"github.com/eunej/CleanField/internal/middleware"
	"github.com/eunej/CleanField/internal/model"
	"github.com/eunej/CleanField/internal/reward"
	"github.com/eunej/CleanField/internal/service"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

type Handlers struct {
	svc *service.Service
}

func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListFarms returns every registered farm
// GET /v1/farms
func (h *Handlers) ListFarms(w http.ResponseWriter, r *http.Request) {
	list := h.svc.ListFarms()
	respondJSON(w, http.StatusOK, map[string]any{
		"farms": list,
		"total": len(list),
	})
}

// GetFarm returns one farm
// GET /v1/farms/{id}
func (h *Handlers) GetFarm(w http.ResponseWriter, r *http.Request) {
	farm, err := h.svc.GetFarm(r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, farm)
}

// VerifyFarm runs a hotspot check without issuing an attestation
// POST /v1/farms/{id}/verify
func (h *Handlers) VerifyFarm(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.VerifyFarm(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// CreateAttestation checks a farm and returns a signed attestation
// POST /v1/attestations
func (h *Handlers) CreateAttestation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FarmID    string `json:"farm_id"`
		Requester string `json:"requester"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FarmID == "" {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid_request", "farm_id is required")
		return
	}

	out, err := h.svc.AttestFarm(r.Context(), req.FarmID, req.Requester)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

// BatchAttest attests several farms at once
// POST /v1/attestations/batch
func (h *Handlers) BatchAttest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FarmIDs   []string `json:"farm_ids"`
		Requester string   `json:"requester"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.BatchAttest(r.Context(), req.FarmIDs, req.Requester)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// VerifyAttestation checks an attestation presented by a client
// POST /v1/attestations/verify
func (h *Handlers) VerifyAttestation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attestation *model.Attestation `json:"attestation"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, h.svc.VerifyAttestation(r.Context(), req.Attestation))
}

// GetClaimStatus reports the claim window, reward and payment config of a farm
// GET /v1/claims?farm_id={id}
func (h *Handlers) GetClaimStatus(w http.ResponseWriter, r *http.Request) {
	farmID := r.URL.Query().Get("farm_id")
	if farmID == "" {
		respondJSON(w, http.StatusOK, h.svc.PaymentConfig())
		return
	}

	status, err := h.svc.ClaimStatus(r.Context(), farmID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// SubmitClaim claims a farm's yearly reward
// POST /v1/claims
func (h *Handlers) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		model.ClaimRequest
		Attestation *model.Attestation `json:"attestation,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.Claim(r.Context(), req.ClaimRequest, req.Attestation)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	switch result.Status {
	case model.ClaimIneligible:
		status = http.StatusUnprocessableEntity
	case model.ClaimFailed:
		status = http.StatusBadGateway
	}
	respondJSON(w, status, result)
}

// GetClaimHistory returns one farm's payments, or every farm's with totals
// GET /v1/claims/history?farm_id={id}
func (h *Handlers) GetClaimHistory(w http.ResponseWriter, r *http.Request) {
	if farmID := r.URL.Query().Get("farm_id"); farmID != "" {
		history, err := h.svc.FarmHistory(r.Context(), farmID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, history)
		return
	}

	report, err := h.svc.Distribution(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// EstimateReward prices an arbitrary area
// GET /v1/rewards/estimate?area_hectares={n}
func (h *Handlers) EstimateReward(w http.ResponseWriter, r *http.Request) {
	area, err := strconv.ParseFloat(r.URL.Query().Get("area_hectares"), 64)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid_request", "area_hectares must be a number")
		return
	}
	estimate, err := h.svc.EstimateReward(area)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, estimate)
}

// Reset clears all claim state
// POST /internal/reset
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

// respondError maps domain errors to HTTP statuses
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, farms.ErrFarmNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, "farm_not_found", err.Error())
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, claim.ErrInvalidRequest),
		errors.Is(err, service.ErrEmptyBatch),
		errors.Is(err, service.ErrAttestationFarm),
		errors.Is(err, reward.ErrInvalidArea):
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, farmlock.ErrLockHeld):
		middleware.WriteError(w, r, http.StatusConflict, "claim_in_progress", "another claim for this farm is in progress")
	default:
		slog.ErrorContext(r.Context(), "request_failed",
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		middleware.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
