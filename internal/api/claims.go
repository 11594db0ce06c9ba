package api

import (
	"encoding/json"
	"net/http"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ClaimHandler struct {
	claims store.ClaimStore
}

func NewClaimHandler(s store.ClaimStore) *ClaimHandler {
	return &ClaimHandler{claims: s}
}

type createClaimRequest struct {
	ID             string   `json:"id,omitempty"`
	OrgID          string   `json:"org_id"`
	InsurerID      string   `json:"insurer_id"`
	Type           string   `json:"type"`
	AmountCents    int64    `json:"amount_cents"`
	ProcedureCodes []string `json:"procedure_codes"`
}

// Create registers a claim record so it can be handed to the queue. The
// claim-entry system owns these records in production; this endpoint exists
// for development and integration testing.
func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrgID == "" || req.InsurerID == "" {
		respondError(w, http.StatusBadRequest, "org_id and insurer_id are required")
		return
	}

	claimType := domain.ClaimType(req.Type)
	if claimType != domain.ClaimTypeClaim && claimType != domain.ClaimTypePreauth {
		respondError(w, http.StatusBadRequest, "type must be claim or preauth")
		return
	}

	claim := &domain.Claim{
		ID:             req.ID,
		OrgID:          req.OrgID,
		InsurerID:      req.InsurerID,
		Type:           claimType,
		AmountCents:    req.AmountCents,
		ProcedureCodes: req.ProcedureCodes,
		Status:         domain.ClaimPending,
	}
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}

	if err := h.claims.CreateClaim(r.Context(), claim); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, claim)
}

func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claim, err := h.claims.GetClaim(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get claim")
		return
	}
	if claim == nil {
		respondError(w, http.StatusNotFound, "claim not found")
		return
	}

	respondJSON(w, http.StatusOK, claim)
}
