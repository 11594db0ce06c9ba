package api

import (
	"net/http"
	"strconv"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/edi"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
)

type AdminHandler struct {
	gateway *edi.Gateway
	audit   store.AuditStore
}

func NewAdminHandler(gateway *edi.Gateway, audit store.AuditStore) *AdminHandler {
	return &AdminHandler{gateway: gateway, audit: audit}
}

// BlockedAttempts lists outbound calls the isolation gateway refused.
func (h *AdminHandler) BlockedAttempts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.gateway.BlockedAttempts())
}

// ClearBlockedAttempts empties the blocked-attempt log. Audit storage keeps
// the durable copy.
func (h *AdminHandler) ClearBlockedAttempts(w http.ResponseWriter, r *http.Request) {
	cleared := h.gateway.ClearBlockedAttempts()
	respondJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

// AuditEvents lists the newest audit events, optionally scoped to an org.
func (h *AdminHandler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.audit.ListAuditEvents(r.Context(), orgID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}
