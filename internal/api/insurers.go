package api

import (
	"net/http"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
)

type InsurerHandler struct {
	registry *domain.InsurerRegistry
}

func NewInsurerHandler(registry *domain.InsurerRegistry) *InsurerHandler {
	return &InsurerHandler{registry: registry}
}

// List returns the configured insurer rail table.
func (h *InsurerHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.All())
}
