package api

import (
	"net/http"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Mode    string `json:"mode"`
	Version string `json:"version"`
}

// HealthHandler returns the health check handler.
func HealthHandler(sandbox bool) http.HandlerFunc {
	mode := "production"
	if sandbox {
		mode = "sandbox"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status:  "healthy",
			Mode:    mode,
			Version: "1.0.0",
		})
	}
}
