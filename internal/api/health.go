package api

import (
	"net/http"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Storage string `json:"storage"`
	Redis   bool   `json:"redis"`
}

// HealthHandler reports liveness plus which backends are configured.
func HealthHandler(storage string, redisEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status:  "healthy",
			Version: Version,
			Storage: storage,
			Redis:   redisEnabled,
		})
	}
}
