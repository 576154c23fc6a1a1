package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bull/pdf-ingest/internal/storage"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Documents int    `json:"documents"`
	Timestamp string `json:"timestamp"`
}

// handleHealth reports whether the index answers a count within three
// seconds.
func handleHealth(index storage.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		count, err := index.Count(ctx)

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if err != nil {
			response.Status = "unhealthy"
			response.Index = "disconnected"
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}

		response.Status = "healthy"
		response.Index = "connected"
		response.Documents = count
		writeJSON(w, http.StatusOK, response)
	}
}
