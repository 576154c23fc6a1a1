package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bull/pdf-ingest/internal/storage"
)

const (
	defaultQueryK = 5
	maxQueryK     = 50
)

func handleCount(index storage.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := index.Count(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
	}
}

type queryResponse struct {
	Query string        `json:"query"`
	Hits  []storage.Hit `json:"hits"`
}

// handleQuery passes the query through to the index and returns its hits
// as ranked by the index.
func handleQuery(index storage.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		k := defaultQueryK
		if v := r.URL.Query().Get("k"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid k")
				return
			}
			k = min(n, maxQueryK)
		}

		hits, err := index.Query(r.Context(), q, k)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if hits == nil {
			hits = []storage.Hit{}
		}
		writeJSON(w, http.StatusOK, queryResponse{Query: q, Hits: hits})
	}
}

func handleRebuild(rb Rebuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rb.Rebuild(r.Context()); err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
	}
}
