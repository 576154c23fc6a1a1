package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bull/pdf-ingest/internal/jobs"
)

type submitRequest struct {
	Kind   jobs.Kind `json:"kind,omitempty"`
	Inputs []string  `json:"inputs"`
}

type submitResponse struct {
	ID   string    `json:"id"`
	Kind jobs.Kind `json:"kind"`
}

func handleSubmitJob(q JobQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Kind == "" {
			req.Kind = jobs.KindIngest
		}

		id, err := q.Submit(r.Context(), req.Kind, req.Inputs)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, submitResponse{ID: id, Kind: req.Kind})
	}
}

func handleListJobs(q JobQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		records, err := q.List(r.Context(), limit)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if records == nil {
			records = []jobs.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleGetJob(q JobQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := q.Status(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
