package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bull/pdf-ingest/internal/fetch"
	"github.com/bull/pdf-ingest/internal/indexer"
	"github.com/bull/pdf-ingest/internal/jobs"
	"github.com/bull/pdf-ingest/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr maps domain errors onto HTTP status codes. Client errors echo
// the error text; server-side failures are logged and answered with a fixed
// message.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}
	loggerFrom(r.Context()).Error("Request failed", "status", status, "error", err)
	writeError(w, status, serverMessage(status))
}

func serverMessage(status int) string {
	switch status {
	case http.StatusBadGateway:
		return "document could not be downloaded"
	case http.StatusServiceUnavailable:
		return "index unavailable"
	default:
		return "internal server error"
	}
}

type loggerKey struct{}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, jobs.ErrNoInput),
		errors.Is(err, jobs.ErrUnknownKind),
		errors.Is(err, indexer.ErrNoInput):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fetch.ErrUnsafeURL):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fetch.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
