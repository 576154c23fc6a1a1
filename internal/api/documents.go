package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bull/pdf-ingest/internal/jobs"
)

type uploadResponse struct {
	Path        string `json:"path"`
	Overwritten bool   `json:"overwritten"`
	JobID       string `json:"job_id"`
}

// handleUpload stores a multipart "file" in the working directory and
// submits an ingest job for it. Existing files of the same name are replaced.
func handleUpload(q JobQueue, workDir string, maxBytes int64, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			writeError(w, http.StatusBadRequest, "missing file: "+err.Error())
			return
		}
		defer file.Close()

		name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(header.Filename, "\\", "/")))
		if name == "/" || name == "." {
			writeError(w, http.StatusBadRequest, "missing file name")
			return
		}
		if !isPDFUpload(name, header.Header.Get("Content-Type")) {
			writeError(w, http.StatusBadRequest, "only PDF uploads are accepted")
			return
		}

		path, overwritten, err := saveUpload(workDir, name, file)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			logger.Error("Failed to store upload", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}

		id, err := q.Submit(r.Context(), jobs.KindIngest, []string{path})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, uploadResponse{Path: path, Overwritten: overwritten, JobID: id})
	}
}

func isPDFUpload(name, contentType string) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/pdf"
}

func saveUpload(dir, name string, src io.Reader) (string, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create work dir: %w", err)
	}
	dest := filepath.Join(dir, name)
	_, statErr := os.Stat(dest)
	overwritten := statErr == nil

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", false, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", false, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", false, fmt.Errorf("store upload: %w", err)
	}
	return dest, overwritten, nil
}

type urlRequest struct {
	URL string `json:"url"`
}

type loadResponse struct {
	JobID string    `json:"job_id"`
	Kind  jobs.Kind `json:"kind"`
}

// handleLoad submits a fetch job for remote URLs and an ingest job for
// anything else, which is taken as a local path.
func handleLoad(q JobQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req urlRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		target := strings.TrimSpace(req.URL)
		if target == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}

		kind := jobs.KindIngest
		if isRemote(target) {
			kind = jobs.KindFetch
		}
		id, err := q.Submit(r.Context(), kind, []string{target})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, loadResponse{JobID: id, Kind: kind})
	}
}

func isRemote(target string) bool {
	lower := strings.ToLower(target)
	for _, prefix := range []string{"http://", "https://", "s3://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

type scrapeResponse struct {
	Links  []string `json:"links"`
	JobIDs []string `json:"job_ids"`
}

// handleScrape collects the PDF links of a page and submits one fetch job
// per link.
func handleScrape(q JobQueue, scraper LinkScraper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req urlRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}

		links, err := scraper.PDFLinks(r.Context(), req.URL)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		resp := scrapeResponse{Links: links, JobIDs: make([]string, 0, len(links))}
		if resp.Links == nil {
			resp.Links = []string{}
		}
		for _, link := range links {
			id, err := q.Submit(r.Context(), jobs.KindFetch, []string{link})
			if err != nil {
				writeErr(w, r, err)
				return
			}
			resp.JobIDs = append(resp.JobIDs, id)
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}
