package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bull/pdf-ingest/internal/document"
)

// ErrUnsupported is returned for files no registered extractor handles.
var ErrUnsupported = errors.New("unsupported file type")

// Extractor turns a local file into text segments.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]document.Segment, error)
}

// Router dispatches to an extractor by file extension.
type Router struct {
	byExt  map[string]Extractor
	logger *slog.Logger
}

// NewRouter registers the PDF, Markdown and plain text extractors.
func NewRouter(splitter *Splitter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	pdf := NewPDFExtractor(splitter)
	md := NewMarkdownExtractor(splitter)
	txt := NewTextExtractor(splitter)
	return &Router{
		byExt: map[string]Extractor{
			".pdf":      pdf,
			".md":       md,
			".markdown": md,
			".txt":      txt,
		},
		logger: logger,
	}
}

// Register adds or replaces the extractor for ext (e.g. ".pdf").
func (r *Router) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Extract picks the extractor for path. Files without an extension are
// sniffed for a PDF header.
func (r *Router) Extract(ctx context.Context, path string) ([]document.Segment, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" && isPDF(path) {
		ext = ".pdf"
	}
	e, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	segs, err := e.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Extracted file", "path", path, "segments", len(segs))
	return segs, nil
}

var pdfMagic = []byte("%PDF-")

func isPDF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, pdfMagic)
}

// pageSegments splits page texts into segments tagged with source and page.
func pageSegments(path string, pages []string, splitter *Splitter) []document.Segment {
	var segs []document.Segment
	for page, text := range pages {
		for _, chunk := range splitter.Split(text) {
			segs = append(segs, document.NewSegment(chunk, path, page))
		}
	}
	return segs
}
