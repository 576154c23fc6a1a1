package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"code.sajari.com/docconv"

	"github.com/bull/pdf-ingest/internal/document"
)

// ConvertFunc converts a PDF stream into text and document metadata.
type ConvertFunc func(r io.Reader) (string, map[string]string, error)

// PDFExtractor extracts text from PDF files with docconv, which shells out
// to poppler's pdftotext. Form feeds in the output mark page boundaries.
type PDFExtractor struct {
	splitter *Splitter
	convert  ConvertFunc
}

// NewPDFExtractor returns a PDFExtractor backed by docconv.
func NewPDFExtractor(splitter *Splitter) *PDFExtractor {
	return NewPDFExtractorWith(splitter, docconv.ConvertPDF)
}

// NewPDFExtractorWith uses convert instead of docconv.
func NewPDFExtractorWith(splitter *Splitter, convert ConvertFunc) *PDFExtractor {
	if splitter == nil {
		splitter = NewSplitter(0, DefaultChunkOverlap)
	}
	return &PDFExtractor{splitter: splitter, convert: convert}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]document.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	body, meta, err := e.convert(f)
	if err != nil {
		return nil, fmt.Errorf("convert pdf %s: %w", path, err)
	}

	segs := pageSegments(path, strings.Split(body, "\f"), e.splitter)
	if title := strings.TrimSpace(meta["Title"]); title != "" {
		for i := range segs {
			segs[i].Metadata[document.KeyTitle] = title
		}
	}
	return segs, nil
}
