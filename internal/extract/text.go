package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bull/pdf-ingest/internal/document"
)

// TextExtractor reads plain text files. Form feeds separate pages.
type TextExtractor struct {
	splitter *Splitter
}

func NewTextExtractor(splitter *Splitter) *TextExtractor {
	if splitter == nil {
		splitter = NewSplitter(0, DefaultChunkOverlap)
	}
	return &TextExtractor{splitter: splitter}
}

func (e *TextExtractor) Extract(ctx context.Context, path string) ([]document.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return pageSegments(path, strings.Split(string(data), "\f"), e.splitter), nil
}
