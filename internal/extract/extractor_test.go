package extract

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-ingest/internal/document"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func stubConvert(body string, meta map[string]string, err error) ConvertFunc {
	return func(r io.Reader) (string, map[string]string, error) {
		_, _ = io.Copy(io.Discard, r)
		return body, meta, err
	}
}

// TestPDFExtractor_Pages verifies form feeds become page numbers.
func TestPDFExtractor_Pages(t *testing.T) {
	path := writeFile(t, "report.pdf", "%PDF-1.4 fake")
	e := NewPDFExtractorWith(NewSplitter(1000, 200),
		stubConvert("first page\fsecond page\f", map[string]string{"Title": "Annual Report"}, nil))

	segs, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, "first page", segs[0].Content)
	assert.Equal(t, 0, segs[0].Page())
	assert.Equal(t, "second page", segs[1].Content)
	assert.Equal(t, 1, segs[1].Page())
	assert.Equal(t, path, segs[1].String(document.KeySource))
	assert.Equal(t, "Annual Report", segs[1].String(document.KeyTitle))
}

// TestPDFExtractor_ConvertError verifies conversion failures are returned.
func TestPDFExtractor_ConvertError(t *testing.T) {
	path := writeFile(t, "broken.pdf", "garbage")
	boom := errors.New("pdftotext failed")
	e := NewPDFExtractorWith(nil, stubConvert("", nil, boom))

	_, err := e.Extract(context.Background(), path)
	assert.ErrorIs(t, err, boom)
}

// TestPDFExtractor_BlankDocument verifies a PDF without text yields no segments.
func TestPDFExtractor_BlankDocument(t *testing.T) {
	path := writeFile(t, "blank.pdf", "%PDF-1.4")
	e := NewPDFExtractorWith(nil, stubConvert(" \f \n", nil, nil))

	segs, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

// TestTextExtractor verifies plain text files are read and split.
func TestTextExtractor(t *testing.T) {
	path := writeFile(t, "notes.txt", "hello\nworld\fpage two")
	segs, err := NewTextExtractor(nil).Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "hello\nworld", segs[0].Content)
	assert.Equal(t, 1, segs[1].Page())

	_, err = NewTextExtractor(nil).Extract(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestRouter verifies dispatch by extension and PDF sniffing.
func TestRouter(t *testing.T) {
	r := NewRouter(nil, nil)
	r.Register(".pdf", NewPDFExtractorWith(nil, stubConvert("pdf text", nil, nil)))

	ctx := context.Background()

	segs, err := r.Extract(ctx, writeFile(t, "a.PDF", "%PDF-1.7"))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "pdf text", segs[0].Content)

	segs, err = r.Extract(ctx, writeFile(t, "download", "%PDF-1.7 body"))
	require.NoError(t, err)
	require.Len(t, segs, 1)

	segs, err = r.Extract(ctx, writeFile(t, "b.txt", "text body"))
	require.NoError(t, err)
	assert.Equal(t, "text body", segs[0].Content)

	_, err = r.Extract(ctx, writeFile(t, "c.docx", "x"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

// TestExtract_CanceledContext verifies extractors stop on a canceled context.
func TestExtract_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := writeFile(t, "x.txt", "body")
	_, err := NewTextExtractor(nil).Extract(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
