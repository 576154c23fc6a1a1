package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeSource verifies path-like sources are reduced to a file stem.
func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/abs/path/report.pdf", "report"},
		{"relative/dir/notes.pdf", "notes"},
		{`C:\docs\manual.PDF`, "manual"},
		{"report.pdf", "report"},
		{"report", "report"},
		{"", UnknownSource},
		{"   ", UnknownSource},
		{"/", UnknownSource},
		{".hidden", ".hidden"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSource(tt.in), "source %q", tt.in)
	}
}

// TestNormalizeContent verifies whitespace collapsing and control stripping.
func TestNormalizeContent(t *testing.T) {
	assert.Equal(t, "Hello world", NormalizeContent("  Hello \n\n\t world\f ", false))
	assert.Equal(t, "a b", NormalizeContent("a\fb", false))
	assert.Equal(t, "ab", NormalizeContent("a\x00b", false))
	assert.Equal(t, "hello world", NormalizeContent("Hello  World", true))
	assert.Equal(t, "", NormalizeContent(" \n\t ", false))
}

// TestCanonicalID_Deterministic verifies identical inputs yield identical IDs.
func TestCanonicalID_Deterministic(t *testing.T) {
	n := NewNormalizer()
	seg := NewSegment("Some page text", "/data/report.pdf", 3)

	_, id1 := n.Normalize(seg)
	_, id2 := n.Normalize(seg)

	assert.Equal(t, id1, id2)
	assert.True(t, strings.HasPrefix(id1, "report:3:"))
	parts := strings.Split(id1, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], HashPrefixLen)
}

// TestNormalize_WhitespaceVariantsShareID verifies formatting noise does not
// change identity.
func TestNormalize_WhitespaceVariantsShareID(t *testing.T) {
	n := NewNormalizer()
	_, a := n.Normalize(NewSegment("Chapter one\n\nintroduction", "book.pdf", 0))
	_, b := n.Normalize(NewSegment("  Chapter one introduction\f", "/tmp/book.pdf", 0))
	assert.Equal(t, a, b)
}

// TestNormalize_LowerCase verifies case folding is opt-in.
func TestNormalize_LowerCase(t *testing.T) {
	plain := NewNormalizer()
	folded := NewNormalizer()
	folded.LowerCase = true

	_, a := plain.Normalize(NewSegment("Text", "x", 0))
	_, b := plain.Normalize(NewSegment("text", "x", 0))
	assert.NotEqual(t, a, b)

	_, c := folded.Normalize(NewSegment("Text", "x", 0))
	_, d := folded.Normalize(NewSegment("text", "x", 0))
	assert.Equal(t, c, d)
}

// TestNormalize_Metadata verifies derived fields and defaults.
func TestNormalize_Metadata(t *testing.T) {
	n := NewNormalizer()
	n.EmbeddingModel = "text-embedding-3-small"
	n.EmbeddingModelVersion = "1"

	seg := NewSegment("Vector databases store vectors. Vector search is fast.", "/x/guide.pdf", 2)
	seg.Metadata[KeyTitle] = "Custom Title"

	out, id := n.Normalize(seg)

	assert.Equal(t, "guide", out.Metadata[KeySource])
	assert.Equal(t, 2, out.Metadata[KeyPage])
	assert.Equal(t, "Custom Title", out.Metadata[KeyTitle])
	assert.Equal(t, "", out.Metadata[KeySection])
	assert.Equal(t, "en", out.Metadata[KeyLang])
	assert.Equal(t, "pdf", out.Metadata[KeySourceType])
	assert.Equal(t, "text-embedding-3-small", out.Metadata[KeyEmbeddingModel])
	assert.Equal(t, "1", out.Metadata[KeyEmbeddingModelVersion])
	assert.Equal(t, ContentHash(out.Content), out.Metadata[KeyContentHash])
	assert.Equal(t, id, out.Metadata[KeyDocID])

	kw := out.String(KeyKeywords)
	assert.True(t, strings.HasPrefix(kw, "vector,"), "keywords %q", kw)

	// The input is left untouched.
	assert.Equal(t, "/x/guide.pdf", seg.Metadata[KeySource])
	_, hasHash := seg.Metadata[KeyContentHash]
	assert.False(t, hasHash)
}

// TestNormalize_SourceTypeFromExtension verifies markdown sources are tagged.
func TestNormalize_SourceTypeFromExtension(t *testing.T) {
	out, _ := NewNormalizer().Normalize(NewSegment("body", "docs/readme.md", 0))
	assert.Equal(t, "md", out.Metadata[KeySourceType])
}

// TestNormalize_EmptyContent verifies empty content still produces an ID.
func TestNormalize_EmptyContent(t *testing.T) {
	out, id := NewNormalizer().Normalize(Segment{Content: ""})
	assert.Equal(t, "", out.Content)
	assert.Equal(t, CanonicalID(UnknownSource, 0, ContentHash("")), id)
}

// TestPageNumber verifies page coercion.
func TestPageNumber(t *testing.T) {
	assert.Equal(t, 4, PageNumber(4))
	assert.Equal(t, 4, PageNumber(int64(4)))
	assert.Equal(t, 4, PageNumber(4.0))
	assert.Equal(t, 4, PageNumber(" 4 "))
	assert.Equal(t, 0, PageNumber("four"))
	assert.Equal(t, 0, PageNumber(-2))
	assert.Equal(t, 0, PageNumber(nil))
}

// TestKeywords verifies ordering and filtering of keywords.
func TestKeywords(t *testing.T) {
	got := Keywords("beta alpha beta gamma the with alpha beta abc", 2)
	assert.Equal(t, []string{"beta", "alpha"}, got)
	assert.Empty(t, Keywords("", 5))
}
