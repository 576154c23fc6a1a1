package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitter_ShortText verifies text under the size limit stays whole.
func TestSplitter_ShortText(t *testing.T) {
	s := NewSplitter(100, 20)
	assert.Equal(t, []string{"line one\nline two"}, s.Split("line one\n\n  line two  \n"))
	assert.Empty(t, s.Split(" \n\t\n"))
}

// TestSplitter_Overlap verifies chunks respect the size and share trailing lines.
func TestSplitter_Overlap(t *testing.T) {
	s := NewSplitter(20, 10)
	lines := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc", "dddddddd"}

	chunks := s.Split(strings.Join(lines, "\n"))

	require.Equal(t, []string{
		"aaaaaaaa\nbbbbbbbb",
		"bbbbbbbb\ncccccccc",
		"cccccccc\ndddddddd",
	}, chunks)
}

// TestSplitter_LongLine verifies oversize lines are broken at word boundaries.
func TestSplitter_LongLine(t *testing.T) {
	s := NewSplitter(10, 0)
	chunks := s.Split("alpha beta gamma delta")

	assert.Equal(t, []string{"alpha beta", "gamma\ndelta"}, chunks)
}

// TestNewSplitter_Defaults verifies bad parameters are corrected.
func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(0, -1)
	assert.Equal(t, DefaultChunkSize, s.Size)
	assert.Equal(t, 0, s.Overlap)

	s = NewSplitter(100, 100)
	assert.Equal(t, 20, s.Overlap)
}
