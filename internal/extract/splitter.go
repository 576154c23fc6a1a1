package extract

import (
	"strings"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter groups lines of text into size-bounded chunks. Consecutive chunks
// share up to Overlap characters of trailing lines.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter returns a Splitter; non-positive size uses the defaults and
// overlap is clamped below size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Splitter{Size: size, Overlap: overlap}
}

// Split returns the chunks of text. Blank input yields no chunks.
func (s *Splitter) Split(text string) []string {
	var (
		chunks []string
		buf    []string
		sum    int
		fresh  bool // buf holds lines not yet emitted
	)

	for _, frag := range s.fragments(text) {
		n := runeLen(frag)
		if fresh && sum+n > s.Size {
			chunks = append(chunks, strings.Join(buf, "\n"))
			buf, sum = s.tail(buf)
			if sum+n > s.Size {
				buf, sum = nil, 0
			}
		}
		buf = append(buf, frag)
		sum += n
		fresh = true
	}

	if fresh {
		chunks = append(chunks, strings.Join(buf, "\n"))
	}
	return chunks
}

// tail returns the trailing whole lines of buf that fit within Overlap.
func (s *Splitter) tail(buf []string) ([]string, int) {
	var keep []string
	kept := 0
	for j := len(buf) - 1; j >= 0; j-- {
		n := runeLen(buf[j])
		if kept+n > s.Overlap {
			break
		}
		keep = append([]string{buf[j]}, keep...)
		kept += n
	}
	return keep, kept
}

// fragments returns the non-blank lines of text, breaking lines longer than
// Size at word boundaries.
func (s *Splitter) fragments(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runeLen(line) <= s.Size {
			out = append(out, line)
			continue
		}
		var b strings.Builder
		for _, word := range strings.Fields(line) {
			if b.Len() > 0 && runeLen(b.String())+1+runeLen(word) > s.Size {
				out = append(out, b.String())
				b.Reset()
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(word)
		}
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
