package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode"
)

// HashPrefixLen is the number of hex characters of the content hash used in
// a canonical ID.
const HashPrefixLen = 16

const maxKeywords = 10

// Normalizer canonicalizes segments and derives their identity.
type Normalizer struct {
	// LowerCase folds content to lower case before hashing.
	LowerCase bool

	Lang                  string
	SourceType            string
	EmbeddingModel        string
	EmbeddingModelVersion string
}

// NewNormalizer returns a Normalizer with the standard defaults.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		Lang:       "en",
		SourceType: "pdf",
	}
}

// Normalize returns a normalized copy of seg and its canonical ID.
// The input segment is not modified.
func (n *Normalizer) Normalize(seg Segment) (Segment, string) {
	out := seg.Clone()

	rawSource := out.String(KeySource)
	source := NormalizeSource(rawSource)
	out.Metadata[KeySource] = source

	page := PageNumber(out.Metadata[KeyPage])
	out.Metadata[KeyPage] = page

	out.Content = NormalizeContent(out.Content, n.LowerCase)
	hash := ContentHash(out.Content)
	out.Metadata[KeyContentHash] = hash

	sourceType := n.SourceType
	if ext := extension(rawSource); ext != "" {
		sourceType = ext
	}

	setDefault(out.Metadata, KeyTitle, source)
	setDefault(out.Metadata, KeySection, "")
	setDefault(out.Metadata, KeyLang, n.Lang)
	setDefault(out.Metadata, KeySourceType, sourceType)
	setDefault(out.Metadata, KeyEmbeddingModel, n.EmbeddingModel)
	setDefault(out.Metadata, KeyEmbeddingModelVersion, n.EmbeddingModelVersion)
	if _, ok := out.Metadata[KeyKeywords]; !ok {
		out.Metadata[KeyKeywords] = strings.Join(Keywords(out.Content, maxKeywords), ",")
	}

	id := CanonicalID(source, page, hash)
	out.Metadata[KeyDocID] = id
	return out, id
}

func setDefault(meta map[string]any, key string, value string) {
	if _, ok := meta[key]; ok {
		return
	}
	meta[key] = value
}

// NormalizeSource reduces a path-like source to its file name stem.
func NormalizeSource(source string) string {
	s := strings.TrimSpace(source)
	if s == "" {
		return UnknownSource
	}
	s = strings.ReplaceAll(s, "\\", "/")
	s = strings.TrimRight(s, "/")
	if s == "" {
		return UnknownSource
	}
	base := path.Base(s)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		return UnknownSource
	}
	return base
}

func extension(source string) string {
	s := strings.ReplaceAll(strings.TrimSpace(source), "\\", "/")
	ext := path.Ext(path.Base(s))
	if ext == "" || ext == path.Base(s) {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeContent collapses whitespace runs to a single space, drops
// control characters such as form feeds and trims the result.
func NormalizeContent(content string, lower bool) string {
	var b strings.Builder
	b.Grow(len(content))
	pendingSpace := false
	for _, r := range content {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		if lower {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CanonicalID formats the dedup key for a segment.
func CanonicalID(source string, page int, hash string) string {
	if len(hash) > HashPrefixLen {
		hash = hash[:HashPrefixLen]
	}
	return fmt.Sprintf("%s:%d:%s", source, page, hash)
}

// Keywords returns up to limit frequent terms of content, most frequent first.
func Keywords(content string, limit int) []string {
	counts := make(map[string]int)
	for _, tok := range strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(tok)) < 4 || stopWords[tok] {
			continue
		}
		counts[tok]++
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

var stopWords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "also": true,
	"been": true, "before": true, "being": true, "below": true, "between": true,
	"both": true, "could": true, "does": true, "doing": true, "down": true,
	"during": true, "each": true, "from": true, "further": true, "have": true,
	"having": true, "here": true, "into": true, "more": true, "most": true,
	"only": true, "other": true, "over": true, "same": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "under": true, "until": true,
	"very": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "will": true, "with": true, "would": true,
	"your": true,
}
