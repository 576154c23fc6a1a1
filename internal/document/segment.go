package document

import (
	"strconv"
	"strings"
)

// Metadata keys carried on every stored segment.
const (
	KeySource                = "source"
	KeyPage                  = "page"
	KeySection               = "section"
	KeyTitle                 = "title"
	KeyLang                  = "lang"
	KeySourceType            = "source_type"
	KeyEmbeddingModel        = "embedding_model"
	KeyEmbeddingModelVersion = "embedding_model_version"
	KeyContentHash           = "content_hash"
	KeyKeywords              = "keywords"
	KeyDocID                 = "doc_id"
)

// UnknownSource is used when a segment arrives without a source.
const UnknownSource = "unknown"

// Segment is a unit of ingestible text together with its metadata.
type Segment struct {
	Content  string
	Metadata map[string]any
}

// NewSegment builds a segment for the given source and page.
func NewSegment(content, source string, page int) Segment {
	return Segment{
		Content: content,
		Metadata: map[string]any{
			KeySource: source,
			KeyPage:   page,
		},
	}
}

// Clone returns a copy whose metadata map can be modified independently.
func (s Segment) Clone() Segment {
	meta := make(map[string]any, len(s.Metadata)+8)
	for k, v := range s.Metadata {
		meta[k] = v
	}
	return Segment{Content: s.Content, Metadata: meta}
}

// String returns the metadata value for key rendered as a string.
// Missing keys return "".
func (s Segment) String(key string) string {
	v, ok := s.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return strings.Join(t, ",")
	default:
		return ""
	}
}

// Page returns the page number, defaulting to 0.
func (s Segment) Page() int {
	return PageNumber(s.Metadata[KeyPage])
}

// PageNumber coerces a page value into a non-negative int.
func PageNumber(v any) int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int32:
		n = int(t)
	case int64:
		n = int(t)
	case uint64:
		n = int(t)
	case float64:
		n = int(t)
	case float32:
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}

// StringMetadata flattens metadata into string values for backends that only
// accept string maps.
func (s Segment) StringMetadata() map[string]string {
	out := make(map[string]string, len(s.Metadata))
	for k := range s.Metadata {
		out[k] = s.String(k)
	}
	return out
}
