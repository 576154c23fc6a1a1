package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/bull/pdf-ingest/internal/document"
)

// Section is a slice of a markdown document between H1/H2 headings.
type Section struct {
	Index      int
	HeaderPath string // "# Guide > ## Install"
	Body       string
}

// MarkdownExtractor splits markdown at H1 and H2 boundaries. Each section
// becomes one or more segments whose section metadata is the header path and
// whose page is the section index.
type MarkdownExtractor struct {
	parser   goldmark.Markdown
	splitter *Splitter
}

func NewMarkdownExtractor(splitter *Splitter) *MarkdownExtractor {
	if splitter == nil {
		splitter = NewSplitter(0, DefaultChunkOverlap)
	}
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &MarkdownExtractor{parser: md, splitter: splitter}
}

func (e *MarkdownExtractor) Extract(ctx context.Context, path string) ([]document.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	sections, err := e.Sections(source)
	if err != nil {
		return nil, fmt.Errorf("split markdown %s: %w", path, err)
	}

	var segs []document.Segment
	for _, sec := range sections {
		for _, chunk := range e.splitter.Split(sec.Body) {
			content := chunk
			if sec.HeaderPath != "" {
				content = sec.HeaderPath + "\n\n" + chunk
			}
			seg := document.NewSegment(content, path, sec.Index)
			seg.Metadata[document.KeySection] = sec.HeaderPath
			segs = append(segs, seg)
		}
	}
	return segs, nil
}

// Sections splits source at H1 and H2 headings. Text before the first heading
// forms a section with an empty header path. Sections do not overlap.
func (e *MarkdownExtractor) Sections(source []byte) ([]Section, error) {
	doc := e.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	paths := make(map[string]string)
	collectPaths(tree.Items, nil, paths)

	headings := collectHeadings(doc, 2)

	var sections []Section
	add := func(path string, body []byte) {
		b := strings.TrimSpace(string(body))
		if b == "" {
			return
		}
		sections = append(sections, Section{Index: len(sections), HeaderPath: path, Body: b})
	}

	if len(headings) == 0 {
		add("", source)
		return sections, nil
	}

	add("", source[:lineStart(source, headingStart(headings[0]))])

	for i, h := range headings {
		start := headingStart(h)
		end := len(source)
		if i+1 < len(headings) {
			end = lineStart(source, headingStart(headings[i+1]))
		}
		path := ""
		if id, ok := h.AttributeString("id"); ok {
			path = paths[string(id.([]byte))]
		}
		add(path, source[start:end])
	}
	return sections, nil
}

// collectPaths maps heading IDs to their header paths.
func collectPaths(items toc.Items, ancestors []string, out map[string]string) {
	for _, item := range items {
		current := append(append([]string(nil), ancestors...), string(item.Title))
		if len(item.ID) > 0 {
			out[string(item.ID)] = formatHeaderPath(current)
		}
		collectPaths(item.Items, current, out)
	}
}

// collectHeadings returns headings up to maxLevel in document order.
func collectHeadings(root ast.Node, maxLevel int) []*ast.Heading {
	var out []*ast.Heading
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			if h.Level <= maxLevel && h.Lines().Len() > 0 {
				out = append(out, h)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

func headingStart(h *ast.Heading) int {
	return h.Lines().At(0).Start
}

// lineStart returns the offset of the line containing pos.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	parts := make([]string, 0, len(path))
	for i, title := range path {
		parts = append(parts, strings.Repeat("#", i+1)+" "+title)
	}
	return strings.Join(parts, " > ")
}
