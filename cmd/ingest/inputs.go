package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// expandInputs resolves glob arguments and the PDFs of dataDir into a list
// of paths without repeats. Plain arguments are kept as given so missing
// files are reported by the pipeline.
func expandInputs(args []string, dataDir string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", arg, err)
		}
		for _, m := range matches {
			add(m)
		}
	}

	if dataDir != "" {
		matches, err := doublestar.FilepathGlob(filepath.Join(dataDir, "*.{pdf,PDF}"))
		if err != nil {
			return nil, fmt.Errorf("scanning data dir %s: %w", dataDir, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}
