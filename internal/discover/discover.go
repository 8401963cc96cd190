// Package discover scans a directory tree for tumor alignment files and
// derives the cohort's sample list from their names.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sample is one discovered cohort member. The identifier is the alignment
// file's base name with the .bam suffix stripped; nothing else is parsed out
// of the name.
type Sample struct {
	ID  string // e.g. "PT15-t"
	Bam string // full path to the alignment file
}

// WorkDir returns the sample's exclusive working directory under root.
func (s Sample) WorkDir(root string) string {
	return filepath.Join(root, s.ID)
}

// Samples walks root recursively and returns one Sample per alignment file
// whose base name matches pattern (a filepath.Match glob, e.g. "*-t*.bam").
// Results are sorted lexicographically by full path so processing order is
// reproducible across runs, and deduplicated by sample ID (first path wins).
// An empty result is not an error; a missing root is.
func Samples(root, pattern string) ([]Sample, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("alignment root: %w", err)
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, merr := filepath.Match(pattern, d.Name())
		if merr != nil {
			return fmt.Errorf("bam pattern %q: %w", pattern, merr)
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Strings(paths)

	seen := make(map[string]bool, len(paths))
	samples := make([]Sample, 0, len(paths))
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), ".bam")
		if seen[id] {
			continue
		}
		seen[id] = true
		samples = append(samples, Sample{ID: id, Bam: p})
	}
	return samples, nil
}
