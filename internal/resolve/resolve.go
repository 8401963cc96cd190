// Package resolve associates a sample with its variant file (VCF). Absence is
// a normal outcome: tumor-only samples often have no matched variant calls.
package resolve

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver finds the auxiliary variant file for a sample identifier.
// An empty path with a nil error means "no variant file" and is not a failure.
type Resolver interface {
	Resolve(sampleID string) (string, error)
}

// None is the no-op resolver used when no variant source is configured.
type None struct{}

func (None) Resolve(string) (string, error) { return "", nil }

// Search resolves by recursive filename search: the first path-sorted file
// under Dir whose name starts with the sample identifier and ends with
// Suffix + ".gz", falling back to the uncompressed Suffix if no compressed
// match exists.
type Search struct {
	Dir    string
	Suffix string // default ".hard-filtered.vcf"
}

func (s *Search) suffix() string {
	if s.Suffix != "" {
		return s.Suffix
	}
	return ".hard-filtered.vcf"
}

func (s *Search) Resolve(sampleID string) (string, error) {
	var compressed, plain []string
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, sampleID) {
			return nil
		}
		switch {
		case strings.HasSuffix(name, s.suffix()+".gz"):
			compressed = append(compressed, path)
		case strings.HasSuffix(name, s.suffix()):
			plain = append(plain, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search vcf dir %s: %w", s.Dir, err)
	}

	sort.Strings(compressed)
	sort.Strings(plain)
	if len(compressed) > 0 {
		return compressed[0], nil
	}
	if len(plain) > 0 {
		return plain[0], nil
	}
	return "", nil
}

// List resolves against a precomputed lookup file: one candidate path per
// line, first line containing the sample identifier as a substring wins.
//
// Substring matching is the documented contract: an identifier that is a
// prefix of another sample's identifier can resolve to that sample's file.
// Callers who need exact matching should plug in a different Resolver.
type List struct {
	lines []string
}

// LoadList reads the lookup file. Blank lines and surrounding whitespace are
// ignored; line order is preserved.
func LoadList(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf list: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vcf list: %w", err)
	}
	return &List{lines: lines}, nil
}

// NewList builds a lookup resolver from in-memory lines (used in tests).
func NewList(lines []string) *List {
	return &List{lines: lines}
}

func (l *List) Resolve(sampleID string) (string, error) {
	for _, line := range l.lines {
		if strings.Contains(line, sampleID) {
			return line, nil
		}
	}
	return "", nil
}
