// Package reference builds and validates curated copy-number reference files
// (.cnn) for tumor-only cohorts where no matched normals exist.
package reference

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Table is a tab-separated .cnn file held in memory: a header and raw string
// rows. Only the columns the builder needs are interpreted numerically; all
// others (gene, gc, rmask, ...) pass through untouched.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ReadTable loads a tab-separated file with a header line.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return nil, fmt.Errorf("%s: empty file", path)
	}
	t := &Table{Columns: strings.Split(sc.Text(), "\t")}

	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != len(t.Columns) {
			return nil, fmt.Errorf("%s: row %d has %d fields, header has %d",
				path, len(t.Rows)+2, len(fields), len(t.Columns))
		}
		t.Rows = append(t.Rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Write stores the table as a tab-separated file with a header line.
func (t *Table) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Floats parses a named column as float64. Unparseable fields become NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, nil
}

// SetFloats replaces (or appends) a numeric column.
func (t *Table) SetFloats(name string, values []float64) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q: %d values for %d rows", name, len(values), len(t.Rows))
	}
	idx, ok := t.ColumnIndex(name)
	if !ok {
		t.Columns = append(t.Columns, name)
		idx = len(t.Columns) - 1
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], "")
		}
	}
	for i := range t.Rows {
		t.Rows[i][idx] = strconv.FormatFloat(values[i], 'g', 6, 64)
	}
	return nil
}

// Append adds another table's rows. Column sets must match.
func (t *Table) Append(other *Table) error {
	if len(other.Columns) != len(t.Columns) {
		return fmt.Errorf("column count mismatch: %d vs %d", len(t.Columns), len(other.Columns))
	}
	for i := range t.Columns {
		if t.Columns[i] != other.Columns[i] {
			return fmt.Errorf("column mismatch at %d: %q vs %q", i, t.Columns[i], other.Columns[i])
		}
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}

// SortGenomic orders rows by chromosome (natural order: chr1 < chr2 < chr10
// < chrX < chrY) and start position.
func (t *Table) SortGenomic() error {
	chromIdx, ok := t.ColumnIndex("chromosome")
	if !ok {
		return fmt.Errorf("column %q not found", "chromosome")
	}
	startIdx, ok := t.ColumnIndex("start")
	if !ok {
		return fmt.Errorf("column %q not found", "start")
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		ci, cj := chromRank(t.Rows[i][chromIdx]), chromRank(t.Rows[j][chromIdx])
		if ci != cj {
			return ci < cj
		}
		si, _ := strconv.Atoi(t.Rows[i][startIdx])
		sj, _ := strconv.Atoi(t.Rows[j][startIdx])
		return si < sj
	})
	return nil
}

// NormalizeChrom ensures a consistent "chr" prefix for comparisons.
func NormalizeChrom(name string) string {
	if strings.HasPrefix(name, "chr") {
		return name
	}
	return "chr" + name
}

func chromRank(name string) int {
	s := strings.TrimPrefix(NormalizeChrom(name), "chr")
	switch s {
	case "X":
		return 100
	case "Y":
		return 101
	case "M", "MT":
		return 102
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return 200
}
