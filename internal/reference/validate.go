package reference

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RequiredColumns are the reference columns CNVkit's segmentation and calling
// steps consume.
var RequiredColumns = []string{"chromosome", "start", "end", "log2", "depth", "spread", "weight"}

// Check is one validation result. Critical checks decide the overall verdict;
// the rest are advisory (flagged but not failing).
type Check struct {
	Name     string
	Passed   bool
	Message  string
	Critical bool
}

// Report is the outcome of validating one reference file.
type Report struct {
	Checks []Check
}

// OK reports whether every critical check passed.
func (r *Report) OK() bool {
	for _, c := range r.Checks {
		if c.Critical && !c.Passed {
			return false
		}
	}
	return true
}

// Summary renders the check table the way the validator prints it.
func (r *Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-30s | %-10s\n", "CHECK NAME", "STATUS")
	sb.WriteString(strings.Repeat("-", 45) + "\n")
	for _, c := range r.Checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&sb, "%-30s | %-10s %s\n", c.Name, status, c.Message)
	}
	return sb.String()
}

// Validate runs structural and logical checks on a .cnn reference file.
func Validate(path string) (*Report, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	return validateTable(t), nil
}

func validateTable(t *Table) *Report {
	r := &Report{}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := t.ColumnIndex(col); !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		r.Checks = append(r.Checks, Check{
			Name:     "Column Structure",
			Message:  fmt.Sprintf("missing: %v", missing),
			Critical: true,
		})
		// Remaining checks need the columns; stop here.
		return r
	}
	r.Checks = append(r.Checks, Check{
		Name: "Column Structure", Passed: true,
		Message: "all required columns present", Critical: true,
	})

	numeric := map[string][]float64{}
	for _, col := range []string{"log2", "depth", "spread", "weight"} {
		vals, _ := t.Floats(col)
		numeric[col] = vals
	}

	nans, infs := 0, 0
	for _, vals := range numeric {
		for _, v := range vals {
			if math.IsNaN(v) {
				nans++
			}
			if math.IsInf(v, 0) {
				infs++
			}
		}
	}
	r.Checks = append(r.Checks,
		check("NaN Check", nans == 0, countMsg(nans, "NaN values"), true),
		check("Inf Check", infs == 0, countMsg(infs, "infinite values"), true))

	startIdx, _ := t.ColumnIndex("start")
	endIdx, _ := t.ColumnIndex("end")
	badOrder, negative := 0, 0
	for _, row := range t.Rows {
		start, serr := strconv.Atoi(row[startIdx])
		end, eerr := strconv.Atoi(row[endIdx])
		if serr != nil || eerr != nil || start >= end {
			badOrder++
		}
		if start < 0 || end < 0 {
			negative++
		}
	}
	r.Checks = append(r.Checks,
		check("Coordinates", badOrder == 0, countMsg(badOrder, "bins with start >= end"), true),
		check("Positivity", negative == 0, countMsg(negative, "bins with negative coords"), true))

	zeroDepth := 0
	for _, v := range numeric["depth"] {
		if v <= 0 {
			zeroDepth++
		}
	}
	// Zero depth is possible but suspicious for a reference; advisory only.
	r.Checks = append(r.Checks,
		check("Depth Validity", zeroDepth == 0, countMsg(zeroDepth, "bins with <= 0 depth"), false))

	lowSpread := 0
	for _, v := range numeric["spread"] {
		if v < 1e-5 {
			lowSpread++
		}
	}
	r.Checks = append(r.Checks,
		check("Spread Validity", lowSpread == 0, countMsg(lowSpread, "bins with near-zero spread"), true))

	// A curated flat reference is expected to carry fallback bins at exactly
	// log2 = 0.
	flat := 0
	for _, v := range numeric["log2"] {
		if v == 0.0 {
			flat++
		}
	}
	pct := 0.0
	if len(t.Rows) > 0 {
		pct = float64(flat) / float64(len(t.Rows)) * 100
	}
	r.Checks = append(r.Checks, check("Fallback Logic", flat > 0,
		fmt.Sprintf("%d bins (%.2f%%) are exactly 0.0", flat, pct), true))

	return r
}

func check(name string, passed bool, message string, critical bool) Check {
	return Check{Name: name, Passed: passed, Message: message, Critical: critical}
}

func countMsg(n int, what string) string {
	if n == 0 {
		return "none detected"
	}
	return fmt.Sprintf("found %d %s", n, what)
}
