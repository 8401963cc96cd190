package reference

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"
	yaml "gopkg.in/yaml.v3"

	"cnvpilot/internal/logging"
)

// InclusionMap selects, per sample, the chromosomes judged diploid by visual
// inspection of a flat-reference run. Data from a sample contributes to a bin
// only when the bin's chromosome is explicitly listed for that sample.
type InclusionMap map[string][]string

// LoadInclusionMap reads the sample→chromosomes map from a YAML file.
func LoadInclusionMap(path string) (InclusionMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inclusion map: %w", err)
	}
	var m InclusionMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse inclusion map: %w", err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("inclusion map %s: no samples", path)
	}
	return m, nil
}

// SampleIDs returns the mapped sample identifiers in sorted order.
func (m InclusionMap) SampleIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Builder constructs a curated flat reference from per-sample coverage files:
// masked per-bin statistics over the included chromosomes, with a flat
// fallback for bins no sample covers.
type Builder struct {
	Dir string // directory holding coverage files, per-sample subdirs or flat
	Map InclusionMap

	log *slog.Logger
}

func NewBuilder(dir string, m InclusionMap) *Builder {
	return &Builder{Dir: dir, Map: m, log: logging.New("reference")}
}

// LocateCoverage finds a sample's coverage file of the given kind
// ("targetcoverage" or "antitargetcoverage"): first in the sample's
// subdirectory, then flat in Dir. Empty means not found.
func (b *Builder) LocateCoverage(sampleID, kind string) string {
	name := fmt.Sprintf("%s.%s.cnn", sampleID, kind)
	sub := filepath.Join(b.Dir, sampleID, name)
	if _, err := os.Stat(sub); err == nil {
		return sub
	}
	flat := filepath.Join(b.Dir, name)
	if _, err := os.Stat(flat); err == nil {
		return flat
	}
	return ""
}

// Build assembles the curated reference: target and antitarget matrices are
// reduced independently, merged, and sorted by genomic coordinate.
func (b *Builder) Build() (*Table, error) {
	targets, err := b.buildMatrix("targetcoverage")
	if err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	antitargets, err := b.buildMatrix("antitargetcoverage")
	if err != nil {
		return nil, fmt.Errorf("antitargets: %w", err)
	}
	if err := targets.Append(antitargets); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := targets.SortGenomic(); err != nil {
		return nil, err
	}
	return targets, nil
}

// buildMatrix loads every located coverage file of one kind, validates bin
// compatibility against the first sample's table, and reduces per-bin
// statistics across the samples whose inclusion list covers the bin.
func (b *Builder) buildMatrix(kind string) (*Table, error) {
	ids := b.Map.SampleIDs()

	var found []string
	files := map[string]string{}
	for _, id := range ids {
		if path := b.LocateCoverage(id, kind); path != "" {
			files[id] = path
			found = append(found, id)
		} else {
			b.log.Warn("coverage file not found", "sample", id, "kind", kind)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no %s files found under %s", kind, b.Dir)
	}

	// The first sample's table is the template: its bins define the grid and
	// its pass-through columns (gene, gc, ...) survive into the reference.
	template, err := ReadTable(files[found[0]])
	if err != nil {
		return nil, err
	}
	nBins := len(template.Rows)
	b.log.Info("building matrix", "kind", kind, "bins", nBins, "samples", len(found))

	chromIdx, ok := template.ColumnIndex("chromosome")
	if !ok {
		return nil, fmt.Errorf("%s: no chromosome column", files[found[0]])
	}
	chroms := make([]string, nBins)
	for i, row := range template.Rows {
		chroms[i] = NormalizeChrom(row[chromIdx])
	}

	// log2 and depth per sample, NaN where the bin's chromosome is not in the
	// sample's inclusion list.
	matLog2 := make([][]float64, 0, len(found))
	matDepth := make([][]float64, 0, len(found))
	for _, id := range found {
		cur, err := ReadTable(files[id])
		if err != nil {
			b.log.Error("skipping sample", "sample", id, "error", err)
			continue
		}
		if err := validateCompatibility(template, cur, id); err != nil {
			b.log.Error("skipping incompatible sample", "sample", id, "error", err)
			continue
		}

		allowed := map[string]bool{}
		for _, c := range b.Map[id] {
			allowed[NormalizeChrom(c)] = true
		}
		if len(allowed) == 0 {
			b.log.Warn("sample has no allowed chromosomes, skipping", "sample", id)
			continue
		}

		log2s, err := cur.Floats("log2")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", files[id], err)
		}
		depths, err := cur.Floats("depth")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", files[id], err)
		}
		for i := range log2s {
			if !allowed[chroms[i]] {
				log2s[i] = math.NaN()
				depths[i] = math.NaN()
			}
		}
		matLog2 = append(matLog2, log2s)
		matDepth = append(matDepth, depths)
	}
	if len(matLog2) == 0 {
		return nil, fmt.Errorf("no valid %s samples processed", kind)
	}

	refLog2 := make([]float64, nBins)
	refDepth := make([]float64, nBins)
	refSpread := make([]float64, nBins)
	for i := 0; i < nBins; i++ {
		var log2s, depths []float64
		for s := range matLog2 {
			if !math.IsNaN(matLog2[s][i]) {
				log2s = append(log2s, matLog2[s][i])
			}
			if !math.IsNaN(matDepth[s][i]) {
				depths = append(depths, matDepth[s][i])
			}
		}
		if len(log2s) == 0 {
			refLog2[i] = math.NaN()
			refSpread[i] = math.NaN()
		} else {
			refLog2[i] = stat.Mean(log2s, nil)
			refSpread[i] = math.Sqrt(stat.PopVariance(log2s, nil))
		}
		if len(depths) == 0 {
			refDepth[i] = math.NaN()
		} else {
			refDepth[i] = stat.Mean(depths, nil)
		}
	}

	applyFlatFallback(refLog2, refDepth, refSpread, b.log)

	weights := make([]float64, nBins)
	for i, s := range refSpread {
		clipped := math.Max(s, 1e-4)
		weights[i] = 1.0 / (clipped * clipped)
	}

	out := &Table{Columns: append([]string(nil), template.Columns...)}
	for _, row := range template.Rows {
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}
	if err := out.SetFloats("log2", refLog2); err != nil {
		return nil, err
	}
	if err := out.SetFloats("depth", refDepth); err != nil {
		return nil, err
	}
	if err := out.SetFloats("spread", refSpread); err != nil {
		return nil, err
	}
	if err := out.SetFloats("weight", weights); err != nil {
		return nil, err
	}
	return out, nil
}

// validateCompatibility rejects coverage files from a different target kit:
// bin count plus first/last coordinate must match the template exactly.
func validateCompatibility(template, cur *Table, sampleID string) error {
	if len(template.Rows) != len(cur.Rows) {
		return fmt.Errorf("bin count mismatch: template has %d, %s has %d",
			len(template.Rows), sampleID, len(cur.Rows))
	}
	if len(template.Rows) == 0 {
		return nil
	}
	startIdx, ok := cur.ColumnIndex("start")
	if !ok {
		return fmt.Errorf("%s: no start column", sampleID)
	}
	endIdx, ok := cur.ColumnIndex("end")
	if !ok {
		return fmt.Errorf("%s: no end column", sampleID)
	}
	tStart, _ := template.ColumnIndex("start")
	tEnd, _ := template.ColumnIndex("end")
	last := len(template.Rows) - 1
	if template.Rows[0][tStart] != cur.Rows[0][startIdx] ||
		template.Rows[last][tEnd] != cur.Rows[last][endIdx] {
		return fmt.Errorf("coordinate mismatch in %s: input files must define identical bins", sampleID)
	}
	return nil
}

// applyFlatFallback neutralizes bins where every sample was masked: log2
// becomes 0 (flat), depth and spread fall back to their global means so
// segmentation weighting stays sane.
func applyFlatFallback(log2s, depths, spreads []float64, log *slog.Logger) {
	nFallback := 0
	for _, v := range log2s {
		if math.IsNaN(v) {
			nFallback++
		}
	}
	if nFallback > 0 {
		log.Warn("flat fallback triggered",
			"bins", nFallback,
			"percent", fmt.Sprintf("%.2f", float64(nFallback)/float64(len(log2s))*100))
	}

	meanDepth := nanMean(depths)
	if math.IsNaN(meanDepth) {
		meanDepth = 1.0
	}
	meanSpread := nanMean(spreads)
	if math.IsNaN(meanSpread) {
		meanSpread = 0.1
	}

	for i := range log2s {
		if math.IsNaN(log2s[i]) {
			log2s[i] = 0.0
		}
		if math.IsNaN(depths[i]) {
			depths[i] = meanDepth
		}
		if math.IsNaN(spreads[i]) {
			spreads[i] = meanSpread
		}
	}
}

func nanMean(vals []float64) float64 {
	var sum float64
	n := 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
