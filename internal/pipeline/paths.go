package pipeline

import (
	"os"
	"path/filepath"
)

// Paths computes every artifact location for one sample's working directory.
// CNVkit's own naming conventions are kept so artifacts from earlier manual
// runs are recognized and skipped.
type Paths struct {
	Dir string // the sample's exclusive working directory
	ID  string
}

func NewPaths(workRoot, sampleID string) Paths {
	return Paths{Dir: filepath.Join(workRoot, sampleID), ID: sampleID}
}

func (p Paths) join(suffix string) string {
	return filepath.Join(p.Dir, p.ID+suffix)
}

// Pre-existing region inputs, produced by the reference-building step.
func (p Paths) TargetBed() string     { return p.join(".target.bed") }
func (p Paths) AntitargetBed() string { return p.join(".antitarget.bed") }

// Stage artifacts.
func (p Paths) TargetCoverage() string     { return p.join(".targetcoverage.cnn") }
func (p Paths) AntitargetCoverage() string { return p.join(".antitargetcoverage.cnn") }
func (p Paths) Ratio() string              { return p.join(".cnr") }
func (p Paths) Segments() string           { return p.join(".cns") }
func (p Paths) CalledSegments() string     { return p.join(".call.cns") }
func (p Paths) Breaks() string             { return p.join(".breaks.txt") }
func (p Paths) Genemetrics() string        { return p.join(".genemetrics.txt") }

// Plot artifacts.
func (p Paths) Scatter() string { return p.join("-scatter.pdf") }
func (p Paths) Diagram() string { return p.join("-diagram.pdf") }

// Exists reports whether path is present on disk. Existence is the sole
// trust signal; no freshness or content check is performed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
