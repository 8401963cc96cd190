package pipeline

import "fmt"

// Stage names the fixed pipeline stages in execution order.
type Stage string

const (
	StageCoverage    Stage = "coverage"
	StageFix         Stage = "fix"
	StageSegment     Stage = "segment"
	StageCall        Stage = "call"
	StageBreaks      Stage = "breaks"
	StageGenemetrics Stage = "genemetrics"
)

// StageError is one external invocation that failed: the subprocess returned
// non-zero, or the expected artifact was absent afterwards. For coverage, fix
// and segment it aborts the sample; for call, breaks and genemetrics it is
// logged and the sample continues.
type StageError struct {
	Sample   string
	Stage    Stage
	Artifact string // expected artifact path
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("sample %s: stage %s: %v", e.Sample, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
