package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const stateFilename = "state.json"

// Terminal states for one sample's run.
const (
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusSkippedDownstream = "skipped-downstream"
)

// StageRecord is one entry in a sample's run history.
type StageRecord struct {
	Stage     Stage  `json:"stage"`
	Outcome   string `json:"outcome"` // "completed", "skipped", "failed", "fallback"
	Timestamp string `json:"timestamp"`
}

// RunState is the persisted per-sample record. It exists for observability
// (the status command and post-run review); artifact existence on disk stays
// the sole gating signal between stages.
type RunState struct {
	Sample      string        `json:"sample"`
	Status      string        `json:"status"`
	FailedStage Stage         `json:"failed_stage,omitempty"`
	VCF         string        `json:"vcf,omitempty"`
	History     []StageRecord `json:"history,omitempty"`
}

// NewRunState starts a fresh state for a sample.
func NewRunState(sampleID string) *RunState {
	return &RunState{Sample: sampleID, Status: "running"}
}

// Record appends one stage outcome to the history.
func (s *RunState) Record(stage Stage, outcome string) {
	s.History = append(s.History, StageRecord{
		Stage:     stage,
		Outcome:   outcome,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// LoadState reads the persisted state from a sample's working directory.
// Returns nil if no state file exists.
func LoadState(dir string) (*RunState, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &state, nil
}

// SaveState persists the state to the sample's working directory.
func SaveState(dir string, state *RunState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stateFilename), raw, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
