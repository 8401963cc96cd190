package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cnvpilot/internal/cnvkit"
	"cnvpilot/internal/discover"
	"cnvpilot/internal/resolve"
)

// fakeInvoker simulates cnvkit.py: on success it creates the file named by
// the -o argument, on failure it returns a non-zero-exit error.
type fakeInvoker struct {
	calls    [][]string
	failN    map[string]int                     // subcommand -> remaining failures
	failWhen func(sub string, args []string) bool // optional per-call predicate
	noOutput map[string]bool                    // exit zero but write nothing
}

func (f *fakeInvoker) Run(_ context.Context, _ string, args ...string) error {
	f.calls = append(f.calls, args)
	sub := args[0]
	if f.failWhen != nil && f.failWhen(sub, args) {
		return errors.New(sub + ": exit status 1")
	}
	if f.failN[sub] > 0 {
		f.failN[sub]--
		return errors.New(sub + ": exit status 1")
	}
	if f.noOutput[sub] {
		return nil
	}
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			if err := os.WriteFile(args[i+1], []byte(sub), 0644); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fakeInvoker) subcommands() []string {
	var subs []string
	for _, c := range f.calls {
		subs = append(subs, c[0])
	}
	return subs
}

type fixture struct {
	inv      *fakeInvoker
	runner   *Runner
	workRoot string
	sample   discover.Sample
}

// newFixture lays out one sample with pre-existing region files, the way the
// reference-building step leaves them.
func newFixture(t *testing.T, id string, resolver resolve.Resolver) *fixture {
	t.Helper()
	root := t.TempDir()
	bamDir := filepath.Join(root, "bams")
	workRoot := filepath.Join(root, "work")
	bam := filepath.Join(bamDir, id+".bam")
	writeFile(t, bam, "bam")

	p := NewPaths(workRoot, id)
	writeFile(t, p.TargetBed(), "bed")
	writeFile(t, p.AntitargetBed(), "bed")

	ref := filepath.Join(root, "reference.cnn")
	writeFile(t, ref, "ref")

	inv := &fakeInvoker{failN: map[string]int{}, noOutput: map[string]bool{}}
	tool := cnvkit.New("cnvkit.py", 4, inv)
	if resolver == nil {
		resolver = resolve.None{}
	}
	return &fixture{
		inv:      inv,
		runner:   NewRunner(tool, ref, resolver, workRoot),
		workRoot: workRoot,
		sample:   discover.Sample{ID: id, Bam: bam},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunSample_FullSequence(t *testing.T) {
	fx := newFixture(t, "PT15-t", resolve.NewList([]string{"/vcfs/PT15-t.hard-filtered.vcf.gz"}))

	state, err := fx.runner.RunSample(context.Background(), fx.sample)
	if err != nil {
		t.Fatalf("RunSample: %v", err)
	}
	if state.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", state.Status, StatusCompleted)
	}

	want := []string{"coverage", "coverage", "fix", "segment", "call", "breaks", "genemetrics"}
	if diff := cmp.Diff(want, fx.inv.subcommands()); diff != "" {
		t.Errorf("invocation order (-want +got):\n%s", diff)
	}

	// The resolved VCF feeds the call stage.
	var callArgs []string
	for _, c := range fx.inv.calls {
		if c[0] == "call" {
			callArgs = c
		}
	}
	if !contains(callArgs, "-v") || !contains(callArgs, "/vcfs/PT15-t.hard-filtered.vcf.gz") {
		t.Errorf("call should be variant-assisted, got %v", callArgs)
	}
	if state.VCF == "" {
		t.Error("state should record the resolved VCF")
	}

	// Persisted state is readable back.
	loaded, err := LoadState(NewPaths(fx.workRoot, "PT15-t").Dir)
	if err != nil || loaded == nil {
		t.Fatalf("LoadState: %v, %v", loaded, err)
	}
	if loaded.Status != StatusCompleted {
		t.Errorf("persisted status = %s", loaded.Status)
	}
}

func TestRunSample_BasicCallWithoutVariants(t *testing.T) {
	fx := newFixture(t, "PT20-t", resolve.None{})

	if _, err := fx.runner.RunSample(context.Background(), fx.sample); err != nil {
		t.Fatalf("RunSample: %v", err)
	}
	for _, c := range fx.inv.calls {
		if c[0] == "call" && contains(c, "-v") {
			t.Errorf("call should not carry -v without a resolved VCF: %v", c)
		}
	}
}

func TestRunSample_IdempotentRerun(t *testing.T) {
	fx := newFixture(t, "PT15-t", nil)

	if _, err := fx.runner.RunSample(context.Background(), fx.sample); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := len(fx.inv.calls)
	if first == 0 {
		t.Fatal("first run should invoke the tool")
	}

	state, err := fx.runner.RunSample(context.Background(), fx.sample)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := len(fx.inv.calls) - first; got != 0 {
		t.Errorf("re-run with all artifacts present performed %d invocations, want 0", got)
	}
	if state.Status != StatusCompleted {
		t.Errorf("status = %s", state.Status)
	}
	for _, rec := range state.History {
		if rec.Outcome != "skipped" {
			t.Errorf("stage %s outcome = %s, want skipped", rec.Stage, rec.Outcome)
		}
	}
}

func TestRunSample_FixFallbackOnce(t *testing.T) {
	fx := newFixture(t, "PT32-t", nil)
	fx.inv.failN["fix"] = 1

	state, err := fx.runner.RunSample(context.Background(), fx.sample)
	if err != nil {
		t.Fatalf("RunSample: %v", err)
	}
	if state.Status != StatusCompleted {
		t.Errorf("status = %s", state.Status)
	}

	var fixes [][]string
	for _, c := range fx.inv.calls {
		if c[0] == "fix" {
			fixes = append(fixes, c)
		}
	}
	if len(fixes) != 2 {
		t.Fatalf("fix invoked %d times, want 2 (primary + one fallback)", len(fixes))
	}
	if contains(fixes[0], "--no-gc") {
		t.Error("primary fix attempt must use default bias correction")
	}
	if !contains(fixes[1], "--no-gc") || !contains(fixes[1], "--no-edge") {
		t.Errorf("fallback must disable bias correction: %v", fixes[1])
	}
}

func TestRunSample_FixFallbackExhausted(t *testing.T) {
	fx := newFixture(t, "PT32-t", nil)
	fx.inv.failN["fix"] = 2

	state, err := fx.runner.RunSample(context.Background(), fx.sample)
	if err == nil {
		t.Fatal("expected stage failure")
	}
	var serr *StageError
	if !errors.As(err, &serr) || serr.Stage != StageFix {
		t.Errorf("expected fix StageError, got %v", err)
	}
	if state.Status != StatusFailed || state.FailedStage != StageFix {
		t.Errorf("state = %s/%s", state.Status, state.FailedStage)
	}

	fixCount := 0
	for _, sub := range fx.inv.subcommands() {
		switch sub {
		case "fix":
			fixCount++
		case "segment", "call", "breaks", "genemetrics":
			t.Errorf("downstream stage %s must not run after fix failure", sub)
		}
	}
	if fixCount != 2 {
		t.Errorf("fix invoked %d times, want exactly 2", fixCount)
	}
}

func TestRunSample_CallFailureDegradesGracefully(t *testing.T) {
	fx := newFixture(t, "PT61-t", nil)
	fx.inv.failN["call"] = 1

	state, err := fx.runner.RunSample(context.Background(), fx.sample)
	if err != nil {
		t.Fatalf("call failure must not fail the sample: %v", err)
	}
	if state.Status != StatusSkippedDownstream {
		t.Errorf("status = %s, want %s", state.Status, StatusSkippedDownstream)
	}
	for _, sub := range fx.inv.subcommands() {
		if sub == "breaks" || sub == "genemetrics" {
			t.Errorf("%s must be skipped when the called-segment artifact is absent", sub)
		}
	}
}

func TestRunSample_ArtifactMissingAfterExitZero(t *testing.T) {
	fx := newFixture(t, "PT61-t", nil)
	fx.inv.noOutput["segment"] = true

	_, err := fx.runner.RunSample(context.Background(), fx.sample)
	var serr *StageError
	if !errors.As(err, &serr) || serr.Stage != StageSegment {
		t.Fatalf("expected segment StageError for missing artifact, got %v", err)
	}
	if !strings.Contains(serr.Err.Error(), "artifact missing") {
		t.Errorf("error should name the missing artifact: %v", serr.Err)
	}
}

func TestRunSample_MetricsSubStepsIndependent(t *testing.T) {
	fx := newFixture(t, "PTJ50-t", nil)
	fx.inv.failN["breaks"] = 1

	state, err := fx.runner.RunSample(context.Background(), fx.sample)
	if err != nil {
		t.Fatalf("breaks failure must not fail the sample: %v", err)
	}
	if state.Status != StatusCompleted {
		t.Errorf("status = %s", state.Status)
	}
	if !contains(fx.inv.subcommands(), "genemetrics") {
		t.Error("genemetrics must still run after a breaks failure")
	}
}

func TestRunSample_MissingRegionFiles(t *testing.T) {
	fx := newFixture(t, "PT15-t", nil)
	p := NewPaths(fx.workRoot, "PT15-t")
	if err := os.Remove(p.TargetBed()); err != nil {
		t.Fatal(err)
	}

	_, err := fx.runner.RunSample(context.Background(), fx.sample)
	var serr *StageError
	if !errors.As(err, &serr) || serr.Stage != StageCoverage {
		t.Fatalf("expected coverage StageError, got %v", err)
	}
	if len(fx.inv.calls) != 0 {
		t.Errorf("no invocation expected with missing region file, got %d", len(fx.inv.calls))
	}
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
