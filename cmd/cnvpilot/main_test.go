package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.cnn")
	write(t, good, "chromosome\tstart\tend\tgene\tlog2\tdepth\tspread\tweight\n"+
		"chr1\t0\t100\tGENE1\t0.5\t200\t0.2\t25\n"+
		"chr2\t0\t100\t-\t0\t1\t0.1\t100\n")

	out, err := execute(t, "validate", good)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "All critical checks passed") {
		t.Errorf("unexpected output:\n%s", out)
	}

	bad := filepath.Join(dir, "bad.cnn")
	write(t, bad, "chromosome\tstart\tend\tgene\tlog2\tdepth\tspread\tweight\n"+
		"chr1\t0\t100\tGENE1\tNaN\t200\t0\t25\n")
	out, err = execute(t, "validate", bad)
	if err == nil {
		t.Fatalf("bad reference should fail validation:\n%s", out)
	}
}

func TestReferenceCommand(t *testing.T) {
	dir := t.TempDir()
	covHeader := "chromosome\tstart\tend\tgene\tdepth\tlog2\n"
	// Both samples allow chr1 only; the chr2 bin is masked everywhere and
	// exercises the flat fallback the validator insists on.
	write(t, filepath.Join(dir, "cov", "PTA-t", "PTA-t.targetcoverage.cnn"),
		covHeader+"chr1\t0\t100\tGENE1\t200\t0.4\nchr2\t0\t100\tGENE2\t210\t0.8\n")
	write(t, filepath.Join(dir, "cov", "PTA-t", "PTA-t.antitargetcoverage.cnn"),
		covHeader+"chr1\t200\t300\t-\t50\t0.1\n")
	write(t, filepath.Join(dir, "cov", "PTB-t", "PTB-t.targetcoverage.cnn"),
		covHeader+"chr1\t0\t100\tGENE1\t300\t0.6\nchr2\t0\t100\tGENE2\t310\t1.2\n")
	write(t, filepath.Join(dir, "cov", "PTB-t", "PTB-t.antitargetcoverage.cnn"),
		covHeader+"chr1\t200\t300\t-\t60\t0.3\n")

	mapPath := filepath.Join(dir, "curated.yaml")
	write(t, mapPath, "PTA-t: [chr1]\nPTB-t: [chr1]\n")

	outPath := filepath.Join(dir, "reference.cnn")
	out, err := execute(t, "reference",
		"-d", filepath.Join(dir, "cov"), "-m", mapPath, "-o", outPath)
	if err != nil {
		t.Fatalf("reference: %v\n%s", err, out)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("reference not created: %v", err)
	}
	if !strings.Contains(out, "Reference written") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestStatusCommand(t *testing.T) {
	dir := t.TempDir()
	bamDir := filepath.Join(dir, "bams")
	workDir := filepath.Join(dir, "work")
	refPath := filepath.Join(dir, "reference.cnn")
	write(t, filepath.Join(bamDir, "A-t.bam"), "bam")
	write(t, refPath, "chromosome\tstart\tend\n")
	write(t, filepath.Join(workDir, "A-t", "A-t.targetcoverage.cnn"), "cnn")
	write(t, filepath.Join(workDir, "A-t", "A-t.cnr"), "cnr")

	cfgPath := filepath.Join(dir, "config.yaml")
	write(t, cfgPath, strings.Join([]string{
		"bam_dir: " + bamDir,
		"work_dir: " + workDir,
		"reference: " + refPath,
	}, "\n")+"\n")

	out, err := execute(t, "status", "-c", cfgPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "A-t") {
		t.Errorf("sample missing from output:\n%s", out)
	}
	if !strings.Contains(out, "CF----") {
		t.Errorf("artifact flags missing:\n%s", out)
	}
	if !strings.Contains(out, "not started") {
		t.Errorf("expected 'not started' status:\n%s", out)
	}
}
