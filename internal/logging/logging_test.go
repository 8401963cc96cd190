package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_HasComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelDebug, "text", &buf)

	logger := New("test-component")
	logger.Info("hello")

	output := buf.String()
	if !strings.Contains(output, "component=test-component") {
		t.Errorf("expected component=test-component in output, got: %s", output)
	}
	if !strings.Contains(output, "hello") {
		t.Errorf("expected 'hello' in output, got: %s", output)
	}
}

func TestInit_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "json", &buf)

	logger := New("json-test")
	logger.Info("json check")

	output := buf.String()
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Errorf("expected JSON level field, got: %s", output)
	}
	if !strings.Contains(output, `"component":"json-test"`) {
		t.Errorf("expected JSON component field, got: %s", output)
	}
}

func TestInit_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelWarn, "text", &buf)

	logger := New("gate-test")
	logger.Info("should be suppressed")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should be suppressed") {
		t.Error("Info message should be suppressed at Warn level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("Warn message should appear at Warn level")
	}
}

func TestInitWithErrorLog_TeesErrors(t *testing.T) {
	var buf bytes.Buffer
	errPath := filepath.Join(t.TempDir(), "errors.log")

	closer, err := InitWithErrorLog(slog.LevelInfo, "text", errPath, &buf)
	if err != nil {
		t.Fatalf("InitWithErrorLog: %v", err)
	}

	logger := New("tee-test")
	logger.Info("progress line")
	logger.Error("stage failed", "sample", "PT15-t")

	if err := closer.Close(); err != nil {
		t.Fatalf("close error log: %v", err)
	}

	main := buf.String()
	if !strings.Contains(main, "progress line") || !strings.Contains(main, "stage failed") {
		t.Errorf("main stream missing records: %s", main)
	}

	raw, err := os.ReadFile(errPath)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	errLog := string(raw)
	if strings.Contains(errLog, "progress line") {
		t.Error("info record should not reach the error log")
	}
	if !strings.Contains(errLog, "stage failed") || !strings.Contains(errLog, "PT15-t") {
		t.Errorf("error log missing error record: %s", errLog)
	}
}

func TestInitWithErrorLog_Appends(t *testing.T) {
	errPath := filepath.Join(t.TempDir(), "errors.log")
	if err := os.WriteFile(errPath, []byte("previous run\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	closer, err := InitWithErrorLog(slog.LevelInfo, "text", errPath, &buf)
	if err != nil {
		t.Fatalf("InitWithErrorLog: %v", err)
	}
	New("append-test").Error("new failure")
	closer.Close()

	raw, _ := os.ReadFile(errPath)
	if !strings.Contains(string(raw), "previous run") {
		t.Error("existing error log content was truncated")
	}
	if !strings.Contains(string(raw), "new failure") {
		t.Error("new error record not appended")
	}
}
