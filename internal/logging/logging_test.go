// v1
// internal/logging/logging_test.go
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "service.log")

	lg, cleanup, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Info("test_event", "key", "value")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "test_event") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestNewCreatesNestedDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "service.log")
	_, cleanup, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cleanup()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
