package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "frametype.log")
	logger, err := New("production", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("expected a JSON entry, got %q", string(data))
	}
}

func TestNewDevelopment(t *testing.T) {
	logger, err := New("development", filepath.Join(t.TempDir(), "dev.log"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("development logger should enable debug")
	}
}
