package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.User.ID != nil || cfg.Store.Backend != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[user]
id = "ada"

[quiz]
accuracy-threshold = 98

[store]
backend = "postgres"
flush-delay = "250ms"
max-conns = 8

[drill]
focus-weak = true
weak-top = 3
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *cfg.User.ID != "ada" || *cfg.Quiz.AccuracyThreshold != 98 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if *cfg.Store.Backend != "postgres" || cfg.Store.FlushDelay.Duration != 250*time.Millisecond || *cfg.Store.MaxConns != 8 {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if !*cfg.Drill.FocusWeak || *cfg.Drill.WeakTop != 3 || cfg.Drill.WeakFactor != nil {
		t.Fatalf("unexpected drill config: %+v", cfg.Drill)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[quiz]\nthreshold = 97\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "quiz.threshold") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestTemplateParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(Template), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("template must parse: %v", err)
	}
}

func TestXDGPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_STATE_HOME", "/state")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "frametype", "config.toml") {
		t.Fatalf("config path = %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "frametype", "frametype.db") {
		t.Fatalf("db path = %s", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/state", "frametype", "frametype.log") {
		t.Fatalf("log path = %s", got)
	}
}
