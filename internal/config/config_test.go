package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
host = "10.0.0.5"
port = 9333
timeout = "5s"
log_level = "debug"
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Host != "10.0.0.5" {
		t.Fatalf("unexpected host: %q", cfg.Host)
	}
	if cfg.Port != 9333 {
		t.Fatalf("unexpected port: %d", cfg.Port)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel)
	}
	// Untouched keys keep defaults.
	if cfg.LogFormat != "console" {
		t.Fatalf("unexpected log format: %q", cfg.LogFormat)
	}
	if cfg.ReadLimit != Default().ReadLimit {
		t.Fatalf("unexpected read limit: %d", cfg.ReadLimit)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	if _, err := Load(missing, true); err != nil {
		t.Fatalf("optional missing file should load defaults: %v", err)
	}
	if _, err := Load(missing, false); err == nil {
		t.Fatal("expected error for required missing file")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "bad duration", body: `timeout = "soon"`, wantErr: "parse timeout"},
		{name: "bad port", body: `port = 70000`, wantErr: "out of range"},
		{name: "unknown key", body: `hots = "x"`, wantErr: "unknown key"},
		{name: "bad log format", body: `log_format = "xml"`, wantErr: "log_format"},
		{name: "bad toml", body: `host = `, wantErr: "load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			_, err := Load(path, false)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
