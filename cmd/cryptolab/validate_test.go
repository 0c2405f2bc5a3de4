package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath
}

func TestRunValidate_ValidConfig(t *testing.T) {
	configPath := writeConfigFile(t, `
base_url: https://analytics.example.com/
poll_interval: 2s
session:
  backend: redis
  redis:
    addr: localhost:6379
server:
  port: 9090
sweep:
  concurrency: 8
  timeframes: [60, 240]
`)

	output, _, err := execute(t, "validate", "-c", configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"Backend:       https://analytics.example.com",
		"Poll interval: 2s",
		"Session:       redis (localhost:6379)",
		"Server port:   9090",
		"8 workers, timeframes [60 240], history window 120",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := writeConfigFile(t, `
base_url: https://analytics.example.com
poll_interval: 10ms
`)

	_, _, err := execute(t, "validate", "-c", configPath)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}

	if !strings.Contains(err.Error(), "poll_interval must be at least") {
		t.Errorf("error should mention poll_interval, got: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, "validate", "-c", "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}

	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error should mention 'failed to read', got: %v", err)
	}
}

func TestRunValidate_RequiresConfigFlag(t *testing.T) {
	_, _, err := execute(t, "validate")
	if err == nil || !strings.Contains(err.Error(), `"config" not set`) {
		t.Errorf("validate without -c error = %v", err)
	}
}
