package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// envMap builds a lookup over a fixed set of variables.
func envMap(vars map[string]string) lookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	path := writeTempConfig(t, "# empty\n")

	cfg, err := loadWith(newFileBackend(path), envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Server.Token = %q, want empty", cfg.Server.Token)
	}
	if cfg.Analysis.BaseURL != "http://localhost:8000" {
		t.Errorf("Analysis.BaseURL = %q", cfg.Analysis.BaseURL)
	}
	if cfg.Analysis.Timeout != 10*time.Minute {
		t.Errorf("Analysis.Timeout = %v, want 10m", cfg.Analysis.Timeout)
	}
	if cfg.Analysis.HealthInterval != 30*time.Second {
		t.Errorf("Analysis.HealthInterval = %v, want 30s", cfg.Analysis.HealthInterval)
	}
	if cfg.Analysis.MockMode {
		t.Error("Analysis.MockMode = true, want false")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if !strings.HasSuffix(cfg.Storage.DataDir, "narastore") {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

// TestMissingAPIKeyIsNotAnError verifies uploads, not loading, enforce the credential.
func TestMissingAPIKeyIsNotAnError(t *testing.T) {
	cfg, err := loadWith(newFileBackend(writeTempConfig(t, "")), envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.Analysis.APIKey)
	}
}

// TestYAMLParsing verifies that all fields are correctly read from a YAML file.
func TestYAMLParsing(t *testing.T) {
	content := `
server:
  port: 9090
analysis:
  base_url: http://analysis.internal:8000
  timeout: 5m
  health_interval: 1m
  mock_mode: true
storage:
  data_dir: /tmp/narastore-test
report:
  font_path: /usr/share/fonts/NanumGothic.ttf
log:
  level: debug
`
	cfg, err := loadWith(newFileBackend(writeTempConfig(t, content)), envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Analysis.BaseURL != "http://analysis.internal:8000" {
		t.Errorf("Analysis.BaseURL = %q", cfg.Analysis.BaseURL)
	}
	if cfg.Analysis.Timeout != 5*time.Minute || cfg.Analysis.HealthInterval != time.Minute {
		t.Errorf("durations = %v, %v", cfg.Analysis.Timeout, cfg.Analysis.HealthInterval)
	}
	if !cfg.Analysis.MockMode {
		t.Error("Analysis.MockMode = false, want true")
	}
	if cfg.Storage.DataDir != "/tmp/narastore-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Report.FontPath != "/usr/share/fonts/NanumGothic.ttf" {
		t.Errorf("Report.FontPath = %q", cfg.Report.FontPath)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestSecretsIgnoredInFile verifies secrets only come from the environment.
func TestSecretsIgnoredInFile(t *testing.T) {
	content := "analysis:\n  api_key: from-file\nserver:\n  token: from-file\n"
	cfg, err := loadWith(newFileBackend(writeTempConfig(t, content)), envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.APIKey != "" || cfg.Server.Token != "" {
		t.Errorf("secrets read from file: key=%q token=%q", cfg.Analysis.APIKey, cfg.Server.Token)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, "server:\n  port: 9090\n")

	cfg, err := loadWith(newFileBackend(path), envMap(map[string]string{
		"NARASTORE_SERVER_PORT":        "7070",
		"NARASTORE_GEMINI_API_KEY":     "env-key",
		"NARASTORE_ANALYSIS_TIMEOUT":   "90s",
		"NARASTORE_ANALYSIS_MOCK_MODE": "true",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Analysis.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Analysis.APIKey)
	}
	if cfg.Analysis.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Analysis.Timeout)
	}
	if !cfg.Analysis.MockMode {
		t.Error("MockMode = false, want true")
	}
}

// TestBadEnvValueKeepsDefault verifies unparseable overrides fall back with a warning.
func TestBadEnvValueKeepsDefault(t *testing.T) {
	cfg, err := loadWith(newFileBackend(writeTempConfig(t, "")), envMap(map[string]string{
		"NARASTORE_SERVER_PORT":      "eighty",
		"NARASTORE_ANALYSIS_TIMEOUT": "soon",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Analysis.Timeout != 10*time.Minute {
		t.Errorf("port = %d, timeout = %v; want defaults", cfg.Server.Port, cfg.Analysis.Timeout)
	}
}

func TestInvalidPort(t *testing.T) {
	_, err := loadWith(newFileBackend(writeTempConfig(t, "server:\n  port: 70000\n")), envMap(nil))
	if err == nil || !strings.Contains(err.Error(), "server.port") {
		t.Errorf("err = %v, want a server.port range error", err)
	}
}

// TestDotEnvLayer verifies .env values apply below the process environment.
func TestDotEnvLayer(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("NARASTORE_GEMINI_API_KEY=dotenv-key\nNARASTORE_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	dotenv, err := readDotEnv(envFile)
	if err != nil {
		t.Fatalf("readDotEnv: %v", err)
	}
	lookup := lookupChain(envMap(map[string]string{"NARASTORE_LOG_LEVEL": "warn"}), dotenv)

	cfg, err := loadWith(newFileBackend(writeTempConfig(t, "")), lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.APIKey != "dotenv-key" {
		t.Errorf("APIKey = %q, want dotenv-key", cfg.Analysis.APIKey)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want the process env to win", cfg.Log.Level)
	}
}

func TestReadDotEnv_Missing(t *testing.T) {
	vals, err := readDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil || vals != nil {
		t.Errorf("readDotEnv(missing) = %v, %v; want nil, nil", vals, err)
	}
}

func TestSetKey_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narastore", "config.yaml")
	b := newFileBackend(path)

	if err := setKey(b, "server.port", "9191"); err != nil {
		t.Fatalf("setKey port: %v", err)
	}
	if err := setKey(b, "analysis.health_interval", "45s"); err != nil {
		t.Fatalf("setKey interval: %v", err)
	}

	cfg, err := loadWith(newFileBackend(path), envMap(nil))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 9191 || cfg.Analysis.HealthInterval != 45*time.Second {
		t.Errorf("port = %d, interval = %v", cfg.Server.Port, cfg.Analysis.HealthInterval)
	}

	if err := b.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cfg, _ = loadWith(newFileBackend(path), envMap(nil))
	if cfg.Server.Port != 8080 {
		t.Errorf("port after delete = %d, want default", cfg.Server.Port)
	}
}

func TestSetKey_Rejects(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.yaml"))
	if err := setKey(b, "analysis.api_key", "x"); err == nil {
		t.Error("expected error setting a secret")
	}
	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for a non-integer port")
	}
	if err := setKey(b, "analysis.mock_mode", "maybe"); err == nil {
		t.Error("expected error for a non-bool")
	}
	if err := setKey(b, "nope", "1"); err == nil {
		t.Error("expected error for an unknown key")
	}
}

func TestShowAll_MasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Analysis.APIKey = "AIzaSyExample"
	var found bool
	for _, ki := range ShowAll(cfg) {
		if ki.Key == "analysis.api_key" {
			found = true
			if ki.Value == cfg.Analysis.APIKey || !ki.Secret {
				t.Errorf("api key shown as %q", ki.Value)
			}
		}
	}
	if !found {
		t.Error("analysis.api_key missing from ShowAll")
	}
	for _, k := range ValidKeys() {
		if k == "analysis.api_key" || k == "server.token" {
			t.Errorf("ValidKeys includes secret %s", k)
		}
	}
}
