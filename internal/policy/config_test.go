package policy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.AcclimatizationThreshold != 3 {
		t.Errorf("expected AcclimatizationThreshold=3, got %d", cfg.AcclimatizationThreshold)
	}
	if cfg.GraceThreshold != 2 {
		t.Errorf("expected GraceThreshold=2, got %d", cfg.GraceThreshold)
	}
	if cfg.RateLimit.MaxActions != 5 {
		t.Errorf("expected MaxActions=5, got %d", cfg.RateLimit.MaxActions)
	}
	if cfg.RateLimit.Window != 10*time.Second {
		t.Errorf("expected Window=10s, got %s", cfg.RateLimit.Window)
	}
	if cfg.EscalationLevel != 2 {
		t.Errorf("expected EscalationLevel=2, got %d", cfg.EscalationLevel)
	}
	if cfg.DeceptionLevel != 1 {
		t.Errorf("expected DeceptionLevel=1, got %d", cfg.DeceptionLevel)
	}
	if cfg.EscalationLimit() != 5 {
		t.Errorf("expected EscalationLimit=5, got %d", cfg.EscalationLimit())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/policy.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.AcclimatizationThreshold != DefaultAcclimatizationThreshold {
		t.Errorf("expected default threshold, got %d", cfg.AcclimatizationThreshold)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
acclimatization_threshold: 4
rate_limit:
  max_actions: 10
  window: 30s
alerts:
  - url: http://example.invalid/hook
    format: slack
    events: [rate_limited]
`
	os.WriteFile(path, []byte(content), 0644)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AcclimatizationThreshold != 4 {
		t.Errorf("expected 4, got %d", cfg.AcclimatizationThreshold)
	}
	// Unspecified fields keep their defaults
	if cfg.GraceThreshold != DefaultGraceThreshold {
		t.Errorf("expected default grace threshold, got %d", cfg.GraceThreshold)
	}
	if cfg.RateLimit.MaxActions != 10 || cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("expected rate limit 10/30s, got %d/%s", cfg.RateLimit.MaxActions, cfg.RateLimit.Window)
	}
	if len(cfg.Alerts) != 1 || cfg.Alerts[0].Format != "slack" {
		t.Errorf("expected one slack alert, got %+v", cfg.Alerts)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	os.WriteFile(path, []byte("acclimatization_threshold: [not an int"), 0644)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadConfigRejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	os.WriteFile(path, []byte("grace_threshold: -1\n"), 0644)

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"acclimatization", func(c *Config) { c.AcclimatizationThreshold = -1 }, "acclimatization_threshold"},
		{"grace", func(c *Config) { c.GraceThreshold = -1 }, "grace_threshold"},
		{"max actions", func(c *Config) { c.RateLimit.MaxActions = -1 }, "max_actions"},
		{"window", func(c *Config) { c.RateLimit.Window = -time.Second }, "window"},
		{"escalation", func(c *Config) { c.EscalationLevel = -1 }, "escalation_level"},
		{"deception", func(c *Config) { c.DeceptionLevel = -1 }, "deception_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to name %s, got %v", tt.field, err)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestLoadConfigWithHashStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	os.WriteFile(path, []byte("grace_threshold: 3\n"), 0644)

	_, h1, err := LoadConfigWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	_, h2, _ := LoadConfigWithHash(path)
	if h1 != h2 {
		t.Errorf("expected stable hash, got %s and %s", h1, h2)
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("expected sha256: prefix, got %s", h1)
	}

	os.WriteFile(path, []byte("grace_threshold: 4\n"), 0644)
	_, h3, _ := LoadConfigWithHash(path)
	if h3 == h1 {
		t.Error("expected hash to change with file content")
	}
}

func TestLoadConfigWithHashMissingFile(t *testing.T) {
	_, h, err := LoadConfigWithHash("/nonexistent/policy.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if h != hashBytes(nil) {
		t.Errorf("expected empty-input hash, got %s", h)
	}
}

func TestDefaultConfigYAMLMatchesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(DefaultConfigYAML()), cfg); err != nil {
		t.Fatalf("DefaultConfigYAML does not parse: %v", err)
	}
	def := DefaultConfig()
	if cfg.AcclimatizationThreshold != def.AcclimatizationThreshold ||
		cfg.GraceThreshold != def.GraceThreshold ||
		cfg.RateLimit != def.RateLimit ||
		cfg.EscalationLevel != def.EscalationLevel ||
		cfg.DeceptionLevel != def.DeceptionLevel {
		t.Errorf("DefaultConfigYAML drifted from DefaultConfig: %+v", cfg)
	}
}
