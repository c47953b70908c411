package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/stewardgate/internal/alert"
	"github.com/ppiankov/stewardgate/internal/ratelimit"
)

// Built-in thresholds.
const (
	DefaultAcclimatizationThreshold = 3
	DefaultGraceThreshold           = 2
	DefaultRateWindow               = 10 * time.Second
	DefaultMaxActionsPerWindow      = 5
	DefaultEscalationLevel          = 2
	DefaultDeceptionLevel           = 1
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid policy config")

// Config holds the tunable parameters of the acclimation gate.
type Config struct {
	// Checkpoint calls allowed in the training phase.
	AcclimatizationThreshold int `yaml:"acclimatization_threshold" json:"acclimatization_threshold"`
	// Further calls allowed in the grace phase before escalation.
	GraceThreshold int `yaml:"grace_threshold" json:"grace_threshold"`

	RateLimit ratelimit.Limit `yaml:"rate_limit" json:"rate_limit"`

	// Defaults for administrative overrides when no level is given.
	EscalationLevel int `yaml:"escalation_level" json:"escalation_level"`
	DeceptionLevel  int `yaml:"deception_level" json:"deception_level"`

	// Detail keys masked in audit entries on top of the built-in list.
	RedactKeys []string `yaml:"redact_keys,omitempty" json:"redact_keys,omitempty"`

	Alerts []alert.AlertConfig `yaml:"alerts,omitempty" json:"alerts,omitempty"`
}

// DefaultConfig returns the built-in gate policy.
func DefaultConfig() *Config {
	return &Config{
		AcclimatizationThreshold: DefaultAcclimatizationThreshold,
		GraceThreshold:           DefaultGraceThreshold,
		RateLimit: ratelimit.Limit{
			MaxActions: DefaultMaxActionsPerWindow,
			Window:     DefaultRateWindow,
		},
		EscalationLevel: DefaultEscalationLevel,
		DeceptionLevel:  DefaultDeceptionLevel,
	}
}

// EscalationLimit is the total number of acclimatizing checkpoint calls
// allowed before the identity is escalated to quarantine.
func (c *Config) EscalationLimit() int {
	return c.AcclimatizationThreshold + c.GraceThreshold
}

// Validate rejects negative thresholds and levels.
func (c *Config) Validate() error {
	switch {
	case c.AcclimatizationThreshold < 0:
		return fmt.Errorf("%w: acclimatization_threshold must be >= 0", ErrInvalidConfig)
	case c.GraceThreshold < 0:
		return fmt.Errorf("%w: grace_threshold must be >= 0", ErrInvalidConfig)
	case c.RateLimit.MaxActions < 0:
		return fmt.Errorf("%w: rate_limit.max_actions must be >= 0", ErrInvalidConfig)
	case c.RateLimit.Window < 0:
		return fmt.Errorf("%w: rate_limit.window must be >= 0", ErrInvalidConfig)
	case c.EscalationLevel < 0:
		return fmt.Errorf("%w: escalation_level must be >= 0", ErrInvalidConfig)
	case c.DeceptionLevel < 0:
		return fmt.Errorf("%w: deception_level must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// DefaultPath returns ~/.stewardgate/policy.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stewardgate", "policy.yaml"), nil
}

// LoadConfig loads gate policy from a YAML file.
// Empty path falls back to ~/.stewardgate/policy.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads gate policy and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk.
// When no file exists (defaults used), the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return DefaultConfig(), hashBytes(nil), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read policy config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse policy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, hashBytes(data), nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// DefaultConfigYAML returns a commented YAML string for init-policy.
func DefaultConfigYAML() string {
	return `# stewardgate policy configuration
# Generated by: stewardgate init-policy
#
# Checkpoint evaluation order (cannot be changed):
#   1. Unknown identity -> deny
#   2. Acclimatizing, training phase -> allow until acclimatization_threshold
#   3. Acclimatizing, grace phase -> allow until acclimatization_threshold + grace_threshold,
#      then escalate to quarantine
#   4. Rate limit -> deny above rate_limit.max_actions per rate_limit.window
#   5. Quarantined or unrecognized -> deny
#   6. Not approved -> deny
#   7. Approved -> allow

# Checkpoint calls allowed while training.
acclimatization_threshold: 3

# Further calls tolerated in the grace period before quarantine.
grace_threshold: 2

rate_limit:
  max_actions: 5
  window: 10s

# Levels applied by "escalate" and "deceive" when no level is given.
escalation_level: 2
deception_level: 1

# Checkpoint detail keys masked in the audit log, in addition to the
# built-in list (password, token, api_key, email, ...).
# redact_keys: [pin, badge_number]

# Webhook alerts. Events match an audit result (e.g. quarantined, rate_limited)
# or an audit action (e.g. acclimatization_escalated).
# alerts:
#   - url: https://hooks.slack.com/services/XXX
#     format: slack
#     events: [acclimatization_escalated, rate_limited]
`
}
