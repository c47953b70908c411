package scenario

import (
	"time"

	"gopkg.in/yaml.v3"
)

// RecognizeStep registers an identity.
type RecognizeStep struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
}

// CheckpointStep asks the gate to decide an action.
type CheckpointStep struct {
	ID      string         `yaml:"id"`
	Action  string         `yaml:"action"`
	Details map[string]any `yaml:"details,omitempty"`
}

// AdminStep applies an administrative override.
// Op is one of approve, revoke, escalate, deceive, defend, verdict.
type AdminStep struct {
	Op       string `yaml:"op"`
	ID       string `yaml:"id"`
	Level    *int   `yaml:"level,omitempty"`
	Protocol string `yaml:"protocol,omitempty"`
	Verdict  string `yaml:"verdict,omitempty"`
}

// Step is one scripted interaction. Exactly one of Recognize, Checkpoint,
// Admin or Advance is set. Expectations are optional; unset ones are not
// checked. ExpectStatus and ExpectPhase are checked against the identity
// record after the step.
type Step struct {
	Recognize  *RecognizeStep  `yaml:"recognize,omitempty"`
	Checkpoint *CheckpointStep `yaml:"checkpoint,omitempty"`
	Admin      *AdminStep      `yaml:"admin,omitempty"`
	Advance    time.Duration   `yaml:"advance,omitempty"`

	Repeat int `yaml:"repeat,omitempty"`

	Expect       string `yaml:"expect,omitempty"`
	ExpectResult string `yaml:"expect_result,omitempty"`
	ExpectStatus string `yaml:"expect_status,omitempty"`
	ExpectPhase  string `yaml:"expect_phase,omitempty"`
}

// Scenario is a named script run against a fresh gate. Policy, when
// present, overrides fields of the base policy.
type Scenario struct {
	Name   string    `yaml:"name"`
	Policy yaml.Node `yaml:"policy,omitempty"`
	Steps  []Step    `yaml:"steps"`
}

// StepResult is the outcome of one step execution. A step with Repeat
// produces one result per repetition.
type StepResult struct {
	Index      int    `json:"index"`
	Repetition int    `json:"repetition,omitempty"`
	Op         string `json:"op"`
	IdentityID string `json:"identity_id,omitempty"`
	Passed     bool   `json:"passed"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunResult is the outcome of running one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Steps  []StepResult `json:"steps"`
}
