package scenario

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/stewardgate/internal/gate"
	"github.com/ppiankov/stewardgate/internal/model"
	"github.com/ppiankov/stewardgate/internal/policy"
)

// epoch is the fixed start of every scenario clock.
var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// clock is a manual clock advanced only by advance steps.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

// Run executes the scenario against a fresh gate using cfg, or the
// default policy when cfg is nil. Steps share the gate, so later steps
// observe the state earlier ones produced.
func Run(s *Scenario, cfg *policy.Config) (*RunResult, error) {
	effective := policy.DefaultConfig()
	if cfg != nil {
		c := *cfg
		effective = &c
	}
	if !s.Policy.IsZero() {
		if err := s.Policy.Decode(effective); err != nil {
			return nil, fmt.Errorf("scenario %q policy: %w", s.Name, err)
		}
		if err := effective.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q policy: %w", s.Name, err)
		}
	}

	clk := &clock{now: epoch}
	g := gate.New(gate.WithClock(clk.Now), gate.WithPolicy(effective))

	result := &RunResult{Name: s.Name}
	for i, step := range s.Steps {
		reps := step.Repeat
		if reps < 1 {
			reps = 1
		}
		for rep := 1; rep <= reps; rep++ {
			sr := runStep(g, clk, step)
			sr.Index = i + 1
			if step.Repeat > 1 {
				sr.Repetition = rep
			}
			result.Total++
			if sr.Passed {
				result.Passed++
			} else {
				result.Failed++
			}
			result.Steps = append(result.Steps, sr)
		}
	}
	return result, nil
}

func runStep(g *gate.Gate, clk *clock, step Step) StepResult {
	var (
		sr  StepResult
		exp expectations
		err error
		id  string
	)

	switch {
	case step.Recognize != nil:
		sr.Op = "recognize"
		id = step.Recognize.ID
		var st model.Status
		st, err = g.RequestRecognition(model.Descriptor{ID: id, Kind: model.Kind(step.Recognize.Kind)})
		if err == nil {
			exp.check("status", step.ExpectStatus, string(st))
		}

	case step.Checkpoint != nil:
		sr.Op = "checkpoint"
		id = step.Checkpoint.ID
		var d model.Decision
		d, err = g.Evaluate(id, step.Checkpoint.Action, step.Checkpoint.Details)
		if err == nil {
			sr.Feedback = d.Feedback
			exp.check("decision", strings.ToLower(step.Expect), outcome(d.Allowed))
			exp.check("result", step.ExpectResult, string(d.Result))
			exp.checkRecord(g, id, step)
		}

	case step.Admin != nil:
		sr.Op = step.Admin.Op
		id = step.Admin.ID
		err = runAdmin(g, step.Admin)
		if err == nil {
			exp.checkRecord(g, id, step)
		}

	case step.Advance > 0:
		sr.Op = "advance"
		clk.now = clk.now.Add(step.Advance)
		sr.Passed = true
		return sr

	default:
		sr.Error = "step has no action"
		return sr
	}

	sr.IdentityID = id
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	sr.Expected, sr.Actual = exp.render()
	sr.Passed = exp.ok()
	return sr
}

func runAdmin(g *gate.Gate, a *AdminStep) error {
	p := g.Policy()
	switch strings.ToLower(a.Op) {
	case "approve":
		return g.Approve(a.ID)
	case "revoke":
		return g.RevokeRecognition(a.ID)
	case "escalate":
		return g.EscalateQuarantine(a.ID, levelOr(a.Level, p.EscalationLevel))
	case "deceive":
		return g.SetDeceptionLevel(a.ID, levelOr(a.Level, p.DeceptionLevel))
	case "defend":
		return g.EngageDefenseProtocol(a.ID, a.Protocol)
	case "verdict":
		return g.DestroyOrDisseminate(a.ID, a.Verdict)
	default:
		return fmt.Errorf("unknown admin op %q", a.Op)
	}
}

func levelOr(level *int, def int) int {
	if level != nil {
		return *level
	}
	return def
}

func outcome(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

// expectations collects the checked fields of one step.
type expectations struct {
	expected []string
	actual   []string
	failed   bool
}

func (e *expectations) check(field, want, got string) {
	if want == "" {
		return
	}
	e.expected = append(e.expected, field+"="+want)
	e.actual = append(e.actual, field+"="+got)
	if want != got {
		e.failed = true
	}
}

func (e *expectations) checkRecord(g *gate.Gate, id string, step Step) {
	if step.ExpectStatus == "" && step.ExpectPhase == "" {
		return
	}
	rec, ok := g.Lookup(id)
	if !ok {
		e.check("status", step.ExpectStatus, "unknown")
		e.check("phase", step.ExpectPhase, "unknown")
		return
	}
	e.check("status", step.ExpectStatus, string(rec.Status))
	e.check("phase", step.ExpectPhase, string(rec.Phase))
}

func (e *expectations) ok() bool { return !e.failed }

func (e *expectations) render() (string, string) {
	return strings.Join(e.expected, " "), strings.Join(e.actual, " ")
}

// Load parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file and the policy, then runs it.
func LoadAndRun(path, policyPath string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	result, err := Run(s, cfg)
	if err != nil {
		return nil, err
	}
	result.File = path
	return result, nil
}
