// Package policydiff compares two gate policies and labels each change as
// stricter or looser.
package policydiff

import (
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/stewardgate/internal/policy"
)

// Change represents a scalar field change.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// DiffResult holds the comparison of two policies.
type DiffResult struct {
	OldPath    string   `json:"old_path"`
	NewPath    string   `json:"new_path"`
	Changes    []Change `json:"changes"`
	HasChanges bool     `json:"has_changes"`
}

// Diff compares two policies and returns the differences.
func Diff(old, new *policy.Config) *DiffResult {
	r := &DiffResult{}

	// A longer ramp lets an unknown actor act for longer.
	diffInt(r, "acclimatization_threshold",
		old.AcclimatizationThreshold, new.AcclimatizationThreshold, false)
	diffInt(r, "grace_threshold",
		old.GraceThreshold, new.GraceThreshold, false)

	diffInt(r, "rate_limit.max_actions",
		old.RateLimit.MaxActions, new.RateLimit.MaxActions, false)
	diffDuration(r, "rate_limit.window",
		old.RateLimit.Window, new.RateLimit.Window)

	diffInt(r, "escalation_level", old.EscalationLevel, new.EscalationLevel, true)
	diffInt(r, "deception_level", old.DeceptionLevel, new.DeceptionLevel, true)

	diffSet(r, "redact_keys", old.RedactKeys, new.RedactKeys)
	diffSet(r, "alerts", alertURLs(old), alertURLs(new))

	r.HasChanges = len(r.Changes) > 0
	return r
}

// Files loads both policy files and compares them.
func Files(oldPath, newPath string) (*DiffResult, error) {
	oldCfg, err := policy.LoadConfig(oldPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", oldPath, err)
	}
	newCfg, err := policy.LoadConfig(newPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", newPath, err)
	}
	r := Diff(oldCfg, newCfg)
	r.OldPath = oldPath
	r.NewPath = newPath
	return r, nil
}

func diffInt(r *DiffResult, field string, old, new int, higherIsStricter bool) {
	if old == new {
		return
	}
	r.Changes = append(r.Changes, Change{
		Field:   field,
		Old:     fmt.Sprintf("%d", old),
		New:     fmt.Sprintf("%d", new),
		Comment: intComment(old, new, higherIsStricter),
	})
}

func diffDuration(r *DiffResult, field string, old, new time.Duration) {
	if old == new {
		return
	}
	comment := "looser"
	if new > old {
		comment = "stricter"
	}
	r.Changes = append(r.Changes, Change{
		Field:   field,
		Old:     old.String(),
		New:     new.String(),
		Comment: comment,
	})
}

func intComment(old, new int, higherIsStricter bool) string {
	if higherIsStricter {
		if new > old {
			return "stricter"
		}
		return "looser"
	}
	if new < old {
		return "stricter"
	}
	return "looser"
}

func diffSet(r *DiffResult, section string, oldKeys, newKeys []string) {
	oldSet := make(map[string]bool, len(oldKeys))
	for _, k := range oldKeys {
		oldSet[k] = true
	}
	newSet := make(map[string]bool, len(newKeys))
	for _, k := range newKeys {
		newSet[k] = true
	}

	for _, k := range sorted(newKeys) {
		if !oldSet[k] {
			r.Changes = append(r.Changes, Change{Field: section, New: k, Comment: "added"})
		}
	}
	for _, k := range sorted(oldKeys) {
		if !newSet[k] {
			r.Changes = append(r.Changes, Change{Field: section, Old: k, Comment: "removed"})
		}
	}
}

func sorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	return out
}

func alertURLs(cfg *policy.Config) []string {
	urls := make([]string, 0, len(cfg.Alerts))
	for _, a := range cfg.Alerts {
		urls = append(urls, a.URL)
	}
	return urls
}
