package policydiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *DiffResult) string {
	if !r.HasChanges {
		return fmt.Sprintf("Policy diff: %s → %s\n\nNo changes detected.\n", r.OldPath, r.NewPath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Policy diff: %s → %s\n", r.OldPath, r.NewPath)

	rateLimit := filterChanges(r.Changes, "rate_limit.")
	sets := filterChanges(r.Changes, "redact_keys", "alerts")
	topLevel := filterTopLevel(r.Changes)

	if len(topLevel) > 0 {
		b.WriteString("\n")
		for _, c := range topLevel {
			writeScalar(&b, "  %-28s", c.Field, c)
		}
	}

	if len(rateLimit) > 0 {
		b.WriteString("\n  Rate limit:\n")
		for _, c := range rateLimit {
			writeScalar(&b, "    %-18s", strings.TrimPrefix(c.Field, "rate_limit."), c)
		}
	}

	if len(sets) > 0 {
		b.WriteString("\n")
		for _, c := range sets {
			switch c.Comment {
			case "added":
				fmt.Fprintf(&b, "  %s: + %s\n", c.Field, c.New)
			case "removed":
				fmt.Fprintf(&b, "  %s: - %s\n", c.Field, c.Old)
			}
		}
	}

	return b.String()
}

func writeScalar(b *strings.Builder, layout, name string, c Change) {
	fmt.Fprintf(b, layout, name+":")
	fmt.Fprintf(b, " %s → %s", c.Old, c.New)
	if c.Comment != "" {
		fmt.Fprintf(b, "  (%s)", c.Comment)
	}
	b.WriteString("\n")
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *DiffResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}

func filterChanges(changes []Change, prefixes ...string) []Change {
	var out []Change
	for _, c := range changes {
		for _, p := range prefixes {
			if strings.HasPrefix(c.Field, p) || c.Field == p {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func filterTopLevel(changes []Change) []Change {
	var out []Change
	for _, c := range changes {
		if !strings.Contains(c.Field, ".") && c.Field != "redact_keys" && c.Field != "alerts" {
			out = append(out, c)
		}
	}
	return out
}
