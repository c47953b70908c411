package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	label := result.IdentityID
	if label == "" {
		label = "all identities"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Identity: %s | No entries found.\n", label)
	}

	var b strings.Builder

	first := result.Summary.FirstTimestamp.UTC().Format("2006-01-02 15:04:05")
	last := result.Summary.LastTimestamp.UTC().Format("15:04:05")
	fmt.Fprintf(&b, "Identity: %s | %s–%s UTC\n", label, first, last)
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := e.Timestamp.UTC().Format("15:04:05")
		outcome := strings.ToUpper(Outcome(e.Result))
		if outcome == "" {
			outcome = "ADMIN"
		}
		fmt.Fprintf(&b, "%-10s %-6s %-5s %-16s %-26s %s\n",
			ts, fmt.Sprintf("#%d", e.Seq), outcome,
			truncate(e.IdentityID, 16), truncate(e.Action, 26), e.Result)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatSummary(s ReplaySummary) string {
	parts := []string{}
	if s.AllowCount > 0 {
		parts = append(parts, fmt.Sprintf("%d allow", s.AllowCount))
	}
	if s.DenyCount > 0 {
		parts = append(parts, fmt.Sprintf("%d deny", s.DenyCount))
	}
	if s.AdminCount > 0 {
		parts = append(parts, fmt.Sprintf("%d admin", s.AdminCount))
	}
	if s.Escalations > 0 {
		parts = append(parts, fmt.Sprintf("%d escalation", s.Escalations))
	}

	results := make([]string, 0, len(s.Results))
	for r, n := range s.Results {
		results = append(results, fmt.Sprintf("%s=%d", r, n))
	}
	sort.Strings(results)

	out := fmt.Sprintf("Summary: %s", strings.Join(parts, ", "))
	if len(results) > 0 {
		out += " | " + strings.Join(results, " ")
	}
	return out + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
