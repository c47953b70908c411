package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders a list of run results as human-readable text.
func FormatText(results []*RunResult) string {
	var b strings.Builder

	totalFiles := len(results)
	fmt.Fprintf(&b, "Checking %d scenario file", totalFiles)
	if totalFiles != 1 {
		b.WriteString("s")
	}
	b.WriteString("...\n\n")

	totalSteps := 0
	totalPassed := 0
	failedScenarios := 0

	for _, r := range results {
		totalSteps += r.Total
		totalPassed += r.Passed

		if r.Failed == 0 {
			fmt.Fprintf(&b, "  PASS  %s (%d/%d)\n", r.Name, r.Passed, r.Total)
		} else {
			failedScenarios++
			fmt.Fprintf(&b, "  FAIL  %s (%d/%d)\n", r.Name, r.Passed, r.Total)
			for _, st := range r.Steps {
				if st.Passed {
					continue
				}
				label := fmt.Sprintf("step %d", st.Index)
				if st.Repetition > 0 {
					label = fmt.Sprintf("step %d.%d", st.Index, st.Repetition)
				}
				if st.Error != "" {
					fmt.Fprintf(&b, "    FAIL  %s: %-10s %-16s error: %s\n", label, st.Op, st.IdentityID, st.Error)
					continue
				}
				fmt.Fprintf(&b, "    FAIL  %s: %-10s %-16s expected %s, got %s\n",
					label, st.Op, st.IdentityID, st.Expected, st.Actual)
			}
		}
	}

	fmt.Fprintf(&b, "\n%d of %d steps passed.", totalPassed, totalSteps)
	if failedScenarios > 0 {
		fmt.Fprintf(&b, " %d of %d scenarios failed.", failedScenarios, totalFiles)
	}
	b.WriteString("\n")

	return b.String()
}

// FormatJSON renders run results as JSON.
func FormatJSON(results []*RunResult) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(data), nil
}
