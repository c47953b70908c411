package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stewardgate/internal/scenario"
)

var errScenarioFailed = errors.New("scenario assertions failed")

var (
	checkScenario string
	checkPolicy   string
	checkFormat   string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkScenario, "scenario", "", "Glob pattern for scenario YAML files (required)")
	checkCmd.Flags().StringVar(&checkPolicy, "policy", "", "Path to policy YAML (optional)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	checkCmd.MarkFlagRequired("scenario")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run gate assertions from scenario files",
	Long: "Loads scenario YAML files matching a glob pattern, drives each step\n" +
		"through an in-process gate on a simulated clock, and reports pass/fail.\n\n" +
		"Exit code 0 if all steps pass, 1 if any fail.\n" +
		"Use in CI to gate policy changes on expected behavior.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	matches, err := filepath.Glob(checkScenario)
	if err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no scenario files match pattern: %s", checkScenario)
	}

	var results []*scenario.RunResult
	for _, path := range matches {
		r, err := scenario.LoadAndRun(path, checkPolicy)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, r)
	}

	out := cmd.OutOrStdout()
	switch checkFormat {
	case "json":
		s, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
	default:
		fmt.Fprint(out, scenario.FormatText(results))
	}

	for _, r := range results {
		if r.Failed > 0 {
			return errScenarioFailed
		}
	}
	return nil
}
