package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stewardgate/internal/policydiff"
)

var diffFormat string

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old.yaml> <new.yaml>",
	Short: "Compare two policy files and show changes",
	Long:  "Loads two policy YAML files and shows what changed: ramp thresholds,\nrate limit, administrative levels, redacted keys and alert targets.",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	result, err := policydiff.Files(args[0], args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch diffFormat {
	case "json":
		s, err := policydiff.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
	default:
		fmt.Fprint(out, policydiff.FormatText(result))
	}
	return nil
}
