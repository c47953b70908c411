package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stewardgate/internal/policy"
)

var initPolicyForce bool

func init() {
	rootCmd.AddCommand(initPolicyCmd)
	initPolicyCmd.Flags().BoolVar(&initPolicyForce, "force", false, "Overwrite an existing policy.yaml")
}

var initPolicyCmd = &cobra.Command{
	Use:   "init-policy",
	Short: "Generate default policy.yaml with comments",
	Long:  "Creates ~/.stewardgate/policy.yaml with the default thresholds, rate limit\nand administrative levels. Edit this file to tune the gate.",
	RunE:  runInitPolicy,
}

func runInitPolicy(cmd *cobra.Command, args []string) error {
	path, err := policy.DefaultPath()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil && !initPolicyForce {
		return fmt.Errorf("policy.yaml already exists at %s", path)
	}

	content := policy.DefaultConfigYAML()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write policy.yaml: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}
