package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stewardgate/internal/systemd"
)

var (
	serviceOutput string
	serviceConfig string
	serviceBinary string
	serviceUser   string
	serviceCheck  bool
)

func init() {
	rootCmd.AddCommand(initServiceCmd)
	initServiceCmd.Flags().StringVarP(&serviceOutput, "output", "o", "stewardgate.service", "Where to write the unit file")
	initServiceCmd.Flags().StringVar(&serviceConfig, "config", "", "Daemon config path passed to serve")
	initServiceCmd.Flags().StringVar(&serviceBinary, "binary", "", "Path to the stewardgate binary (default /usr/local/bin/stewardgate)")
	initServiceCmd.Flags().StringVar(&serviceUser, "user", "", "Service account")
	initServiceCmd.Flags().BoolVar(&serviceCheck, "check", false, "Verify an existing unit against its recorded hash instead of writing")
}

var initServiceCmd = &cobra.Command{
	Use:   "init-service",
	Short: "Generate a systemd unit for the gate daemon",
	Long:  "Writes a hardened systemd unit running \"stewardgate serve\" and records its\nSHA-256 next to it. With --check, reports whether the unit was modified since.",
	Args:  cobra.NoArgs,
	RunE:  runInitService,
}

func runInitService(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if serviceCheck {
		if err := systemd.CheckUnit(serviceOutput); err != nil {
			return err
		}
		fmt.Fprintf(out, "OK: %s matches its recorded hash\n", serviceOutput)
		return nil
	}

	unit := systemd.Unit(systemd.UnitOptions{
		Binary:     serviceBinary,
		ConfigPath: serviceConfig,
		User:       serviceUser,
	})
	if err := systemd.WriteUnit(serviceOutput, unit); err != nil {
		return err
	}
	fmt.Fprintf(out, "Created %s\n", serviceOutput)
	return nil
}
