package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// errDenied is returned by commands whose checkpoint was denied.
var errDenied = errors.New("checkpoint denied")

var (
	cliAddr      string
	cliLogFormat string
	cliLogLevel  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cliAddr, "addr", "localhost:50051", "Address of a running stewardgate server")
	rootCmd.PersistentFlags().StringVar(&cliLogFormat, "log-format", "text", "Log format (text|json)")
	rootCmd.PersistentFlags().StringVar(&cliLogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
}

var rootCmd = &cobra.Command{
	Use:           "stewardgate",
	Short:         "Per-identity admission control with a trust acclimatization ramp",
	Long:          "Decides every action request per identity: new identities acclimatize through\ntraining and grace phases, misbehaving ones are quarantined, and every decision\nlands in a hash-chained audit log.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cliLogFormat, cliLogLevel, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errDenied) {
			os.Exit(3)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a slog logger writing to w.
func newLogger(format, level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}
