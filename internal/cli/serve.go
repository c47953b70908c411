package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stewardgate/internal/config"
	"github.com/ppiankov/stewardgate/internal/daemon"
)

var (
	serveConfig   string
	servePort     int
	serveHTTPPort int
	servePolicy   string
	serveAuditLog string
	serveSQLite   string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "Path to daemon config YAML")
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultGRPCPort, "gRPC listen port")
	serveCmd.Flags().IntVar(&serveHTTPPort, "http-port", config.DefaultHTTPPort, "HTTP port for /metrics, /healthz, /audit and /ws/audit (0 disables)")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to policy YAML")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log JSONL file")
	serveCmd.Flags().StringVar(&serveSQLite, "sqlite", "", "Path to SQLite database for identity snapshots")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gate server",
	Long: "Runs the acclimation gate as a gRPC server with HTTP observability endpoints.\n" +
		"Settings come from --config, then STEWARDGATE_* environment variables, then flags.\n" +
		"The policy file is hot-reloaded on change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, errs := config.Load(serveConfig)
	if cfg == nil {
		return errors.Join(errs...)
	}
	// Range problems are re-checked after flags apply; parse failures are final.
	for _, err := range errs {
		if errors.Is(err, config.ErrInvalidInteger) || errors.Is(err, config.ErrInvalidDuration) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.GRPCPort = servePort
	}
	if flags.Changed("http-port") {
		cfg.HTTPPort = serveHTTPPort
	}
	if flags.Changed("policy") {
		cfg.PolicyPath = servePolicy
	}
	if flags.Changed("audit-log") {
		cfg.AuditLogPath = serveAuditLog
	}
	if flags.Changed("sqlite") {
		cfg.SQLitePath = serveSQLite
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = cliLogFormat
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = cliLogLevel
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	logger, err := newLogger(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	attrs := make([]any, 0, 2*len(summary))
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("starting stewardgate", attrs...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer d.Close()

	return d.Run(ctx)
}
