package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	gatemcp "github.com/ppiankov/stewardgate/internal/mcp"
)

var (
	mcpPolicy   string
	mcpAuditLog string
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpPolicy, "policy", "", "Path to policy YAML")
	mcpCmd.Flags().StringVar(&mcpAuditLog, "audit-log", "", "Path to audit log JSONL file")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs an in-process gate as an MCP (Model Context Protocol) server over stdio.\nExposes tools: steward_recognize, steward_checkpoint, steward_audit, steward_list.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := gatemcp.New(gatemcp.Config{
		PolicyPath:   mcpPolicy,
		AuditLogPath: mcpAuditLog,
		Version:      currentVersion(),
		Logger:       slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "stewardgate MCP server running on stdio")
	err = srv.Run(ctx)

	ids := srv.Gate().List()
	fmt.Fprintf(os.Stderr, "\n%d identities registered, %d audit entries\n", len(ids), len(srv.Gate().AuditLog()))
	return err
}
