package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stewardgate/internal/archive"
	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/config"
)

var errChainBroken = errors.New("audit log hash chain is broken")

var (
	tailLines int

	replayFrom   string
	replayTo     string
	replayFormat string

	archiveConfig string
	archiveBucket string
	archivePrefix string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditReplayCmd)
	auditCmd.AddCommand(auditArchiveCmd)

	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")

	auditReplayCmd.Flags().StringVar(&replayFrom, "from", "", "Start time filter (RFC3339)")
	auditReplayCmd.Flags().StringVar(&replayTo, "to", "", "End time filter (RFC3339)")
	auditReplayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")

	auditArchiveCmd.Flags().StringVar(&archiveConfig, "config", "", "Daemon config YAML holding archive settings")
	auditArchiveCmd.Flags().StringVar(&archiveBucket, "bucket", "", "Destination bucket (overrides config)")
	auditArchiveCmd.Flags().StringVar(&archivePrefix, "prefix", "", "Key prefix (overrides config)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying, inspecting and archiving the hash-chained audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent audit log entries",
	Long:  "Reads the last N entries from the JSONL audit log and pretty-prints them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay <path> <identity-id>",
	Short: "Replay one identity's history from the audit log",
	Long:  "Reads the audit log, filters by identity and optional time range,\nand renders a decision timeline with summary.",
	Args:  cobra.ExactArgs(2),
	RunE:  runAuditReplay,
}

var auditArchiveCmd = &cobra.Command{
	Use:   "archive <path>",
	Short: "Verify an audit log and upload it to object storage",
	Long: "Checks the hash chain and uploads the log to s3://<bucket>/<prefix>/.\n" +
		"Credentials and endpoint come from --config or STEWARDGATE_ARCHIVE_* variables.",
	Args: cobra.ExactArgs(1),
	RunE: runAuditArchive,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	return fmt.Errorf("%w: line %d: %s", errChainBroken, result.ErrorLine, result.Error)
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	// Read all lines, keep last N
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	start := len(lines) - tailLines
	if start < 0 {
		start = 0
	}

	out := cmd.OutOrStdout()
	for _, line := range lines[start:] {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Fprintln(out, line)
			continue
		}
		pretty, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Fprintln(out, string(pretty))
	}
	return nil
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	filter := audit.ReplayFilter{IdentityID: args[1]}

	if replayFrom != "" {
		from, err := time.Parse(time.RFC3339, replayFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", replayFrom, err)
		}
		filter.From = from
	}
	if replayTo != "" {
		to, err := time.Parse(time.RFC3339, replayTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", replayTo, err)
		}
		filter.To = to
	}

	result, err := audit.Replay(args[0], filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch replayFormat {
	case "json":
		s, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
	default:
		fmt.Fprint(out, audit.FormatTimeline(result))
	}
	return nil
}

func runAuditArchive(cmd *cobra.Command, args []string) error {
	cfg, errs := config.Load(archiveConfig)
	if cfg == nil {
		return errors.Join(errs...)
	}
	if archiveBucket != "" {
		cfg.Archive.Bucket = archiveBucket
	}
	if archivePrefix != "" {
		cfg.Archive.Prefix = archivePrefix
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	up, err := archive.NewUploader(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	key, err := up.Upload(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archived %s to s3://%s/%s\n", args[0], cfg.Archive.Bucket, key)
	return nil
}
