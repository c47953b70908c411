package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	pb "github.com/ppiankov/stewardgate/api/proto/stewardgate/v1"
	"github.com/ppiankov/stewardgate/internal/client"
	"github.com/ppiankov/stewardgate/internal/model"
)

var (
	checkpointDetails []string
	checkpointJSON    bool
	identitiesJSON    bool
	levelFlag         int
)

func init() {
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(identitiesCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(escalateCmd)
	rootCmd.AddCommand(deceiveCmd)
	rootCmd.AddCommand(defendCmd)
	rootCmd.AddCommand(verdictCmd)
	rootCmd.AddCommand(approveCmd)

	checkpointCmd.Flags().StringArrayVar(&checkpointDetails, "detail", nil, "Request detail as key=value (repeatable)")
	checkpointCmd.Flags().BoolVar(&checkpointJSON, "json", false, "Print the decision as JSON")
	identitiesCmd.Flags().BoolVar(&identitiesJSON, "json", false, "Print identities as JSON")
	escalateCmd.Flags().IntVar(&levelFlag, "level", 0, "Quarantine level (default from policy)")
	deceiveCmd.Flags().IntVar(&levelFlag, "level", 0, "Deception level (default from policy)")
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize <id> <kind>",
	Short: "Register an identity (human, automated_agent, marine_entity, ...)",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecognize,
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <id> <action>",
	Short: "Ask the gate whether an identity may perform an action",
	Long:  "Evaluates one action request. Exits with code 3 when the request is denied.",
	Args:  cobra.ExactArgs(2),
	RunE:  runCheckpoint,
}

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List registered identities",
	Args:  cobra.NoArgs,
	RunE:  runIdentities,
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an identity's recognition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, func(c *client.Client) (pb.AdminResponse, error) {
			return c.Revoke(args[0])
		})
	},
}

var escalateCmd = &cobra.Command{
	Use:   "escalate <id>",
	Short: "Quarantine an identity at the given level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level := levelArg(cmd)
		return runAdmin(cmd, func(c *client.Client) (pb.AdminResponse, error) {
			return c.EscalateQuarantine(args[0], level)
		})
	},
}

var deceiveCmd = &cobra.Command{
	Use:   "deceive <id>",
	Short: "Set an identity's deception level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level := levelArg(cmd)
		return runAdmin(cmd, func(c *client.Client) (pb.AdminResponse, error) {
			return c.SetDeceptionLevel(args[0], level)
		})
	},
}

var defendCmd = &cobra.Command{
	Use:   "defend <id> <protocol>",
	Short: "Record that a defense protocol was engaged against an identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, func(c *client.Client) (pb.AdminResponse, error) {
			return c.EngageDefenseProtocol(args[0], args[1])
		})
	},
}

var verdictCmd = &cobra.Command{
	Use:       "verdict <id> destroy|disseminate",
	Short:     "Record a destroy or disseminate verdict against an identity",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"destroy", "disseminate"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, func(c *client.Client) (pb.AdminResponse, error) {
			return c.DestroyOrDisseminate(args[0], args[1])
		})
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve an identity for unrestricted access",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, func(c *client.Client) (pb.AdminResponse, error) {
			return c.Approve(args[0])
		})
	},
}

// dial connects to the server named by --addr.
func dial() (*client.Client, error) {
	c, err := client.New(cliAddr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cliAddr, err)
	}
	return c, nil
}

// levelArg returns nil when --level was not given so the server applies
// the policy default.
func levelArg(cmd *cobra.Command) *int {
	if !cmd.Flags().Changed("level") {
		return nil
	}
	level := levelFlag
	return &level
}

func runRecognize(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	status, err := c.RequestRecognition(model.Descriptor{ID: args[0], Kind: model.Kind(args[1])})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
	return nil
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	details, err := parseDetails(checkpointDetails)
	if err != nil {
		return err
	}

	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	dec, err := c.Evaluate(args[0], args[1], details)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkpointJSON {
		data, err := json.MarshalIndent(dec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		verdict := "DENY"
		if dec.Allowed {
			verdict = "ALLOW"
		}
		fmt.Fprintf(out, "%s %s (%s): %s\n", verdict, args[1], dec.Result, dec.Feedback)
	}

	if !dec.Allowed {
		return errDenied
	}
	return nil
}

func runIdentities(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ids, err := c.ListIdentities()
	if err != nil {
		return err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].ID < ids[j].ID })

	out := cmd.OutOrStdout()
	if identitiesJSON {
		data, err := json.MarshalIndent(ids, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No identities registered.")
		return nil
	}
	writeIdentities(out, ids)
	return nil
}

func runAdmin(cmd *cobra.Command, call func(*client.Client) (pb.AdminResponse, error)) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := call(c)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !resp.Known || resp.Identity == nil {
		fmt.Fprintf(out, "%s: unknown identity, nothing changed\n", resp.ID)
		return nil
	}
	writeIdentities(out, []model.Identity{*resp.Identity})
	return nil
}

// runHook is runAdmin for audit-only calls, which are recorded even for
// unregistered identities.
func runHook(cmd *cobra.Command, call func(*client.Client) (pb.AdminResponse, error)) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := call(c)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !resp.Known || resp.Identity == nil {
		fmt.Fprintf(out, "%s: recorded (identity not registered)\n", resp.ID)
		return nil
	}
	writeIdentities(out, []model.Identity{*resp.Identity})
	return nil
}

func writeIdentities(w io.Writer, ids []model.Identity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tPHASE\tQUARANTINE\tDECEPTION\tFAILED")
	for _, id := range ids {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			truncate(id.ID, 32), id.Kind, id.Status, id.Phase,
			id.QuarantineLevel, id.DeceptionLevel, id.FailedAttempts)
	}
	tw.Flush()
}

// parseDetails turns key=value pairs into a details map. Integer and
// boolean values keep their type.
func parseDetails(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	details := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid detail %q (want key=value)", p)
		}
		if n, err := strconv.Atoi(v); err == nil {
			details[k] = n
		} else if b, err := strconv.ParseBool(v); err == nil {
			details[k] = b
		} else {
			details[k] = v
		}
	}
	return details, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
