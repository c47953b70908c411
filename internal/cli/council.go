package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stewardgate/internal/council"
)

var (
	councilAll       bool
	councilJSON      bool
	councilReason    string
	councilRequester string
	councilResolver  string
)

func init() {
	rootCmd.AddCommand(councilCmd)
	councilCmd.AddCommand(councilPendingCmd)
	councilCmd.AddCommand(councilRequestCmd)
	councilCmd.AddCommand(councilApproveCmd)
	councilCmd.AddCommand(councilDenyCmd)

	councilPendingCmd.Flags().BoolVar(&councilAll, "all", false, "Include resolved reviews")
	councilPendingCmd.Flags().BoolVar(&councilJSON, "json", false, "Print reviews as JSON")
	councilRequestCmd.Flags().StringVar(&councilReason, "reason", "", "Why the identity needs review")
	councilRequestCmd.Flags().StringVar(&councilRequester, "requester", currentUser(), "Who is asking")
	councilApproveCmd.Flags().StringVar(&councilResolver, "resolver", currentUser(), "Who decided")
	councilDenyCmd.Flags().StringVar(&councilResolver, "resolver", currentUser(), "Who decided")
}

var councilCmd = &cobra.Command{
	Use:   "council",
	Short: "Manage council reviews of quarantined or pending identities",
}

var councilPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending reviews",
	Args:  cobra.NoArgs,
	RunE:  runCouncilPending,
}

var councilRequestCmd = &cobra.Command{
	Use:   "request <id>",
	Short: "Ask the council to review an identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runCouncilRequest,
}

var councilApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending review (approves the identity)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCouncilResolve(cmd, args[0], council.StatusApproved)
	},
}

var councilDenyCmd = &cobra.Command{
	Use:   "deny <id>",
	Short: "Deny a pending review (revokes the identity)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCouncilResolve(cmd, args[0], council.StatusDenied)
	},
}

func runCouncilPending(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	reviews, err := c.ListReviews(!councilAll)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if councilJSON {
		data, err := json.MarshalIndent(reviews, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	if len(reviews) == 0 {
		fmt.Fprintln(out, "No pending reviews.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTITY\tSTATUS\tREQUESTER\tAGE\tREASON")
	for _, r := range reviews {
		age := time.Since(r.CreatedAt).Truncate(time.Second)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			truncate(r.IdentityID, 32), r.Status, r.Requester, age, truncate(r.Reason, 50))
	}
	tw.Flush()
	return nil
}

func runCouncilRequest(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	r, err := c.RequestReview(args[0], councilReason, councilRequester)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Review requested for %s (%s)\n", r.IdentityID, r.Status)
	return nil
}

func runCouncilResolve(cmd *cobra.Command, id string, verdict council.Status) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	r, err := c.ResolveReview(id, verdict, councilResolver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Review for %s %s by %s\n", r.IdentityID, r.Status, r.Resolver)
	return nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
