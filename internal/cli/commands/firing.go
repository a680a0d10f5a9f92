package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"complyeye/internal/api/client"

	"github.com/spf13/cobra"
)

func NewFiringCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "firing",
		Short:   "Firing (alert) management commands",
		Aliases: []string{"firings", "f"},
	}

	cmd.AddCommand(newFiringListCommand())
	cmd.AddCommand(newFiringAcknowledgeCommand())
	cmd.AddCommand(newFiringResolveCommand())

	return cmd
}

func newFiringListCommand() *cobra.Command {
	var (
		tenantID string
		status   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List firings",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()

			recs, err := c.ListFirings(tenantID, status, limit)
			if err != nil {
				return fmt.Errorf("failed to list firings: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tRULE\tSEVERITY\tSTATUS\tSUPPRESSED\tDISPATCH\tESC\tFIRED")

			for _, rec := range recs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\t%d\t%s\n",
					rec.ID,
					rec.RuleName,
					rec.Severity,
					rec.Status,
					rec.Suppressed,
					rec.DispatchStatus,
					rec.EscalationLevel,
					rec.FiredAt.Format(time.RFC3339),
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active/acknowledged/resolved)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of firings")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func newFiringAcknowledgeCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:     "acknowledge [firing_id]",
		Short:   "Acknowledge a firing",
		Aliases: []string{"ack"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			if err := c.AcknowledgeFiring(args[0], userID); err != nil {
				return fmt.Errorf("failed to acknowledge firing: %v", err)
			}
			fmt.Printf("Firing %s acknowledged\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Acknowledging user (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newFiringResolveCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "resolve [firing_id]",
		Short: "Resolve a firing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			if err := c.ResolveFiring(args[0], userID); err != nil {
				return fmt.Errorf("failed to resolve firing: %v", err)
			}
			fmt.Printf("Firing %s resolved\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Resolving user (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
