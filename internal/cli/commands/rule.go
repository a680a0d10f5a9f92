package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"complyeye/internal/api/client"
	"complyeye/internal/models"

	"github.com/spf13/cobra"
)

func NewRuleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rule",
		Short:   "Rule management commands",
		Aliases: []string{"rules", "r"},
	}

	cmd.AddCommand(newRuleListCommand())
	cmd.AddCommand(newRuleEnableCommand())
	cmd.AddCommand(newRuleDisableCommand())
	cmd.AddCommand(newRuleImportCommand())
	cmd.AddCommand(newRuleExportCommand())

	return cmd
}

func newRuleListCommand() *cobra.Command {
	var (
		tenantID    string
		enabledOnly bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List rules for a tenant",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()

			var enabled *bool
			if enabledOnly {
				enabled = &enabledOnly
			}

			rules, err := c.ListRules(tenantID, enabled)
			if err != nil {
				return fmt.Errorf("failed to list rules: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSEVERITY\tENABLED\tPRIORITY\tTRIGGERS\tFIRED")

			for _, r := range rules {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%d\t%d\t%d\n",
					r.ID,
					r.Name,
					r.Severity,
					r.Enabled,
					r.Priority,
					len(r.Triggers),
					r.TriggerCount,
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only show enabled rules")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func newRuleEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable [rule_id]",
		Short: "Enable a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			if err := c.SetRuleEnabled(args[0], true); err != nil {
				return fmt.Errorf("failed to enable rule: %v", err)
			}
			fmt.Printf("Rule %s enabled\n", args[0])
			return nil
		},
	}
}

func newRuleDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable [rule_id]",
		Short: "Disable a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			if err := c.SetRuleEnabled(args[0], false); err != nil {
				return fmt.Errorf("failed to disable rule: %v", err)
			}
			fmt.Printf("Rule %s disabled\n", args[0])
			return nil
		},
	}
}

func newRuleImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import rules from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %v", err)
			}

			var rules []models.Rule
			if err := json.Unmarshal(data, &rules); err != nil {
				return fmt.Errorf("failed to parse rules: %v", err)
			}

			c := client.NewClient()
			for i := range rules {
				rules[i].ID = 0
				created, err := c.CreateRule(&rules[i])
				if err != nil {
					return fmt.Errorf("failed to import rule %q: %v", rules[i].Name, err)
				}
				fmt.Printf("Imported rule %q as id %d\n", created.Name, created.ID)
			}
			return nil
		},
	}
	return cmd
}

func newRuleExportCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a tenant's rules as JSON to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			rules, err := c.ListRules(tenantID, nil)
			if err != nil {
				return fmt.Errorf("failed to list rules: %v", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rules)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
