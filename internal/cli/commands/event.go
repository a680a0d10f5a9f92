package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"complyeye/internal/api/client"

	"github.com/spf13/cobra"
)

func NewEventCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "event",
		Short:   "Event ingestion commands",
		Aliases: []string{"events", "e"},
	}

	cmd.AddCommand(newEventSendCommand())

	return cmd
}

func newEventSendCommand() *cobra.Command {
	var (
		tenantID string
		source   string
		dataJSON string
		dataFile string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a compliance event for evaluation",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(dataJSON)
			if dataFile != "" {
				var err error
				raw, err = os.ReadFile(dataFile)
				if err != nil {
					return fmt.Errorf("failed to read data file: %v", err)
				}
			}

			var data map[string]any
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("failed to parse event data: %v", err)
			}

			c := client.NewClient()
			firings, err := c.SendEvent(tenantID, source, data)
			if err != nil {
				return fmt.Errorf("failed to send event: %v", err)
			}

			if len(firings) == 0 {
				fmt.Println("No rules fired")
				return nil
			}
			for _, rec := range firings {
				fmt.Printf("Rule %q fired (firing %d, dispatch %s, suppressed %t)\n",
					rec.RuleName, rec.ID, rec.DispatchStatus, rec.Suppressed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().StringVar(&source, "source", "", "Event source: poam, control or emass (required)")
	cmd.Flags().StringVar(&dataJSON, "data", "{}", "Event payload as inline JSON")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "Read the event payload from a JSON file")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}
