package main

import (
	"fmt"
	"os"

	"complyeye/internal/cli/commands"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "complyeye",
	Short: "ComplyEye CLI - compliance alerting management",
	Long: `ComplyEye CLI is a command-line tool for managing compliance alert
rules and firings. It talks to a running ComplyEye server; set
COMPLYEYE_API_URL to point at it (default http://localhost:8080).`,
}

func init() {
	rootCmd.AddCommand(commands.NewRuleCommand())
	rootCmd.AddCommand(commands.NewFiringCommand())
	rootCmd.AddCommand(commands.NewEventCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
