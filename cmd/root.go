// Package cmd provides the ruleguard command-line interface.
package cmd

import (
	"encoding/json"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

// NewRootCmd creates the ruleguard command with all subcommands. Running
// ruleguard without a subcommand starts the API server instead; see main.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ruleguard",
		Short: "Detection rule validation and alert management",
		Long: `ruleguard validates detection rule payloads and drives the alerting API.

Run without a command to start the HTTP API server.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newAlertsCmd())

	return root
}

// IsCommand reports whether arg selects a CLI command rather than the server
func IsCommand(arg string) bool {
	switch arg {
	case "help", "-h", "--help", "completion":
		return true
	}
	for _, c := range NewRootCmd().Commands() {
		if c.Name() == arg || c.HasAlias(arg) {
			return true
		}
	}
	return false
}

// outputAsJSON writes data as indented JSON
func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
