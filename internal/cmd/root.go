// Package cmd implements the gr command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/greenroom/internal/style"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gr",
	Short: "Rotate browser pools through channel accounts",
	Long: `Greenroom rotates a small fleet of signed-in browser sessions through
their channel accounts: switch identity, work the channel's pending
inbox, verify it cleared, and move on. Denied channels fall back to a
sibling and cool down; crashed sessions are recovered once per incident.

Commands:
  gr rotate              Run rotation cycles across the fleet
  gr channels list       Show the channel registry
  gr channels validate   Check the registry file
  gr watch               Live fleet dashboard
  gr config show         Effective rotation policy`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		style.PrintError("%v", err)
		return 1
	}
	return 0
}

// requireSubcommand is the RunE for parent commands that only group.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}
