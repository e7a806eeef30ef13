package cmd

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/greenroom/internal/config"
	"github.com/xcawolfe-amzn/greenroom/internal/telemetry"
	watchtui "github.com/xcawolfe-amzn/greenroom/internal/tui/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live fleet dashboard",
	Long: `Show a live dashboard of the fleet: each pool's latest cycle with
processed/skipped/halted counts and halt reasons, refreshed from the
rotation telemetry file.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(config.RuntimeDir(config.Root()), "telemetry")
	path := filepath.Join(dir, telemetry.EventsFile)

	p := tea.NewProgram(watchtui.New(path), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running watch TUI: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
