package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/greenroom/internal/config"
	"github.com/xcawolfe-amzn/greenroom/internal/registry"
	"github.com/xcawolfe-amzn/greenroom/internal/style"
)

// Channels command flags
var (
	channelsPool string
	channelsJSON bool
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Inspect the channel registry",
	RunE:  requireSubcommand,
	Long: `Inspect the channel registry.

Commands:
  gr channels list       Show channels, pools, sections and fallbacks
  gr channels validate   Check the registry file without rotating`,
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show channels, pools, sections and fallbacks",
	Long: `Show every registered channel in rotation order.

Examples:
  gr channels list               # All channels
  gr channels list --pool east   # One pool
  gr channels list --json        # JSON output`,
	RunE: runChannelsList,
}

// channelItem is a channel in JSON list output.
type channelItem struct {
	Key         string   `json:"key"`
	DisplayID   string   `json:"display_id"`
	DisplayName string   `json:"display_name,omitempty"`
	Pool        string   `json:"pool"`
	Section     int      `json:"section"`
	Aliases     []string `json:"aliases,omitempty"`
	Fallback    string   `json:"fallback,omitempty"`
}

func runChannelsList(cmd *cobra.Command, args []string) error {
	reg, err := registry.Load(config.RegistryPath(config.Root()))
	if err != nil {
		return err
	}

	channels := reg.Channels()
	if channelsPool != "" {
		if _, err := reg.Pool(channelsPool); err != nil {
			return err
		}
		channels = reg.ForPool(channelsPool)
	}

	if channelsJSON {
		items := make([]channelItem, 0, len(channels))
		for _, c := range channels {
			items = append(items, channelItem{
				Key:         c.Key,
				DisplayID:   c.DisplayID,
				DisplayName: c.DisplayName,
				Pool:        c.Pool,
				Section:     c.Section,
				Aliases:     c.Aliases,
				Fallback:    c.Fallback,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	table := style.NewTable(
		style.Column{Name: "KEY", Width: 16},
		style.Column{Name: "NAME", Width: 20},
		style.Column{Name: "POOL", Width: 8},
		style.Column{Name: "SEC", Width: 3, Align: style.AlignRight},
		style.Column{Name: "FALLBACK", Width: 16},
		style.Column{Name: "ALIASES", Width: 24},
	)
	for _, c := range channels {
		table.AddRow(c.Key, c.DisplayName, c.Pool, strconv.Itoa(c.Section),
			c.Fallback, style.Dim.Render(strings.Join(c.Aliases, ", ")))
	}
	fmt.Print(table.Render())
	fmt.Println()
	fmt.Printf(" %d channels across %d pools\n", len(channels), len(reg.Pools()))
	return nil
}

var channelsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the registry file without rotating",
	Long: `Load and validate the channel registry: unique keys, known pools,
positive sections, and fallbacks that exist in the same pool.`,
	RunE: runChannelsValidate,
}

func runChannelsValidate(cmd *cobra.Command, args []string) error {
	path := config.RegistryPath(config.Root())
	reg, err := registry.Load(path)
	if err != nil {
		return fmt.Errorf("registry invalid: %w", err)
	}

	// Valid, but flag fallbacks that cross sections: the denial cascade
	// works, just without the wrong-identity inference.
	for _, c := range reg.Channels() {
		if c.Fallback == "" {
			continue
		}
		fb, err := reg.Lookup(c.Fallback)
		if err == nil && fb.Section != c.Section {
			style.PrintWarning("%s falls back to %s in a different section", c.Key, fb.Key)
		}
	}

	style.PrintSuccess("%s: %d channels, %d pools", path, len(reg.Channels()), len(reg.Pools()))
	return nil
}

func init() {
	channelsListCmd.Flags().StringVar(&channelsPool, "pool", "", "Show only this pool's channels")
	channelsListCmd.Flags().BoolVar(&channelsJSON, "json", false, "Output as JSON")

	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsValidateCmd)

	rootCmd.AddCommand(channelsCmd)
}
