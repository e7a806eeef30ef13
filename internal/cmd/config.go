package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/greenroom/internal/config"
	"github.com/xcawolfe-amzn/greenroom/internal/style"
)

// Config command flags
var (
	configJSON bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect greenroom configuration",
	RunE:  requireSubcommand,
	Long: `Inspect greenroom configuration.

Commands:
  gr config show   Effective rotation policy after file and env overrides`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective rotation policy",
	Long: `Show the rotation policy after applying defaults, the config file,
and GREENROOM_* environment overrides — the values a rotation started
right now would use.`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root := config.Root()
	path := config.ConfigPath(root)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if configJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	fmt.Println(style.Bold.Render("Rotation policy"))
	fmt.Printf("  root              %s\n", root)
	fmt.Printf("  config file       %s\n", path)
	fmt.Printf("  registry file     %s\n", config.RegistryPath(root))
	fmt.Println()
	fmt.Printf("  cooldown          %v\n", cfg.Cooldown)
	fmt.Printf("  verify_retries    %d\n", cfg.VerifyRetries)
	fmt.Printf("  verify_wait       %v\n", cfg.VerifyWait)
	fmt.Printf("  switch_settle     %v\n", cfg.SwitchSettle)
	fmt.Printf("  relaunch_timeout  %v\n", cfg.RelaunchTimeout)
	fmt.Printf("  relaunch_poll     %v\n", cfg.RelaunchPoll)
	fmt.Printf("  strict_halt       %v\n", cfg.StrictHalt)
	fmt.Printf("  halt_on_live      %v\n", cfg.HaltOnLive)
	fmt.Printf("  warmup_url        %s\n", cfg.WarmupURL)
	if len(cfg.Order) > 0 {
		fmt.Printf("  order             %v\n", cfg.Order)
	}
	return nil
}

func init() {
	configShowCmd.Flags().BoolVar(&configJSON, "json", false, "Output as JSON")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
