package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/greenroom/internal/config"
	"github.com/xcawolfe-amzn/greenroom/internal/driver"
	"github.com/xcawolfe-amzn/greenroom/internal/engage"
	"github.com/xcawolfe-amzn/greenroom/internal/fleet"
	"github.com/xcawolfe-amzn/greenroom/internal/launcher"
	"github.com/xcawolfe-amzn/greenroom/internal/live"
	"github.com/xcawolfe-amzn/greenroom/internal/recovery"
	"github.com/xcawolfe-amzn/greenroom/internal/registry"
	"github.com/xcawolfe-amzn/greenroom/internal/rotation"
	"github.com/xcawolfe-amzn/greenroom/internal/studio"
	"github.com/xcawolfe-amzn/greenroom/internal/style"
	"github.com/xcawolfe-amzn/greenroom/internal/telemetry"
)

// Rotate command flags
var (
	rotatePool   string
	rotateCycles int
	rotateEvery  time.Duration
	rotateJSON   bool
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Run rotation cycles across the fleet",
	Long: `Run rotation cycles: every pool works through its channels in order,
switching accounts, engaging pending work, and recording an outcome per
channel. Pools run concurrently and independently.

Examples:
  gr rotate                       # One cycle, all pools
  gr rotate --pool east           # One cycle, one pool
  gr rotate --cycles 0 --every 15m  # Rotate forever, 15m between cycles
  gr rotate --json                # Machine-readable per-channel outcomes`,
	RunE: runRotate,
}

func runRotate(cmd *cobra.Command, args []string) error {
	root := config.Root()
	cfg, err := config.Load(config.ConfigPath(root))
	if err != nil {
		return err
	}
	reg, err := registry.Load(config.RegistryPath(root))
	if err != nil {
		return err
	}
	if rotatePool != "" {
		if _, err := reg.Pool(rotatePool); err != nil {
			return err
		}
	}

	runtimeDir := config.RuntimeDir(root)
	sink := telemetry.NewFileSink(filepath.Join(runtimeDir, "telemetry"))
	logger := log.New(os.Stderr, "fleet: ", log.LstdFlags)

	chrome := launcher.NewChrome(filepath.Join(runtimeDir, "locks"), nil)
	connect := func(p registry.Pool) (driver.Driver, error) {
		return driver.Connect(p.Addr())
	}
	frontend := studio.Default()
	liveSignal := live.NewFile(filepath.Join(runtimeDir, "live.json"), live.DefaultTTL)

	// One backoff table for the whole invocation: a channel denied in
	// cycle N stays skipped in cycle N+1 until its cooldown lapses.
	backoff := rotation.NewBackoff()

	build := func(pool registry.Pool) fleet.Rotator {
		poolLogger := log.New(os.Stderr, "pool "+pool.ID+": ", log.LstdFlags)
		rec := recovery.New(chrome, connect, cfg.RelaunchTimeout, cfg.RelaunchPoll, cfg.WarmupURL, poolLogger)
		return rotation.New(pool, rotation.Deps{
			Registry:  reg,
			Config:    cfg,
			Frontend:  frontend,
			Connect:   connect,
			Recoverer: rec,
			Runner:    engage.NewInbox(frontend, poolLogger),
			Live:      liveSignal,
			Backoff:   backoff,
			Logger:    poolLogger,
		})
	}

	o := fleet.New(reg, build, sink, logger)
	if rotatePool != "" {
		o.Limit(rotatePool)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --cycles 0 means rotate until interrupted.
	for i := 0; rotateCycles == 0 || i < rotateCycles; i++ {
		report := o.RunCycle(ctx)
		if rotateJSON {
			if err := printReportJSON(report); err != nil {
				return err
			}
		} else {
			printReport(report)
		}
		if ctx.Err() != nil {
			return nil
		}
		if rotateCycles != 0 && i == rotateCycles-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(rotateEvery):
		}
	}
	return nil
}

func printReportJSON(report fleet.Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printReport(report fleet.Report) {
	fmt.Println(style.Bold.Render("Cycle " + report.CycleID))
	fmt.Println()

	table := style.NewTable(
		style.Column{Name: "POOL", Width: 10},
		style.Column{Name: "PROCESSED", Width: 9, Align: style.AlignRight},
		style.Column{Name: "SKIPPED", Width: 7, Align: style.AlignRight},
		style.Column{Name: "HALTED", Width: 6, Align: style.AlignRight},
		style.Column{Name: "UNITS", Width: 6, Align: style.AlignRight},
		style.Column{Name: "STATE", Width: 20},
	)
	for _, res := range report.Results {
		processed, skipped, halted, units := res.Totals()
		state := style.Success.Render("ok")
		if res.Halted {
			state = style.Error.Render("halted")
		}
		table.AddRow(res.Pool,
			strconv.Itoa(processed), strconv.Itoa(skipped), strconv.Itoa(halted),
			strconv.Itoa(units), state)
	}
	fmt.Print(table.Render())

	for _, res := range report.Results {
		if res.Halted {
			style.PrintWarning("pool %s halted: %s", res.Pool, res.HaltReason)
		}
		for _, out := range res.Outcomes {
			if out.Diagnostic != "" && out.Status == rotation.StatusSkippedPermission {
				style.PrintWarning("%s: %s", out.ChannelKey, out.Diagnostic)
			}
			if out.SubstitutedFor != "" {
				fmt.Printf(" %s %s substituted for denied %s\n",
					style.ArrowPrefix, out.ChannelKey, out.SubstitutedFor)
			}
		}
	}

	processed, skipped, halted, units := report.Totals()
	fmt.Println()
	fmt.Printf(" %s %d channels processed, %d skipped, %d halted, %d units\n",
		style.SuccessPrefix, processed, skipped, halted, units)
}

func init() {
	rotateCmd.Flags().StringVar(&rotatePool, "pool", "", "Rotate only this pool")
	rotateCmd.Flags().IntVar(&rotateCycles, "cycles", 1, "Number of cycles to run (0 = until interrupted)")
	rotateCmd.Flags().DurationVar(&rotateEvery, "every", 15*time.Minute, "Wait between cycles")
	rotateCmd.Flags().BoolVar(&rotateJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(rotateCmd)
}
