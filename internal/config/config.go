// Package config provides Greenroom configuration: the rotation policy
// values and workspace root resolution.
//
// All policy toggles live in one Rotation struct passed by value into the
// coordinator and fleet constructors. There is no ambient mutable state:
// environment variables are folded in once at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvRoot overrides the workspace root directory.
const EnvRoot = "GREENROOM_ROOT"

// DefaultRootDir is the workspace root when GREENROOM_ROOT is unset.
const DefaultRootDir = "~/gr"

// Rotation holds the policy values for one rotation run. Zero values are
// not meaningful; start from Defaults().
type Rotation struct {
	// Cooldown is how long a permission-denied channel is skipped before
	// the rotation will contact it again.
	Cooldown time.Duration `toml:"cooldown"`

	// VerifyRetries is how many times the coordinator re-invokes the
	// engagement runner when a channel still shows pending work.
	VerifyRetries int `toml:"verify_retries"`

	// VerifyWait is the pause before each verify re-check.
	VerifyWait time.Duration `toml:"verify_wait"`

	// SwitchSettle is the pause after a picker selection before verifying
	// the switch landed.
	SwitchSettle time.Duration `toml:"switch_settle"`

	// RelaunchTimeout bounds how long recovery waits for a relaunched
	// browser to become reachable.
	RelaunchTimeout time.Duration `toml:"relaunch_timeout"`

	// RelaunchPoll is the reachability polling interval during relaunch.
	RelaunchPoll time.Duration `toml:"relaunch_poll"`

	// StrictHalt stops a pool's cycle when a channel ends in an
	// unrecovered error. Default off: record the error and continue.
	StrictHalt bool `toml:"strict_halt"`

	// HaltOnLive stops a pool's cycle when a channel is live elsewhere,
	// instead of skipping just that channel. Default off.
	HaltOnLive bool `toml:"halt_on_live"`

	// Order overrides the registry rotation order (list of channel keys).
	Order []string `toml:"order"`

	// WarmupURL is navigated once after a relaunch so stored session
	// cookies are loaded before account work resumes.
	WarmupURL string `toml:"warmup_url"`
}

// Defaults returns the baseline rotation policy.
func Defaults() Rotation {
	return Rotation{
		Cooldown:        30 * time.Minute,
		VerifyRetries:   2,
		VerifyWait:      5 * time.Second,
		SwitchSettle:    2 * time.Second,
		RelaunchTimeout: 45 * time.Second,
		RelaunchPoll:    time.Second,
		WarmupURL:       "https://studio.youtube.com",
	}
}

// configFile is the on-disk TOML shape.
type configFile struct {
	Rotation Rotation `toml:"rotation"`
}

// Load reads the rotation config file (if present), applies defaults for
// unset values, then applies GREENROOM_* environment overrides.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (Rotation, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	} else {
		var file configFile
		if err := toml.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
		cfg = merge(cfg, file.Rotation)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// merge overlays non-zero file values onto the defaults. Booleans from the
// file always win (false is a valid explicit setting in TOML).
func merge(base, file Rotation) Rotation {
	out := base
	if file.Cooldown > 0 {
		out.Cooldown = file.Cooldown
	}
	if file.VerifyRetries > 0 {
		out.VerifyRetries = file.VerifyRetries
	}
	if file.VerifyWait > 0 {
		out.VerifyWait = file.VerifyWait
	}
	if file.SwitchSettle > 0 {
		out.SwitchSettle = file.SwitchSettle
	}
	if file.RelaunchTimeout > 0 {
		out.RelaunchTimeout = file.RelaunchTimeout
	}
	if file.RelaunchPoll > 0 {
		out.RelaunchPoll = file.RelaunchPoll
	}
	if len(file.Order) > 0 {
		out.Order = file.Order
	}
	if file.WarmupURL != "" {
		out.WarmupURL = file.WarmupURL
	}
	out.StrictHalt = file.StrictHalt
	out.HaltOnLive = file.HaltOnLive
	return out
}

// applyEnv folds GREENROOM_* overrides into cfg. Unparseable values are
// ignored rather than fatal: a typo'd env var should not block a rotation.
func applyEnv(cfg *Rotation) {
	if v := os.Getenv("GREENROOM_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cooldown = d
		}
	}
	if v := os.Getenv("GREENROOM_VERIFY_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.VerifyRetries = n
		}
	}
	if v := os.Getenv("GREENROOM_VERIFY_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.VerifyWait = d
		}
	}
	if v := os.Getenv("GREENROOM_RELAUNCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RelaunchTimeout = d
		}
	}
	if v := os.Getenv("GREENROOM_STRICT_HALT"); v != "" {
		cfg.StrictHalt = isTruthy(v)
	}
	if v := os.Getenv("GREENROOM_HALT_ON_LIVE"); v != "" {
		cfg.HaltOnLive = isTruthy(v)
	}
	if v := os.Getenv("GREENROOM_ORDER"); v != "" {
		var order []string
		for _, key := range strings.Split(v, ",") {
			if key = strings.TrimSpace(key); key != "" {
				order = append(order, key)
			}
		}
		if len(order) > 0 {
			cfg.Order = order
		}
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate rejects values the coordinator cannot run with.
func (r Rotation) Validate() error {
	if r.Cooldown <= 0 {
		return fmt.Errorf("config: cooldown must be positive, got %v", r.Cooldown)
	}
	if r.VerifyRetries < 0 {
		return fmt.Errorf("config: verify_retries must be >= 0, got %d", r.VerifyRetries)
	}
	if r.RelaunchTimeout <= 0 {
		return fmt.Errorf("config: relaunch_timeout must be positive, got %v", r.RelaunchTimeout)
	}
	if r.RelaunchPoll <= 0 || r.RelaunchPoll > r.RelaunchTimeout {
		return fmt.Errorf("config: relaunch_poll %v must be positive and below relaunch_timeout %v",
			r.RelaunchPoll, r.RelaunchTimeout)
	}
	return nil
}

// Root returns the workspace root directory, honoring GREENROOM_ROOT and
// expanding a leading ~/.
func Root() string {
	root := os.Getenv(EnvRoot)
	if root == "" {
		root = DefaultRootDir
	}
	return ExpandHome(root)
}

// RegistryPath returns the default channel registry file location.
func RegistryPath(root string) string {
	return filepath.Join(root, "channels.toml")
}

// ConfigPath returns the default rotation config file location.
func ConfigPath(root string) string {
	return filepath.Join(root, "rotation.toml")
}

// RuntimeDir returns the directory for runtime state (telemetry, live
// signal, pool locks).
func RuntimeDir(root string) string {
	return filepath.Join(root, ".runtime")
}

// ExpandHome expands a leading ~/ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~/ or if the home
// directory cannot be determined.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, path[2:])
}
