package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate(): %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "rotation.toml"))
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if cfg.Cooldown != Defaults().Cooldown {
		t.Errorf("Cooldown = %v, want default %v", cfg.Cooldown, Defaults().Cooldown)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotation.toml")
	content := `
[rotation]
cooldown = "10m"
verify_retries = 4
strict_halt = true
order = ["birch", "acme-main"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cooldown != 10*time.Minute {
		t.Errorf("Cooldown = %v, want 10m", cfg.Cooldown)
	}
	if cfg.VerifyRetries != 4 {
		t.Errorf("VerifyRetries = %d, want 4", cfg.VerifyRetries)
	}
	if !cfg.StrictHalt {
		t.Error("StrictHalt = false, want true")
	}
	if len(cfg.Order) != 2 || cfg.Order[0] != "birch" {
		t.Errorf("Order = %v, want [birch acme-main]", cfg.Order)
	}
	// Unset file values keep defaults.
	if cfg.RelaunchTimeout != Defaults().RelaunchTimeout {
		t.Errorf("RelaunchTimeout = %v, want default", cfg.RelaunchTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GREENROOM_COOLDOWN", "90s")
	t.Setenv("GREENROOM_HALT_ON_LIVE", "true")
	t.Setenv("GREENROOM_ORDER", "cedar, birch")

	cfg, err := Load(filepath.Join(t.TempDir(), "rotation.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cooldown != 90*time.Second {
		t.Errorf("Cooldown = %v, want 90s", cfg.Cooldown)
	}
	if !cfg.HaltOnLive {
		t.Error("HaltOnLive = false, want true")
	}
	want := []string{"cedar", "birch"}
	if len(cfg.Order) != 2 || cfg.Order[0] != want[0] || cfg.Order[1] != want[1] {
		t.Errorf("Order = %v, want %v", cfg.Order, want)
	}
}

func TestEnvBadValueIgnored(t *testing.T) {
	t.Setenv("GREENROOM_COOLDOWN", "not-a-duration")

	cfg, err := Load(filepath.Join(t.TempDir(), "rotation.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cooldown != Defaults().Cooldown {
		t.Errorf("Cooldown = %v, want default after bad env value", cfg.Cooldown)
	}
}

func TestValidateRejectsBadPoll(t *testing.T) {
	cfg := Defaults()
	cfg.RelaunchPoll = cfg.RelaunchTimeout * 2
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted relaunch_poll above relaunch_timeout")
	}
}

func TestRootHonorsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvRoot, dir)
	if got := Root(); got != dir {
		t.Errorf("Root() = %q, want %q", got, dir)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandHome("~/gr"); got != filepath.Join(home, "gr") {
		t.Errorf("ExpandHome(~/gr) = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome(/abs/path) = %q", got)
	}
}
