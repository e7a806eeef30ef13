package switcher

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/xcawolfe-amzn/greenroom/internal/driver/drivertest"
	"github.com/xcawolfe-amzn/greenroom/internal/gate"
	"github.com/xcawolfe-amzn/greenroom/internal/registry"
	"github.com/xcawolfe-amzn/greenroom/internal/studio"
)

var testFrontend = studio.Frontend{
	DeniedProbe:      "deniedProbe",
	IdentityProbe:    "identityProbe",
	OpenAccountMenu:  "openMenu",
	OpenSwitcher:     "openSwitcher",
	DeniedSwitch:     "deniedSwitch",
	PickerEntries:    "pickerEntries",
	ClickPickerEntry: "click:%d",
	DestinationURL:   "https://studio.test/%s/inbox",
}

const switcherRegistry = `
[pools.east]
port = 9222

[[channels]]
key = "acme-main"
display_id = "UCacme001"
display_name = "Acme"
pool = "east"
section = 1
aliases = ["acme"]
fallback = "acme-alt"

[[channels]]
key = "acme-alt"
display_id = "UCacme002"
display_name = "Acme Clips"
pool = "east"
section = 1
`

func newSwitcher(t *testing.T) (*Switcher, *registry.Registry) {
	t.Helper()
	reg, err := registry.Parse([]byte(switcherRegistry))
	if err != nil {
		t.Fatalf("Parse registry: %v", err)
	}
	s := New(gate.New(testFrontend), testFrontend, reg, time.Millisecond, log.New(io.Discard, "", 0))
	s.SetSleep(func(time.Duration) {})
	return s, reg
}

// wireHappyPicker sets up a driver where the picker works and identity
// follows navigation to a channel's destination URL.
func wireHappyPicker(d *drivertest.Fake, entries []string) {
	d.Respond("deniedProbe", false)
	d.Respond("openMenu", true)
	d.Respond("openSwitcher", true)
	d.Respond("deniedSwitch", true)
	d.Respond("pickerEntries", entries)
	for i := range entries {
		d.Respond(fmt.Sprintf("click:%d", i), true)
	}
	d.RespondFunc("identityProbe", func() (any, error) {
		url, _ := d.CurrentURL()
		switch {
		case strings.Contains(url, "UCacme001"):
			return "UCacme001", nil
		case strings.Contains(url, "UCacme002"):
			return "UCacme002", nil
		}
		return "", nil
	})
}

func TestSwitchToFastPathIsIdempotent(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	wireHappyPicker(d, []string{"Acme", "Acme Clips"})
	d.URL = "https://studio.test/UCacme001/inbox"

	target, _ := reg.Lookup("acme-main")

	res, err := s.SwitchTo(d, target)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if res.UISteps != 0 {
		t.Errorf("UISteps = %d, want 0 on fast path", res.UISteps)
	}
	if res.Strategy != StrategyFastPath {
		t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyFastPath)
	}

	// Second call with no intervening state change: still zero UI work.
	d.Reset()
	res, err = s.SwitchTo(d, target)
	if err != nil {
		t.Fatalf("second SwitchTo: %v", err)
	}
	if res.UISteps != 0 {
		t.Errorf("second call UISteps = %d, want 0", res.UISteps)
	}
	for _, call := range d.Calls() {
		if call.Op == "navigate" {
			t.Errorf("fast path navigated to %s", call.Arg)
		}
		if call.Op == "eval" && (call.Arg == "openMenu" || call.Arg == "openSwitcher" || strings.HasPrefix(call.Arg, "click:")) {
			t.Errorf("fast path performed UI interaction %s", call.Arg)
		}
	}
}

func TestSwitchToIndexStrategy(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	// acme-alt has section offset 1 and the entry there matches its name.
	wireHappyPicker(d, []string{"Acme", "Acme Clips"})

	target, _ := reg.Lookup("acme-alt")
	res, err := s.SwitchTo(d, target)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if res.Strategy != StrategyIndex {
		t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyIndex)
	}
	if d.CountOp("eval", "click:1") != 1 {
		t.Errorf("click:1 evaluated %d times, want 1", d.CountOp("eval", "click:1"))
	}
	if res.UISteps == 0 {
		t.Error("UISteps = 0 for a real switch")
	}
}

func TestSwitchToAliasFallback(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	// Picker order does not match the section offset: a header row shifts
	// everything down, so the index strategy's candidate text won't match.
	wireHappyPicker(d, []string{"Signed in as operator", "Acme", "Acme Clips"})
	d.RespondFunc("identityProbe", func() (any, error) { return "UCacme002", nil })

	target, _ := reg.Lookup("acme-alt")
	res, err := s.SwitchTo(d, target)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if res.Strategy != StrategyAlias {
		t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyAlias)
	}
	if d.CountOp("eval", "click:2") != 1 {
		t.Errorf("click:2 evaluated %d times, want 1", d.CountOp("eval", "click:2"))
	}
}

func TestSwitchToAliasIsCaseFolded(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	wireHappyPicker(d, []string{"ACME CLIPS · 3 videos"})
	d.RespondFunc("identityProbe", func() (any, error) { return "UCacme002", nil })

	target, _ := reg.Lookup("acme-alt")
	if _, err := s.SwitchTo(d, target); err != nil {
		t.Fatalf("SwitchTo with case-folded alias: %v", err)
	}
}

func TestSwitchToTargetNotInPicker(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	wireHappyPicker(d, []string{"Someone Else"})

	target, _ := reg.Lookup("acme-main")
	_, err := s.SwitchTo(d, target)
	if !errors.Is(err, ErrTargetNotInPicker) {
		t.Errorf("SwitchTo = %v, want ErrTargetNotInPicker", err)
	}
}

func TestSwitchToMenuNotFound(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	d.Respond("deniedProbe", false)
	d.Respond("identityProbe", "")
	d.Respond("openMenu", false)

	target, _ := reg.Lookup("acme-main")
	_, err := s.SwitchTo(d, target)
	if !errors.Is(err, ErrMenuNotFound) {
		t.Errorf("SwitchTo = %v, want ErrMenuNotFound", err)
	}
}

func TestSwitchToPostSwitchDenied(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	wireHappyPicker(d, []string{"Acme", "Acme Clips"})
	d.RespondFunc("identityProbe", func() (any, error) { return "", nil })
	// The destination still renders the denial page after the switch.
	d.Respond("deniedProbe", true)

	target, _ := reg.Lookup("acme-main")
	_, err := s.SwitchTo(d, target)
	if !errors.Is(err, ErrPostSwitchDenied) {
		t.Errorf("SwitchTo = %v, want ErrPostSwitchDenied", err)
	}
}

func TestSwitchToWrongIdentityAfterSwitch(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	wireHappyPicker(d, []string{"Acme", "Acme Clips"})
	// Lands as a different channel than requested.
	d.RespondFunc("identityProbe", func() (any, error) { return "UCsomeoneelse", nil })

	target, _ := reg.Lookup("acme-main")
	_, err := s.SwitchTo(d, target)
	if !errors.Is(err, ErrPostSwitchDenied) {
		t.Errorf("SwitchTo = %v, want ErrPostSwitchDenied on identity mismatch", err)
	}
}

func TestSwitchFromDeniedPage(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	wireHappyPicker(d, []string{"Acme", "Acme Clips"})

	target, _ := reg.Lookup("acme-main")
	res, err := s.SwitchFromDeniedPage(d, target)
	if err != nil {
		t.Fatalf("SwitchFromDeniedPage: %v", err)
	}
	if d.CountOp("eval", "deniedSwitch") != 1 {
		t.Errorf("deniedSwitch evaluated %d times, want 1", d.CountOp("eval", "deniedSwitch"))
	}
	if d.CountOp("eval", "openMenu") != 0 {
		t.Error("denied-page path opened the avatar menu")
	}
	if res.UISteps == 0 {
		t.Error("UISteps = 0 for denied-page switch")
	}
}

func TestSwitchFromDeniedPageNoAffordance(t *testing.T) {
	s, reg := newSwitcher(t)
	d := drivertest.New()
	d.Respond("deniedSwitch", false)

	target, _ := reg.Lookup("acme-main")
	_, err := s.SwitchFromDeniedPage(d, target)
	if !errors.Is(err, ErrMenuNotFound) {
		t.Errorf("SwitchFromDeniedPage = %v, want ErrMenuNotFound", err)
	}
}
