// Package switcher performs the multi-step UI sequence that changes which
// channel identity a browser session operates as.
//
// Selection inside the account picker is alias-based, not positional: each
// channel carries case-insensitive match terms and the switcher looks for a
// picker entry containing one of them. A positional strategy (the channel's
// offset within its section) is tried first because picker layouts are
// visually stable per section, but a positional hit is only trusted when
// the entry's text also matches the channel.
package switcher

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/xcawolfe-amzn/greenroom/internal/driver"
	"github.com/xcawolfe-amzn/greenroom/internal/gate"
	"github.com/xcawolfe-amzn/greenroom/internal/registry"
	"github.com/xcawolfe-amzn/greenroom/internal/studio"
)

// Failure modes. ErrPostSwitchDenied after a successful picker selection is
// the signal that the signed-in identity is wrong for the target entirely.
var (
	ErrMenuNotFound      = errors.New("account menu not found")
	ErrTargetNotInPicker = errors.New("target channel not in account picker")
	ErrPostSwitchDenied  = errors.New("destination still denied after switch")
)

// Selection strategies recorded on a Result.
const (
	StrategyFastPath = "fast-path"
	StrategyIndex    = "index"
	StrategyAlias    = "alias"
)

// Result describes a completed switch.
type Result struct {
	// UISteps counts the UI interactions performed. Zero means the fast
	// path hit: the driver was already on the target identity.
	UISteps int

	// Strategy is how the picker entry was selected.
	Strategy string
}

// Switcher drives account switches on one pool's driver.
type Switcher struct {
	gate     *gate.Gate
	frontend studio.Frontend
	reg      *registry.Registry
	settle   time.Duration
	sleep    func(time.Duration)
	logger   *log.Logger
}

// New creates a switcher. settle is the pause after a picker selection
// before the switch is verified.
func New(g *gate.Gate, frontend studio.Frontend, reg *registry.Registry, settle time.Duration, logger *log.Logger) *Switcher {
	if logger == nil {
		logger = log.New(log.Writer(), "switcher: ", log.LstdFlags)
	}
	return &Switcher{
		gate:     g,
		frontend: frontend,
		reg:      reg,
		settle:   settle,
		sleep:    time.Sleep,
		logger:   logger,
	}
}

// SetSleep replaces the settle sleep. Tests use this to run without delays.
func (s *Switcher) SetSleep(fn func(time.Duration)) {
	s.sleep = fn
}

// SwitchTo changes the driver's signed-in channel to target via the normal
// menu route. Idempotent: when the driver already reports the target's
// identity on an accessible page, it returns immediately with zero UI
// interaction.
func (s *Switcher) SwitchTo(d driver.Driver, target registry.Channel) (Result, error) {
	if s.gate.Identity(d) == target.DisplayID && s.gate.ClassifyWithRetry(d) == gate.Accessible {
		return Result{UISteps: 0, Strategy: StrategyFastPath}, nil
	}

	steps := 0
	var opened bool
	if err := d.Eval(s.frontend.OpenAccountMenu, &opened); err != nil || !opened {
		return Result{UISteps: steps}, fmt.Errorf("%w: opening avatar menu", ErrMenuNotFound)
	}
	steps++

	if err := d.Eval(s.frontend.OpenSwitcher, &opened); err != nil || !opened {
		return Result{UISteps: steps}, fmt.Errorf("%w: opening switcher entry", ErrMenuNotFound)
	}
	steps++

	return s.completeSwitch(d, target, steps)
}

// SwitchFromDeniedPage changes the driver's channel to target starting from
// the permission-denial page, which exposes its own shortcut into the
// account picker. Only valid when the current page is the denial page.
func (s *Switcher) SwitchFromDeniedPage(d driver.Driver, target registry.Channel) (Result, error) {
	var opened bool
	if err := d.Eval(s.frontend.DeniedSwitch, &opened); err != nil || !opened {
		return Result{}, fmt.Errorf("%w: denial page switch affordance", ErrMenuNotFound)
	}
	return s.completeSwitch(d, target, 1)
}

// completeSwitch is the shared tail: pick the target in the picker, settle,
// navigate to its destination, verify access and identity.
func (s *Switcher) completeSwitch(d driver.Driver, target registry.Channel, steps int) (Result, error) {
	strategy, err := s.selectInPicker(d, target)
	if err != nil {
		return Result{UISteps: steps}, err
	}
	steps++

	s.sleep(s.settle)

	dest := s.frontend.ChannelURL(target.DisplayID)
	if err := d.Navigate(dest); err != nil {
		return Result{UISteps: steps}, fmt.Errorf("navigating to %s: %w", target.Key, err)
	}
	steps++

	if s.gate.ClassifyWithRetry(d) == gate.Denied {
		return Result{UISteps: steps, Strategy: strategy}, fmt.Errorf("%w: %s", ErrPostSwitchDenied, target.Key)
	}
	if id := s.gate.Identity(d); id != "" && id != target.DisplayID {
		return Result{UISteps: steps, Strategy: strategy},
			fmt.Errorf("%w: %s landed as %s", ErrPostSwitchDenied, target.Key, id)
	}

	s.logger.Printf("switched to %s via %s (%d steps)", target.Key, strategy, steps)
	return Result{UISteps: steps, Strategy: strategy}, nil
}

// selectInPicker finds and clicks the target's picker entry. The index
// strategy (section offset) is consulted first; its hit is only clicked
// when the entry text also matches one of the channel's terms. Otherwise
// every entry is scanned for an alias match.
func (s *Switcher) selectInPicker(d driver.Driver, target registry.Channel) (string, error) {
	var entries []string
	if err := d.Eval(s.frontend.PickerEntries, &entries); err != nil {
		return "", fmt.Errorf("%w: reading picker entries: %v", ErrTargetNotInPicker, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: picker is empty", ErrTargetNotInPicker)
	}

	index := -1
	strategy := StrategyAlias
	if offset, err := s.reg.SectionOffset(target.Key); err == nil && offset < len(entries) {
		if entryMatches(entries[offset], target) {
			index = offset
			strategy = StrategyIndex
		}
	}
	if index < 0 {
		for i, entry := range entries {
			if entryMatches(entry, target) {
				index = i
				break
			}
		}
	}
	if index < 0 {
		return "", fmt.Errorf("%w: %s not among %d entries", ErrTargetNotInPicker, target.Key, len(entries))
	}

	var clicked bool
	if err := d.Eval(s.frontend.ClickPickerEntryScript(index), &clicked); err != nil || !clicked {
		return "", fmt.Errorf("%w: clicking entry %d for %s", ErrTargetNotInPicker, index, target.Key)
	}
	return strategy, nil
}

// foldCaser performs Unicode case folding for alias comparison. Channel
// names are operator-supplied and not limited to ASCII.
var foldCaser = cases.Fold()

// entryMatches reports whether a rendered picker entry matches one of the
// channel's match terms, case-folded.
func entryMatches(entry string, c registry.Channel) bool {
	folded := foldCaser.String(entry)
	for _, term := range c.MatchTerms() {
		if term == "" {
			continue
		}
		if strings.Contains(folded, foldCaser.String(term)) {
			return true
		}
	}
	return false
}
