// Package rotation drives one pool's channel rotation: for each channel in
// turn, decide whether to switch, retry, fall back to a sibling, recover a
// crashed session, or skip and continue.
//
// A coordinator owns its pool's single driver outright and processes
// channels strictly sequentially; the only unit of abandonment is "stop
// the rest of this pool's cycle", triggered by fatal session recovery or
// an explicitly configured halt policy. The coordinator is the error
// boundary: nothing escapes a turn except through its Outcome.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xcawolfe-amzn/greenroom/internal/config"
	"github.com/xcawolfe-amzn/greenroom/internal/driver"
	"github.com/xcawolfe-amzn/greenroom/internal/gate"
	"github.com/xcawolfe-amzn/greenroom/internal/live"
	"github.com/xcawolfe-amzn/greenroom/internal/recovery"
	"github.com/xcawolfe-amzn/greenroom/internal/registry"
	"github.com/xcawolfe-amzn/greenroom/internal/studio"
	"github.com/xcawolfe-amzn/greenroom/internal/switcher"
)

// Stats is the engagement result for one run over a channel.
type Stats struct {
	Processed    int
	AllProcessed bool
}

// Runner executes the per-channel engagement task against the driver the
// coordinator hands it, which may change mid-cycle after a session
// recovery. Implementations report session-transport failures with error
// text matching the driver's session-broken markers; everything else is an
// ordinary task failure.
type Runner interface {
	// Run engages the channel once and reports how much it processed.
	Run(d driver.Driver, channel registry.Channel) (Stats, error)

	// Pending reports how many work units the channel still shows.
	Pending(d driver.Driver, channel registry.Channel) (int, error)
}

// Turn states, logged as the per-channel state machine advances.
type turnState string

const (
	statePending    turnState = "pending"
	stateBackoff    turnState = "checking-backoff"
	stateLive       turnState = "checking-live"
	stateSwitching  turnState = "switching"
	stateEngaging   turnState = "engaging"
	stateRecovering turnState = "recovering"
	stateVerifying  turnState = "verifying"
	stateSkipped    turnState = "skipped"
	stateDone       turnState = "done"
)

// Deps are the coordinator's collaborators. Registry, Config, Frontend,
// Connect, Recoverer and Runner are required; Live, Backoff and Logger
// have working defaults.
type Deps struct {
	Registry  *registry.Registry
	Config    config.Rotation
	Frontend  studio.Frontend
	Connect   recovery.ConnectFunc
	Recoverer *recovery.Recoverer
	Runner    Runner
	Live      live.Signal
	Backoff   *Backoff
	Logger    *log.Logger
}

// Coordinator rotates one pool through its channels.
type Coordinator struct {
	pool      registry.Pool
	reg       *registry.Registry
	cfg       config.Rotation
	frontend  studio.Frontend
	gate      *gate.Gate
	switcher  *switcher.Switcher
	recoverer *recovery.Recoverer
	runner    Runner
	live      live.Signal
	backoff   *Backoff
	connect   recovery.ConnectFunc

	drv    driver.Driver
	sleep  func(time.Duration)
	logger *log.Logger
}

// New creates a coordinator for one pool.
func New(pool registry.Pool, deps Deps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("pool %s: ", pool.ID), log.LstdFlags)
	}
	if deps.Live == nil {
		deps.Live = live.None{}
	}
	if deps.Backoff == nil {
		deps.Backoff = NewBackoff()
	}

	g := gate.New(deps.Frontend)
	return &Coordinator{
		pool:      pool,
		reg:       deps.Registry,
		cfg:       deps.Config,
		frontend:  deps.Frontend,
		gate:      g,
		switcher:  switcher.New(g, deps.Frontend, deps.Registry, deps.Config.SwitchSettle, logger),
		recoverer: deps.Recoverer,
		runner:    deps.Runner,
		live:      deps.Live,
		backoff:   deps.Backoff,
		connect:   deps.Connect,
		sleep:     time.Sleep,
		logger:    logger,
	}
}

// SetSleep replaces all waits (verify, settle). Tests use this to run fast.
func (c *Coordinator) SetSleep(fn func(time.Duration)) {
	c.sleep = fn
	c.switcher.SetSleep(fn)
}

// Backoff exposes the pool's backoff table (shared with telemetry/status
// displays; writes stay with this coordinator).
func (c *Coordinator) Backoff() *Backoff {
	return c.backoff
}

// RunCycle processes the pool's channels once, in rotation order. A fatal
// session recovery or a configured halt policy stops the cycle; remaining
// channels are recorded as skipped, never silently dropped.
func (c *Coordinator) RunCycle(ctx context.Context, cycleID string) PoolResult {
	if cycleID == "" {
		cycleID = uuid.NewString()
	}
	res := PoolResult{Pool: c.pool.ID, CycleID: cycleID}

	if err := c.ensureDriver(); err != nil {
		c.logger.Printf("cycle %s: no usable session: %v", cycleID, err)
		res.Halted = true
		res.HaltReason = err.Error()
		for _, ch := range c.reg.RotationOrder(c.pool.ID, "", c.cfg.Order) {
			res.Outcomes = append(res.Outcomes, c.skipOutcome(ch, StatusSkippedPoolHalted, "pool halted before start"))
		}
		return res
	}

	order := c.reg.RotationOrder(c.pool.ID, c.currentChannelKey(), c.cfg.Order)
	c.logger.Printf("cycle %s: rotating %d channels", cycleID, len(order))

	for i, ch := range order {
		if ctx.Err() != nil {
			res.Halted = true
			res.HaltReason = "canceled"
			res.Outcomes = append(res.Outcomes, c.skipRemaining(order[i:], "cycle canceled")...)
			break
		}

		out, fatal := c.runTurn(ch)
		res.Outcomes = append(res.Outcomes, out)

		switch {
		case fatal:
			res.Halted = true
			res.HaltReason = "session recovery exhausted"
			res.Outcomes = append(res.Outcomes, c.skipRemaining(order[i+1:], "pool halted: session lost")...)
		case c.cfg.StrictHalt && out.Status == StatusError:
			res.Halted = true
			res.HaltReason = "strict-halt: " + out.Err
			res.Outcomes = append(res.Outcomes, c.skipRemaining(order[i+1:], "pool halted: strict policy")...)
		case c.cfg.HaltOnLive && out.Status == StatusSkippedLive:
			res.Halted = true
			res.HaltReason = "live-priority: " + ch.Key + " is live"
			res.Outcomes = append(res.Outcomes, c.skipRemaining(order[i+1:], "pool halted: live priority")...)
		default:
			continue
		}
		break
	}

	processed, skipped, halted, units := res.Totals()
	c.logger.Printf("cycle %s: done (processed=%d skipped=%d halted=%d units=%d)",
		cycleID, processed, skipped, halted, units)
	return res
}

// runTurn processes one channel's turn. The returned fatal flag means the
// pool's session is gone for this cycle.
func (c *Coordinator) runTurn(ch registry.Channel) (Outcome, bool) {
	st := statePending

	st = c.transition(ch, st, stateBackoff)
	if c.backoff.Active(ch.Key) {
		c.transition(ch, st, stateSkipped)
		return c.skipOutcome(ch, StatusSkippedCooldown,
			fmt.Sprintf("cooldown, %s remaining", c.backoff.Remaining(ch.Key).Round(time.Second))), false
	}

	st = c.transition(ch, st, stateLive)
	if c.live.IsLiveElsewhere(ch.Key) {
		c.transition(ch, st, stateSkipped)
		return c.skipOutcome(ch, StatusSkippedLive, "live elsewhere"), false
	}

	st = c.transition(ch, st, stateSwitching)
	target, substituted, switchOut, fatal, ok := c.switchWithCascade(ch)
	if !ok {
		c.transition(ch, st, stateSkipped)
		return switchOut, fatal
	}

	st = c.transition(target, st, stateEngaging)
	stats, err := c.runner.Run(c.drv, target)
	if err != nil && driver.IsSessionBroken(err) {
		st = c.transition(target, st, stateRecovering)
		if rerr := c.recoverSession(); rerr != nil {
			return Outcome{
				ChannelKey:     target.Key,
				SubstitutedFor: substitutedKey(ch, substituted),
				Status:         StatusError,
				Processed:      stats.Processed,
				Err:            fmt.Sprintf("%v (recovery: %v)", err, rerr),
				UpdatedAt:      time.Now(),
			}, true
		}
		// Fresh session: put the page back on the channel and retry the
		// engagement exactly once.
		if nerr := c.drv.Navigate(c.frontend.ChannelURL(target.DisplayID)); nerr != nil {
			err = fmt.Errorf("re-navigating after recovery: %w", nerr)
		} else {
			st = c.transition(target, st, stateEngaging)
			stats, err = c.runner.Run(c.drv, target)
		}
	}
	if err != nil {
		c.transition(target, st, stateDone)
		return Outcome{
			ChannelKey:     target.Key,
			SubstitutedFor: substitutedKey(ch, substituted),
			Status:         StatusError,
			Processed:      stats.Processed,
			Err:            err.Error(),
			UpdatedAt:      time.Now(),
		}, false
	}

	st = c.transition(target, st, stateVerifying)
	processed := stats.Processed
	all := stats.AllProcessed
	for attempt := 0; !all && attempt < c.cfg.VerifyRetries; attempt++ {
		c.sleep(c.cfg.VerifyWait)
		pending, perr := c.runner.Pending(c.drv, target)
		if perr != nil {
			// Unclear whether work remains; call the turn done rather
			// than burning retries on a probe that cannot answer.
			break
		}
		if pending == 0 {
			all = true
			break
		}
		c.logger.Printf("%s: %d units still pending, re-engaging (%d/%d)",
			target.Key, pending, attempt+1, c.cfg.VerifyRetries)
		again, rerr := c.runner.Run(c.drv, target)
		processed += again.Processed
		if rerr != nil {
			c.transition(target, st, stateDone)
			return Outcome{
				ChannelKey:     target.Key,
				SubstitutedFor: substitutedKey(ch, substituted),
				Status:         StatusError,
				Processed:      processed,
				Err:            rerr.Error(),
				UpdatedAt:      time.Now(),
			}, false
		}
		all = again.AllProcessed
	}

	c.transition(target, st, stateDone)
	status := StatusEngaged
	if !all {
		status = StatusNotCleared
	}
	return Outcome{
		ChannelKey:     target.Key,
		SubstitutedFor: substitutedKey(ch, substituted),
		Status:         status,
		Processed:      processed,
		AllProcessed:   all,
		UpdatedAt:      time.Now(),
	}, false
}

// switchWithCascade lands the driver on ch, running the denial cascade
// when the plain switch fails: (a) the designated fallback sibling via the
// denial page, substituting it for the rest of the turn; (b) a direct
// picker switch for the original from the denial page; (c) give up,
// back off the channel and annotate the outcome.
func (c *Coordinator) switchWithCascade(ch registry.Channel) (target registry.Channel, substituted bool, out Outcome, fatal, ok bool) {
	_, err := c.switcher.SwitchTo(c.drv, ch)
	if err == nil {
		return ch, false, Outcome{}, false, true
	}

	if driver.IsSessionBroken(err) {
		if rerr := c.recoverSession(); rerr != nil {
			return ch, false, Outcome{
				ChannelKey: ch.Key,
				Status:     StatusError,
				Err:        fmt.Sprintf("%v (recovery: %v)", err, rerr),
				UpdatedAt:  time.Now(),
			}, true, false
		}
		if _, err = c.switcher.SwitchTo(c.drv, ch); err == nil {
			return ch, false, Outcome{}, false, true
		}
	}

	originalErr := err
	c.logger.Printf("%s: switch failed (%v), running denial cascade", ch.Key, err)

	// (a) fallback sibling, at most once per turn. A fallback inside its
	// own cooldown is never contacted; the cascade falls through to (b).
	var fbErr error
	var fb registry.Channel
	if ch.Fallback != "" {
		if fb, fbErr = c.reg.Lookup(ch.Fallback); fbErr == nil {
			if c.backoff.Active(fb.Key) {
				c.logger.Printf("%s: fallback %s is cooling down, not substituting", ch.Key, fb.Key)
			} else if _, fbErr = c.switcher.SwitchFromDeniedPage(c.drv, fb); fbErr == nil {
				c.logger.Printf("%s: substituting fallback %s for this turn", ch.Key, fb.Key)
				c.backoff.Put(ch.Key, c.cfg.Cooldown)
				return fb, true, Outcome{}, false, true
			}
		}
	}

	// (b) direct picker switch for the original from the denial page.
	if _, derr := c.switcher.SwitchFromDeniedPage(c.drv, ch); derr == nil {
		return ch, false, Outcome{}, false, true
	}

	// (c) cascade exhausted.
	c.backoff.Put(ch.Key, c.cfg.Cooldown)
	return ch, false, Outcome{
		ChannelKey: ch.Key,
		Status:     StatusSkippedPermission,
		Err:        originalErr.Error(),
		Diagnostic: c.wrongIdentityDiagnostic(ch, fb, originalErr, fbErr),
		UpdatedAt:  time.Now(),
	}, false, false
}

// wrongIdentityDiagnostic infers, purely from registry metadata, that the
// pool's entire signed-in identity is wrong for the channel's section:
// both the target and its same-section fallback came back denied. The
// diagnostic names the other section as the probable fix and never blocks
// rotation.
func (c *Coordinator) wrongIdentityDiagnostic(ch, fb registry.Channel, chErr, fbErr error) string {
	if chErr == nil || fbErr == nil {
		return ""
	}
	if !errors.Is(chErr, switcher.ErrPostSwitchDenied) || !errors.Is(fbErr, switcher.ErrPostSwitchDenied) {
		return ""
	}
	if fb.Key == "" || fb.Section != ch.Section {
		return ""
	}
	other := c.reg.OtherSection(c.pool.ID, ch.Section)
	if other == 0 {
		return fmt.Sprintf("signed-in identity cannot reach section %d; check the browser profile for pool %s", ch.Section, c.pool.ID)
	}
	return fmt.Sprintf("signed-in identity looks wrong for section %d; it probably belongs to section %d — sign pool %s into a section-%d account",
		ch.Section, other, c.pool.ID, ch.Section)
}

// ensureDriver lazily establishes the pool's session, falling through to
// the recovery cascade when a plain connect fails.
func (c *Coordinator) ensureDriver() error {
	if c.drv != nil {
		return nil
	}
	d, err := c.connect(c.pool)
	if err == nil {
		c.drv = d
		return nil
	}
	c.logger.Printf("connect failed (%v), trying recovery", err)
	d, rerr := c.recoverer.Recover(c.pool)
	if rerr != nil {
		return rerr
	}
	c.drv = d
	return nil
}

// recoverSession replaces the pool's driver via the recovery cascade.
func (c *Coordinator) recoverSession() error {
	if closer, isCloser := c.drv.(io.Closer); isCloser {
		_ = closer.Close()
	}
	c.drv = nil
	d, err := c.recoverer.Recover(c.pool)
	if err != nil {
		return err
	}
	c.drv = d
	return nil
}

// currentChannelKey detects which registry channel the driver is already
// displaying, for the order optimization. Best effort: "" when unknown.
func (c *Coordinator) currentChannelKey() string {
	id := c.gate.Identity(c.drv)
	if id == "" {
		return ""
	}
	for _, ch := range c.reg.ForPool(c.pool.ID) {
		if ch.DisplayID == id {
			return ch.Key
		}
	}
	return ""
}

func (c *Coordinator) skipOutcome(ch registry.Channel, status Status, why string) Outcome {
	return Outcome{
		ChannelKey: ch.Key,
		Status:     status,
		Diagnostic: why,
		UpdatedAt:  time.Now(),
	}
}

func (c *Coordinator) skipRemaining(channels []registry.Channel, why string) []Outcome {
	var out []Outcome
	for _, ch := range channels {
		out = append(out, c.skipOutcome(ch, StatusSkippedPoolHalted, why))
	}
	return out
}

// transition logs a turn state change and returns the new state.
func (c *Coordinator) transition(ch registry.Channel, from, to turnState) turnState {
	c.logger.Printf("%s: %s -> %s", ch.Key, from, to)
	return to
}

func substitutedKey(original registry.Channel, substituted bool) string {
	if !substituted {
		return ""
	}
	return original.Key
}
