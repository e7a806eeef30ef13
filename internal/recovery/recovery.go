// Package recovery restores a pool's browser session after a transport
// failure.
//
// The cascade is bounded by construction: one reconnect attempt (the
// browser process may still be alive even though the old handle errored),
// then one relaunch with a bounded readiness wait, then ErrFatal. It never
// loops. A Fatal result ends the pool's cycle; it must never crash the
// other pools.
package recovery

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xcawolfe-amzn/greenroom/internal/driver"
	"github.com/xcawolfe-amzn/greenroom/internal/launcher"
	"github.com/xcawolfe-amzn/greenroom/internal/registry"
)

// ErrFatal means both reconnect and relaunch failed. The caller must stop
// processing the pool's remaining channels for the current cycle.
var ErrFatal = errors.New("session recovery exhausted")

// ConnectFunc attaches a fresh driver handle to a pool's endpoint.
type ConnectFunc func(pool registry.Pool) (driver.Driver, error)

// Recoverer runs the reconnect/relaunch cascade for broken sessions.
type Recoverer struct {
	launcher        launcher.Launcher
	connect         ConnectFunc
	relaunchTimeout time.Duration
	poll            time.Duration
	warmupURL       string
	sleep           func(time.Duration)
	logger          *log.Logger
}

// New creates a recoverer. warmupURL is navigated once after a relaunch so
// the profile's session cookies are loaded before account work resumes.
func New(l launcher.Launcher, connect ConnectFunc, relaunchTimeout, poll time.Duration, warmupURL string, logger *log.Logger) *Recoverer {
	if logger == nil {
		logger = log.New(log.Writer(), "recovery: ", log.LstdFlags)
	}
	return &Recoverer{
		launcher:        l,
		connect:         connect,
		relaunchTimeout: relaunchTimeout,
		poll:            poll,
		warmupURL:       warmupURL,
		sleep:           time.Sleep,
		logger:          logger,
	}
}

// SetSleep replaces the readiness-poll sleep. Tests use this to run fast.
func (r *Recoverer) SetSleep(fn func(time.Duration)) {
	r.sleep = fn
}

// Recover attempts to restore a usable driver for the pool. The broken
// driver is already dead; callers should have stopped using it.
func (r *Recoverer) Recover(pool registry.Pool) (driver.Driver, error) {
	// The browser process often survives the handle that errored
	// ("no such window" kills a tab, not the endpoint).
	if d, err := r.connect(pool); err == nil {
		r.logger.Printf("pool %s: reconnected to existing browser", pool.ID)
		return d, nil
	} else {
		r.logger.Printf("pool %s: reconnect failed (%v), relaunching", pool.ID, err)
	}

	if err := r.launcher.Launch(pool, true); err != nil {
		return nil, fmt.Errorf("%w: relaunch: %v", ErrFatal, err)
	}

	deadline := time.Now().Add(r.relaunchTimeout)
	for !r.launcher.Reachable(pool) {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: pool %s not reachable within %v", ErrFatal, pool.ID, r.relaunchTimeout)
		}
		r.sleep(r.poll)
	}

	d, err := r.connect(pool)
	if err != nil {
		return nil, fmt.Errorf("%w: attach after relaunch: %v", ErrFatal, err)
	}

	if r.warmupURL != "" {
		if err := d.Navigate(r.warmupURL); err != nil {
			return nil, fmt.Errorf("%w: warm-up navigation: %v", ErrFatal, err)
		}
	}

	r.logger.Printf("pool %s: relaunched and warmed up", pool.ID)
	return d, nil
}
