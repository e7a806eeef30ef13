// Package launcher starts and probes the browser process behind a pool's
// remote-debugging endpoint.
package launcher

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	rodlauncher "github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/gofrs/flock"

	"github.com/xcawolfe-amzn/greenroom/internal/registry"
)

// ErrLaunchContended means another greenroom invocation holds the pool's
// launch lock right now. The caller should re-probe reachability instead
// of launching a second browser on the same port.
var ErrLaunchContended = errors.New("pool launch already in progress")

// reachableTimeout bounds the DevTools version probe.
const reachableTimeout = 2 * time.Second

// Launcher starts browser processes for pools and reports endpoint health.
type Launcher interface {
	// Launch starts a browser bound to the pool's debug port. When force
	// is false and the endpoint is already reachable, Launch is a no-op.
	Launch(pool registry.Pool, force bool) error

	// Reachable reports whether the pool's debug endpoint answers.
	Reachable(pool registry.Pool) bool
}

// Chrome launches Chromium-family browsers through the rod launcher. A
// per-pool flock under lockDir serializes launches across separate gr
// invocations so one port never gets two browsers.
type Chrome struct {
	lockDir string
	client  *http.Client
	logger  *log.Logger
}

// NewChrome creates a Chrome launcher keeping its pool locks under lockDir.
func NewChrome(lockDir string, logger *log.Logger) *Chrome {
	if logger == nil {
		logger = log.New(log.Writer(), "launcher: ", log.LstdFlags)
	}
	return &Chrome{
		lockDir: lockDir,
		client:  &http.Client{Timeout: reachableTimeout},
		logger:  logger,
	}
}

// Reachable probes the DevTools /json/version endpoint.
func (c *Chrome) Reachable(pool registry.Pool) bool {
	resp, err := c.client.Get(fmt.Sprintf("http://%s/json/version", pool.Addr()))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Launch starts a browser process bound to the pool's debug port. The
// process is detached from this one: it must outlive the gr invocation so
// later cycles can reconnect to the same session cookies.
func (c *Chrome) Launch(pool registry.Pool, force bool) error {
	if err := os.MkdirAll(c.lockDir, 0755); err != nil {
		return fmt.Errorf("creating lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(c.lockDir, "pool-"+pool.ID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring launch lock for pool %s: %w", pool.ID, err)
	}
	if !locked {
		return fmt.Errorf("%w: pool %s", ErrLaunchContended, pool.ID)
	}
	defer lock.Unlock() //nolint:errcheck

	if !force && c.Reachable(pool) {
		c.logger.Printf("pool %s already reachable on %s, skipping launch", pool.ID, pool.Addr())
		return nil
	}

	l := rodlauncher.New().
		Leakless(false).
		Headless(false).
		Set(flags.RemoteDebuggingPort, strconv.Itoa(pool.Port))
	if pool.ProfileDir != "" {
		l = l.UserDataDir(pool.ProfileDir)
	}
	if pool.BrowserBin != "" {
		l = l.Bin(pool.BrowserBin)
	}

	if _, err := l.Launch(); err != nil {
		return fmt.Errorf("launching browser for pool %s: %w", pool.ID, err)
	}
	c.logger.Printf("launched browser for pool %s on %s", pool.ID, pool.Addr())
	return nil
}
