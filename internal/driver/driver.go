// Package driver provides the browser session driver: an opaque handle to
// one remote-debugging browser endpoint.
//
// A driver is owned exclusively by the coordinator currently operating its
// pool and is never shared across goroutines. The core never depends on
// concrete DOM selectors; page scripts are supplied by the caller.
package driver

import (
	"errors"
	"strings"
)

// ErrNotConnected is returned by operations on a driver whose underlying
// browser connection has been torn down.
var ErrNotConnected = errors.New("driver not connected")

// Driver is one browser automation session.
type Driver interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(url string) error

	// Eval runs a page script (a JS function expression) and unmarshals
	// its JSON result into out. Pass nil to discard the result.
	Eval(js string, out any) error

	// CurrentURL reports the page's current location.
	CurrentURL() (string, error)
}

// sessionBrokenFragments are the error-text markers of a dead or detached
// browser session. Errors matching one of these are worth a reconnect or
// relaunch; anything else is an ordinary task failure and must not trigger
// session recovery.
var sessionBrokenFragments = []string{
	"disconnected",
	"not connected",
	"no such window",
	"window closed",
	"target closed",
	"session closed",
	"connection refused",
	"websocket: close",
	"context canceled",
	"cdp connection",
}

// IsSessionBroken reports whether err signals a broken transport or
// browser session rather than a task-level failure.
func IsSessionBroken(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConnected) {
		return true
	}
	return MessageIsSessionBroken(err.Error())
}

// MessageIsSessionBroken applies the session-broken classification to a
// bare error string, as reported by an engagement run.
func MessageIsSessionBroken(msg string) bool {
	lower := strings.ToLower(msg)
	for _, frag := range sessionBrokenFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
