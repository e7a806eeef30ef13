// Package gate classifies the current page of a driver as accessible or
// permission-denied.
package gate

import (
	"github.com/xcawolfe-amzn/greenroom/internal/driver"
	"github.com/xcawolfe-amzn/greenroom/internal/studio"
)

// State is the three-way page classification.
type State int

const (
	// Unknown means the probe could not run; callers treat it as
	// non-fatal and retry once before assuming Accessible.
	Unknown State = iota
	// Accessible means the signed-in identity can work on this page.
	Accessible
	// Denied means the page is the permission-denial ("oops") page.
	Denied
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case Accessible:
		return "accessible"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Gate inspects page state through a driver using the frontend's denial
// predicate. It holds no driver of its own.
type Gate struct {
	frontend studio.Frontend
}

// New creates a gate over the given frontend script set.
func New(frontend studio.Frontend) *Gate {
	return &Gate{frontend: frontend}
}

// Classify runs the denial predicate on the driver's current page.
// Evaluation failure yields Unknown, never an error: a page that cannot be
// probed must not abort the caller's sequence.
func (g *Gate) Classify(d driver.Driver) State {
	var denied bool
	if err := d.Eval(g.frontend.DeniedProbe, &denied); err != nil {
		return Unknown
	}
	if denied {
		return Denied
	}
	return Accessible
}

// ClassifyWithRetry classifies the page, retrying a single time on
// Unknown. A second Unknown is assumed Accessible — an unprobeable page is
// treated optimistically and the switch verification downstream catches
// real failures.
func (g *Gate) ClassifyWithRetry(d driver.Driver) State {
	state := g.Classify(d)
	if state != Unknown {
		return state
	}
	if state = g.Classify(d); state != Unknown {
		return state
	}
	return Accessible
}

// Identity reports the channel ID the page currently operates as, or ""
// when the probe fails or the page carries no identity.
func (g *Gate) Identity(d driver.Driver) string {
	var id string
	if err := d.Eval(g.frontend.IdentityProbe, &id); err != nil {
		return ""
	}
	return id
}
