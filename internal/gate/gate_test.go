package gate

import (
	"errors"
	"testing"

	"github.com/xcawolfe-amzn/greenroom/internal/driver/drivertest"
	"github.com/xcawolfe-amzn/greenroom/internal/studio"
)

var testFrontend = studio.Frontend{
	DeniedProbe:   "deniedProbe",
	IdentityProbe: "identityProbe",
}

func TestClassify(t *testing.T) {
	g := New(testFrontend)
	d := drivertest.New()

	d.Respond("deniedProbe", false)
	if got := g.Classify(d); got != Accessible {
		t.Errorf("Classify = %v, want Accessible", got)
	}

	d.Respond("deniedProbe", true)
	if got := g.Classify(d); got != Denied {
		t.Errorf("Classify = %v, want Denied", got)
	}

	d.RespondFunc("deniedProbe", func() (any, error) {
		return nil, errors.New("execution context destroyed")
	})
	if got := g.Classify(d); got != Unknown {
		t.Errorf("Classify on eval failure = %v, want Unknown", got)
	}
}

func TestClassifyWithRetryRecoversOnSecondProbe(t *testing.T) {
	g := New(testFrontend)
	d := drivertest.New()

	attempts := 0
	d.RespondFunc("deniedProbe", func() (any, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("frame detached")
		}
		return true, nil
	})

	if got := g.ClassifyWithRetry(d); got != Denied {
		t.Errorf("ClassifyWithRetry = %v, want Denied", got)
	}
	if attempts != 2 {
		t.Errorf("probe attempts = %d, want 2", attempts)
	}
}

func TestClassifyWithRetryAssumesAccessible(t *testing.T) {
	g := New(testFrontend)
	d := drivertest.New()

	attempts := 0
	d.RespondFunc("deniedProbe", func() (any, error) {
		attempts++
		return nil, errors.New("frame detached")
	})

	// Two Unknowns in a row: assume Accessible, exactly one retry.
	if got := g.ClassifyWithRetry(d); got != Accessible {
		t.Errorf("ClassifyWithRetry = %v, want Accessible after double Unknown", got)
	}
	if attempts != 2 {
		t.Errorf("probe attempts = %d, want exactly 2", attempts)
	}
}

func TestIdentity(t *testing.T) {
	g := New(testFrontend)
	d := drivertest.New()

	d.Respond("identityProbe", "UCacme001")
	if got := g.Identity(d); got != "UCacme001" {
		t.Errorf("Identity = %q, want %q", got, "UCacme001")
	}

	d.RespondFunc("identityProbe", func() (any, error) {
		return nil, errors.New("no page")
	})
	if got := g.Identity(d); got != "" {
		t.Errorf("Identity on failure = %q, want empty", got)
	}
}
