// Package engage is the production engagement runner: it works through a
// channel's pending inbox units via the studio frontend scripts.
package engage

import (
	"fmt"
	"log"

	"github.com/xcawolfe-amzn/greenroom/internal/driver"
	"github.com/xcawolfe-amzn/greenroom/internal/registry"
	"github.com/xcawolfe-amzn/greenroom/internal/rotation"
	"github.com/xcawolfe-amzn/greenroom/internal/studio"
)

// Inbox runs the frontend's engage script over whatever the channel's work
// page currently shows. It assumes the coordinator already switched and
// navigated; it never moves the page itself.
type Inbox struct {
	frontend studio.Frontend
	logger   *log.Logger
}

// NewInbox creates an inbox runner over the given frontend script set.
func NewInbox(frontend studio.Frontend, logger *log.Logger) *Inbox {
	if logger == nil {
		logger = log.New(log.Writer(), "engage: ", log.LstdFlags)
	}
	return &Inbox{frontend: frontend, logger: logger}
}

// engageResult is the engage script's return shape.
type engageResult struct {
	Processed int  `json:"processed"`
	Done      bool `json:"done"`
}

// Run engages the channel's visible pending units once.
func (e *Inbox) Run(d driver.Driver, ch registry.Channel) (rotation.Stats, error) {
	var res engageResult
	if err := d.Eval(e.frontend.EngagePending, &res); err != nil {
		return rotation.Stats{}, fmt.Errorf("engaging %s: %w", ch.Key, err)
	}
	e.logger.Printf("%s: processed %d units (done=%v)", ch.Key, res.Processed, res.Done)
	return rotation.Stats{Processed: res.Processed, AllProcessed: res.Done}, nil
}

// Pending reports how many units the channel's page still shows.
func (e *Inbox) Pending(d driver.Driver, ch registry.Channel) (int, error) {
	var n int
	if err := d.Eval(e.frontend.PendingUnits, &n); err != nil {
		return 0, fmt.Errorf("probing pending units for %s: %w", ch.Key, err)
	}
	return n, nil
}
