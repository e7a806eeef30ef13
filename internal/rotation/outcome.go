package rotation

import "time"

// Status is a channel turn's final disposition.
type Status string

const (
	// StatusEngaged means the engagement ran and the channel's work
	// queue drained.
	StatusEngaged Status = "engaged"

	// StatusNotCleared means engagement ran but pending work remained
	// after the verify-retry budget. Not an error.
	StatusNotCleared Status = "not-cleared"

	// StatusError means the turn ended in an unrecovered engagement error.
	StatusError Status = "error"

	// Skip reasons. A skipped channel was never engaged this cycle.
	StatusSkippedCooldown   Status = "skipped-cooldown"
	StatusSkippedLive       Status = "skipped-live"
	StatusSkippedPermission Status = "skipped-permission"
	StatusSkippedPoolHalted Status = "skipped-pool-halted"
)

// Skipped reports whether the status is one of the skip dispositions.
func (s Status) Skipped() bool {
	switch s {
	case StatusSkippedCooldown, StatusSkippedLive, StatusSkippedPermission, StatusSkippedPoolHalted:
		return true
	}
	return false
}

// Outcome is one channel's result for one cycle. Retries within a cycle
// supersede the outcome wholesale; outcomes are never merged.
type Outcome struct {
	// ChannelKey is the channel that was actually processed. When a
	// fallback substituted for a denied target, this is the fallback.
	ChannelKey string

	// SubstitutedFor is the originally scheduled channel when a fallback
	// took its turn, otherwise empty.
	SubstitutedFor string

	Status       Status
	Processed    int
	AllProcessed bool

	// Err carries the failure message for error or permission outcomes.
	Err string

	// Diagnostic is operator-facing annotation, e.g. the wrong-identity
	// inference. Never affects control flow.
	Diagnostic string

	UpdatedAt time.Time
}

// PoolResult aggregates one pool's cycle.
type PoolResult struct {
	Pool     string
	CycleID  string
	Outcomes []Outcome
	Halted   bool

	// HaltReason explains a halted cycle: fatal recovery, strict-halt
	// policy, live-priority policy, or cancellation.
	HaltReason string
}

// Totals sums the cycle's outcomes for telemetry.
func (r PoolResult) Totals() (processed, skipped, halted, units int) {
	for _, o := range r.Outcomes {
		switch {
		case o.Status == StatusSkippedPoolHalted:
			halted++
		case o.Status.Skipped():
			skipped++
		default:
			processed++
		}
		units += o.Processed
	}
	return processed, skipped, halted, units
}
