// Package fleet fans one rotation cycle out across every pool.
//
// Each pool gets its own goroutine and its own coordinator; pools share
// nothing but the registry, the backoff table and the telemetry sink.
// Pool isolation is the package's one hard rule: a pool that panics,
// halts, or loses its browser affects only its own result. The
// orchestrator recovers pool panics at the goroutine boundary and renders
// them as a halted PoolResult.
package fleet

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xcawolfe-amzn/greenroom/internal/registry"
	"github.com/xcawolfe-amzn/greenroom/internal/rotation"
	"github.com/xcawolfe-amzn/greenroom/internal/telemetry"
)

// Rotator runs one pool's cycle. *rotation.Coordinator is the production
// implementation.
type Rotator interface {
	RunCycle(ctx context.Context, cycleID string) rotation.PoolResult
}

// Builder constructs the rotator for a pool at cycle time. Coordinators
// are rebuilt each cycle so a pool whose browser died last cycle starts
// the next one from a clean connect.
type Builder func(pool registry.Pool) Rotator

// Report aggregates one fleet-wide cycle.
type Report struct {
	CycleID string
	Results []rotation.PoolResult
}

// Totals sums all pools' outcome counts.
func (r Report) Totals() (processed, skipped, halted, units int) {
	for _, res := range r.Results {
		p, s, h, u := res.Totals()
		processed += p
		skipped += s
		halted += h
		units += u
	}
	return processed, skipped, halted, units
}

// Orchestrator runs rotation cycles across the registry's pools.
type Orchestrator struct {
	reg    *registry.Registry
	build  Builder
	sink   telemetry.Sink
	logger *log.Logger
	only   map[string]bool
}

// New creates an orchestrator. A nil sink discards telemetry.
func New(reg *registry.Registry, build Builder, sink telemetry.Sink, logger *log.Logger) *Orchestrator {
	if sink == nil {
		sink = telemetry.Discard{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "fleet: ", log.LstdFlags)
	}
	return &Orchestrator{reg: reg, build: build, sink: sink, logger: logger}
}

// RunCycle rotates every pool that has channels, concurrently, and waits
// for all of them. Results come back sorted by pool ID.
func (o *Orchestrator) RunCycle(ctx context.Context) Report {
	cycleID := uuid.NewString()
	pools := o.activePools()
	o.logger.Printf("cycle %s: starting %d pools", cycleID, len(pools))

	results := make([]rotation.PoolResult, len(pools))
	var wg sync.WaitGroup
	for i, pool := range pools {
		wg.Add(1)
		go func(i int, pool registry.Pool) {
			defer wg.Done()
			results[i] = o.runPool(ctx, cycleID, pool)
		}(i, pool)
	}
	wg.Wait()

	for _, res := range results {
		o.emit(res)
	}

	report := Report{CycleID: cycleID, Results: results}
	processed, skipped, halted, units := report.Totals()
	o.logger.Printf("cycle %s: complete (processed=%d skipped=%d halted=%d units=%d)",
		cycleID, processed, skipped, halted, units)
	return report
}

// Run repeats cycles every interval until the context is canceled. The
// in-between wait is interruptible; the cycle in flight is not killed
// mid-pool — cancellation lands at the next channel boundary.
func (o *Orchestrator) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		o.RunCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runPool executes one pool's cycle behind the panic boundary.
func (o *Orchestrator) runPool(ctx context.Context, cycleID string, pool registry.Pool) (res rotation.PoolResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("pool %s: panic: %v", pool.ID, r)
			res = o.panicResult(cycleID, pool, r)
		}
	}()
	return o.build(pool).RunCycle(ctx, cycleID)
}

// panicResult renders a pool panic as a halted result so the cycle report
// still accounts for every channel.
func (o *Orchestrator) panicResult(cycleID string, pool registry.Pool, cause any) rotation.PoolResult {
	res := rotation.PoolResult{
		Pool:       pool.ID,
		CycleID:    cycleID,
		Halted:     true,
		HaltReason: fmt.Sprintf("panic: %v", cause),
	}
	for _, ch := range o.reg.ForPool(pool.ID) {
		res.Outcomes = append(res.Outcomes, rotation.Outcome{
			ChannelKey: ch.Key,
			Status:     rotation.StatusSkippedPoolHalted,
			Diagnostic: "pool crashed mid-cycle",
			UpdatedAt:  time.Now(),
		})
	}
	return res
}

func (o *Orchestrator) emit(res rotation.PoolResult) {
	processed, skipped, halted, units := res.Totals()
	ev := telemetry.Event{
		CycleID:           res.CycleID,
		Pool:              res.Pool,
		Time:              time.Now().UTC(),
		ChannelsProcessed: processed,
		ChannelsSkipped:   skipped,
		ChannelsHalted:    halted,
		UnitsProcessed:    units,
		Halted:            res.Halted,
		HaltReason:        res.HaltReason,
	}
	if err := o.sink.Emit(ev); err != nil {
		o.logger.Printf("pool %s: emitting telemetry: %v", res.Pool, err)
	}
}

// Limit restricts subsequent cycles to the named pools. No arguments
// clears the restriction.
func (o *Orchestrator) Limit(poolIDs ...string) {
	if len(poolIDs) == 0 {
		o.only = nil
		return
	}
	o.only = make(map[string]bool, len(poolIDs))
	for _, id := range poolIDs {
		o.only[id] = true
	}
}

// activePools returns the pools with at least one channel, sorted by ID.
func (o *Orchestrator) activePools() []registry.Pool {
	var pools []registry.Pool
	for id, pool := range o.reg.Pools() {
		if o.only != nil && !o.only[id] {
			continue
		}
		if len(o.reg.ForPool(id)) > 0 {
			pools = append(pools, pool)
		}
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools
}
