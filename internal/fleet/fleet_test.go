package fleet

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xcawolfe-amzn/greenroom/internal/registry"
	"github.com/xcawolfe-amzn/greenroom/internal/rotation"
	"github.com/xcawolfe-amzn/greenroom/internal/telemetry"
)

const fleetRegistry = `
[pools.east]
port = 9222

[pools.west]
port = 9223

[pools.idle]
port = 9224

[[channels]]
key = "acme-main"
display_id = "UCacme001"
pool = "east"
section = 1

[[channels]]
key = "acme-alt"
display_id = "UCacme002"
pool = "east"
section = 1

[[channels]]
key = "birch"
display_id = "UCbirch001"
pool = "west"
section = 1
`

// fakeRotator produces a canned result, optionally after a delay or by
// panicking.
type fakeRotator struct {
	pool    string
	delay   time.Duration
	panicky bool
	result  rotation.PoolResult
}

func (f *fakeRotator) RunCycle(ctx context.Context, cycleID string) rotation.PoolResult {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicky {
		panic("coordinator bug in pool " + f.pool)
	}
	res := f.result
	res.Pool = f.pool
	res.CycleID = cycleID
	return res
}

// memSink collects emitted events.
type memSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *memSink) Emit(ev telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func parseFleetRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Parse([]byte(fleetRegistry))
	if err != nil {
		t.Fatalf("Parse registry: %v", err)
	}
	return reg
}

func engagedResult(keys ...string) rotation.PoolResult {
	var res rotation.PoolResult
	for _, key := range keys {
		res.Outcomes = append(res.Outcomes, rotation.Outcome{
			ChannelKey: key,
			Status:     rotation.StatusEngaged,
			Processed:  2,
			UpdatedAt:  time.Now(),
		})
	}
	return res
}

func TestRunCycleAllPools(t *testing.T) {
	reg := parseFleetRegistry(t)
	sink := &memSink{}
	build := func(pool registry.Pool) Rotator {
		switch pool.ID {
		case "east":
			return &fakeRotator{pool: "east", result: engagedResult("acme-main", "acme-alt")}
		case "west":
			return &fakeRotator{pool: "west", result: engagedResult("birch")}
		}
		t.Errorf("builder called for unexpected pool %s", pool.ID)
		return &fakeRotator{pool: pool.ID}
	}
	o := New(reg, build, sink, log.New(io.Discard, "", 0))

	report := o.RunCycle(context.Background())

	if report.CycleID == "" {
		t.Error("report has no cycle ID")
	}
	// Pool "idle" has no channels and must not be rotated.
	if len(report.Results) != 2 {
		t.Fatalf("got %d pool results, want 2", len(report.Results))
	}
	if report.Results[0].Pool != "east" || report.Results[1].Pool != "west" {
		t.Errorf("results not sorted by pool: %s, %s", report.Results[0].Pool, report.Results[1].Pool)
	}
	for _, res := range report.Results {
		if res.CycleID != report.CycleID {
			t.Errorf("pool %s carries cycle %s, want %s", res.Pool, res.CycleID, report.CycleID)
		}
	}
	processed, skipped, halted, units := report.Totals()
	if processed != 3 || skipped != 0 || halted != 0 || units != 6 {
		t.Errorf("Totals = (%d, %d, %d, %d), want (3, 0, 0, 6)", processed, skipped, halted, units)
	}

	if len(sink.events) != 2 {
		t.Fatalf("emitted %d telemetry events, want 2", len(sink.events))
	}
	for _, ev := range sink.events {
		if ev.CycleID != report.CycleID {
			t.Errorf("event for pool %s carries cycle %s, want %s", ev.Pool, ev.CycleID, report.CycleID)
		}
	}
}

func TestRunCycleLimit(t *testing.T) {
	reg := parseFleetRegistry(t)
	build := func(pool registry.Pool) Rotator {
		if pool.ID != "west" {
			t.Errorf("builder called for pool %s outside the limit", pool.ID)
		}
		return &fakeRotator{pool: pool.ID, result: engagedResult("birch")}
	}
	o := New(reg, build, telemetry.Discard{}, log.New(io.Discard, "", 0))
	o.Limit("west")

	report := o.RunCycle(context.Background())
	if len(report.Results) != 1 || report.Results[0].Pool != "west" {
		t.Errorf("limited cycle results = %+v, want only west", report.Results)
	}
}

func TestRunCyclePoolPanicIsIsolated(t *testing.T) {
	reg := parseFleetRegistry(t)
	sink := &memSink{}
	build := func(pool registry.Pool) Rotator {
		if pool.ID == "east" {
			return &fakeRotator{pool: "east", panicky: true}
		}
		return &fakeRotator{pool: "west", result: engagedResult("birch")}
	}
	o := New(reg, build, sink, log.New(io.Discard, "", 0))

	report := o.RunCycle(context.Background())

	if len(report.Results) != 2 {
		t.Fatalf("got %d pool results, want 2", len(report.Results))
	}
	east := report.Results[0]
	if !east.Halted {
		t.Error("panicked pool not reported as halted")
	}
	if !strings.Contains(east.HaltReason, "panic") {
		t.Errorf("HaltReason = %q, want panic mention", east.HaltReason)
	}
	// Every channel of the crashed pool is still accounted for.
	if len(east.Outcomes) != 2 {
		t.Errorf("crashed pool has %d outcomes, want 2", len(east.Outcomes))
	}
	for _, o := range east.Outcomes {
		if o.Status != rotation.StatusSkippedPoolHalted {
			t.Errorf("%s: Status = %s, want %s", o.ChannelKey, o.Status, rotation.StatusSkippedPoolHalted)
		}
	}

	west := report.Results[1]
	if west.Halted {
		t.Error("healthy pool halted by sibling's panic")
	}
	if len(west.Outcomes) != 1 || west.Outcomes[0].Status != rotation.StatusEngaged {
		t.Errorf("healthy pool result corrupted: %+v", west.Outcomes)
	}
}

func TestRunCyclePoolsRunConcurrently(t *testing.T) {
	reg := parseFleetRegistry(t)
	delay := 50 * time.Millisecond
	build := func(pool registry.Pool) Rotator {
		return &fakeRotator{pool: pool.ID, delay: delay, result: engagedResult("x")}
	}
	o := New(reg, build, telemetry.Discard{}, log.New(io.Discard, "", 0))

	start := time.Now()
	o.RunCycle(context.Background())
	elapsed := time.Since(start)

	// Two pools at 50ms each: serial execution would take >= 100ms.
	if elapsed >= 2*delay {
		t.Errorf("cycle took %v; pools appear to run serially", elapsed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := parseFleetRegistry(t)
	var cycles int
	var mu sync.Mutex
	build := func(pool registry.Pool) Rotator {
		mu.Lock()
		cycles++
		mu.Unlock()
		return &fakeRotator{pool: pool.ID, result: engagedResult("x")}
	}
	o := New(reg, build, telemetry.Discard{}, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		o.Run(ctx, time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	if cycles == 0 {
		t.Error("Run exited without running a single cycle")
	}
}
