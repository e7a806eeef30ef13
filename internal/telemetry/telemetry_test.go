package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmitAndReadEvents(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)

	ev1 := Event{CycleID: "c1", Pool: "east", Time: time.Now().UTC(), ChannelsProcessed: 3, UnitsProcessed: 17}
	ev2 := Event{CycleID: "c1", Pool: "west", Time: time.Now().UTC(), ChannelsSkipped: 1, Halted: true, HaltReason: "session recovery exhausted"}

	if err := sink.Emit(ev1); err != nil {
		t.Fatalf("Emit ev1: %v", err)
	}
	if err := sink.Emit(ev2); err != nil {
		t.Fatalf("Emit ev2: %v", err)
	}

	events, err := ReadEvents(sink.Path())
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ReadEvents returned %d events, want 2", len(events))
	}
	if events[0].Pool != "east" || events[0].UnitsProcessed != 17 {
		t.Errorf("events[0] = %+v", events[0])
	}
	if !events[1].Halted || events[1].HaltReason == "" {
		t.Errorf("events[1] lost halt info: %+v", events[1])
	}
}

func TestReadEventsSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, EventsFile)
	content := `{"cycle_id":"c1","pool":"east"}
not json at all
{"cycle_id":"c2","pool":"west"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ReadEvents returned %d events, want 2 (malformed skipped)", len(events))
	}
}

func TestReadEventsMissingFile(t *testing.T) {
	events, err := ReadEvents(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("ReadEvents missing: %v", err)
	}
	if events != nil {
		t.Errorf("ReadEvents missing = %v, want nil", events)
	}
}
