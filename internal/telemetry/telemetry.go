// Package telemetry records per-pool rotation cycle events.
//
// Events are appended as JSON lines under <root>/.runtime/telemetry/ so
// external consumers (and `gr watch`) can tail them without any protocol
// beyond "one JSON object per line". Malformed lines are skipped on read;
// a half-written record from a crashed run must not poison the file.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventsFile is the telemetry file name inside the telemetry directory.
const EventsFile = "rotation.jsonl"

// Event is one pool's totals for one rotation cycle.
type Event struct {
	CycleID           string    `json:"cycle_id"`
	Pool              string    `json:"pool"`
	Time              time.Time `json:"time"`
	ChannelsProcessed int       `json:"channels_processed"`
	ChannelsSkipped   int       `json:"channels_skipped"`
	ChannelsHalted    int       `json:"channels_halted"`
	UnitsProcessed    int       `json:"units_processed"`
	Halted            bool      `json:"halted,omitempty"`
	HaltReason        string    `json:"halt_reason,omitempty"`
}

// Sink consumes rotation cycle events.
type Sink interface {
	Emit(ev Event) error
}

// FileSink appends events to a JSONL file. Safe for concurrent use: pool
// goroutines emit independently at cycle end.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a sink writing to dir/rotation.jsonl.
func NewFileSink(dir string) *FileSink {
	return &FileSink{path: filepath.Join(dir, EventsFile)}
}

// Path returns the sink's file location.
func (s *FileSink) Path() string {
	return s.path
}

// Emit appends one event line.
func (s *FileSink) Emit(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating telemetry dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening telemetry file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// ReadEvents loads all events from a JSONL file, skipping malformed lines.
// A missing file yields no events and no error.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening telemetry file: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("reading telemetry file: %w", err)
	}
	return events, nil
}

// Discard is a Sink that drops all events.
type Discard struct{}

// Emit implements Sink.
func (Discard) Emit(Event) error { return nil }
