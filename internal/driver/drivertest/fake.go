// Package drivertest provides a scriptable in-memory Driver for tests.
package drivertest

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Call records one driver operation for later assertions.
type Call struct {
	Op  string // "navigate" or "eval"
	Arg string // URL or script
}

// Fake is a Driver whose Eval responses are keyed by exact script string.
// Tests pair it with a studio.Frontend whose scripts are short markers.
type Fake struct {
	mu sync.Mutex

	// Responses maps a script to the function producing its result.
	// The result is JSON round-tripped into the caller's out value.
	Responses map[string]func() (any, error)

	// NavigateFunc, when set, intercepts Navigate calls.
	NavigateFunc func(url string) error

	// URL is what CurrentURL reports; Navigate updates it.
	URL string

	// Err, when set, fails every operation. Used to simulate a dead session.
	Err error

	calls []Call
}

// New creates an empty fake driver.
func New() *Fake {
	return &Fake{Responses: make(map[string]func() (any, error))}
}

// Respond registers a fixed result for a script.
func (f *Fake) Respond(script string, result any) {
	f.Responses[script] = func() (any, error) { return result, nil }
}

// RespondFunc registers a dynamic responder for a script.
func (f *Fake) RespondFunc(script string, fn func() (any, error)) {
	f.Responses[script] = fn
}

// Navigate records the call and updates the reported URL.
func (f *Fake) Navigate(url string) error {
	f.record("navigate", url)
	if f.Err != nil {
		return f.Err
	}
	if f.NavigateFunc != nil {
		if err := f.NavigateFunc(url); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.URL = url
	f.mu.Unlock()
	return nil
}

// Eval looks up the registered responder for the script and round-trips
// its result through JSON into out.
func (f *Fake) Eval(js string, out any) error {
	f.record("eval", js)
	if f.Err != nil {
		return f.Err
	}
	fn, ok := f.Responses[js]
	if !ok {
		return fmt.Errorf("drivertest: no response registered for script %q", js)
	}
	result, err := fn()
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// CurrentURL reports the URL of the last Navigate (or the preset URL).
func (f *Fake) CurrentURL() (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URL, nil
}

func (f *Fake) record(op, arg string) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Arg: arg})
	f.mu.Unlock()
}

// Calls returns a copy of the recorded operations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CountOp returns how many recorded calls match the op and exact argument.
func (f *Fake) CountOp(op, arg string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op && c.Arg == arg {
			n++
		}
	}
	return n
}

// Reset clears the recorded call log.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}
