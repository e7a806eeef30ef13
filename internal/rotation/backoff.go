package rotation

import (
	"sync"
	"time"
)

// Backoff tracks cooldown windows for permission-denied channels. A
// channel inside its window is skipped without contacting the driver.
//
// The table is read by every pool's coordinator but each entry is only
// written by the coordinator that owns the channel's pool, so a simple
// RWMutex is all the coordination required.
type Backoff struct {
	mu    sync.RWMutex
	until map[string]time.Time
	now   func() time.Time
}

// NewBackoff creates an empty backoff table.
func NewBackoff() *Backoff {
	return &Backoff{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Put places a channel into backoff for the given cooldown.
func (b *Backoff) Put(channelKey string, cooldown time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until[channelKey] = b.now().Add(cooldown)
}

// Active reports whether the channel is currently inside its cooldown.
// Expired entries are pruned lazily on query.
func (b *Backoff) Active(channelKey string) bool {
	b.mu.RLock()
	until, ok := b.until[channelKey]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if b.now().Before(until) {
		return true
	}
	b.mu.Lock()
	delete(b.until, channelKey)
	b.mu.Unlock()
	return false
}

// Remaining returns how long the channel's cooldown has left, or zero when
// it is not in backoff.
func (b *Backoff) Remaining(channelKey string) time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	until, ok := b.until[channelKey]
	if !ok {
		return 0
	}
	if d := until.Sub(b.now()); d > 0 {
		return d
	}
	return 0
}
