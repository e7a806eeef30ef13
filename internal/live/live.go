// Package live answers whether a channel is currently live somewhere else.
//
// A channel that is mid-livestream on another machine must not have its
// session yanked by rotation, so the coordinator consults this signal
// before switching. The file-backed implementation reads an operator- or
// scraper-maintained JSON file; entries older than the TTL are ignored so
// a stale file cannot block rotation forever.
package live

import (
	"encoding/json"
	"os"
	"time"
)

// DefaultTTL is how long a live marker stays valid without refresh.
const DefaultTTL = 10 * time.Minute

// Signal reports live activity for channels.
type Signal interface {
	// IsLiveElsewhere reports whether the channel is currently live on
	// another session. Errors are swallowed by implementations: an
	// unreadable signal means "not live", never a blocked rotation.
	IsLiveElsewhere(channelKey string) bool
}

// None is a Signal that always answers false.
type None struct{}

// IsLiveElsewhere implements Signal.
func (None) IsLiveElsewhere(string) bool { return false }

// fileFormat is the on-disk shape: channel key → last-seen-live timestamp.
type fileFormat struct {
	Live map[string]time.Time `json:"live"`
}

// File reads live markers from a JSON file on every query. The file is
// tiny and rewritten by its maintainer; re-reading keeps the signal fresh
// without a watcher.
type File struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewFile creates a file-backed signal. ttl <= 0 uses DefaultTTL.
func NewFile(path string, ttl time.Duration) *File {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &File{path: path, ttl: ttl, now: time.Now}
}

// IsLiveElsewhere implements Signal.
func (f *File) IsLiveElsewhere(channelKey string) bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}
	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		return false
	}
	seen, ok := file.Live[channelKey]
	if !ok {
		return false
	}
	return f.now().Sub(seen) <= f.ttl
}
