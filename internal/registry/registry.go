// Package registry provides the channel registry: the ordered table of
// accounts the rotation works through, and the browser pools they are
// assigned to.
//
// The registry is loaded once from a TOML file and is immutable afterwards.
// Channels in the same section are assumed reachable from the same signed-in
// identity, so a channel's fallback should normally share its section.
package registry

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Common errors
var (
	ErrChannelNotFound = errors.New("channel not found in registry")
	ErrPoolNotFound    = errors.New("pool not found in registry")
)

// Pool identifies one browser automation endpoint. A pool owns at most one
// live driver at a time; the coordinator processing it is the sole owner.
type Pool struct {
	ID         string `toml:"-"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	ProfileDir string `toml:"profile_dir"`
	BrowserBin string `toml:"browser_bin"`
}

// Addr returns the host:port of the pool's remote-debugging endpoint.
func (p Pool) Addr() string {
	host := p.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, p.Port)
}

// Channel is one account identity to rotate through. Identity fields are
// immutable after load.
type Channel struct {
	// Key is the registry-unique handle used everywhere internally.
	Key string `toml:"key"`

	// DisplayID is the platform channel ID (used to build destination URLs
	// and to verify post-switch identity).
	DisplayID string `toml:"display_id"`

	// DisplayName is the human-facing channel name.
	DisplayName string `toml:"display_name"`

	// Pool assigns the channel to one browser pool.
	Pool string `toml:"pool"`

	// Section groups channels reachable from the same signed-in identity.
	// The account picker lists a section's channels together, so the
	// index-based selection strategy offsets within the section.
	Section int `toml:"section"`

	// Aliases are case-insensitive match terms for finding the channel in
	// the rendered account picker. DisplayName is always tried as well.
	Aliases []string `toml:"aliases"`

	// Fallback is the key of the sibling channel tried when this one is
	// permission-denied. Empty means no fallback.
	Fallback string `toml:"fallback"`
}

// MatchTerms returns the channel's picker match terms: explicit aliases
// first, then the display name.
func (c Channel) MatchTerms() []string {
	terms := make([]string, 0, len(c.Aliases)+1)
	terms = append(terms, c.Aliases...)
	if c.DisplayName != "" {
		terms = append(terms, c.DisplayName)
	}
	return terms
}

// Registry is the loaded channel table. Safe for concurrent reads; never
// mutated after Load.
type Registry struct {
	pools    map[string]Pool
	channels []Channel
	byKey    map[string]int
}

// registryFile is the on-disk TOML shape.
type registryFile struct {
	Pools    map[string]Pool `toml:"pools"`
	Channels []Channel       `toml:"channels"`
}

// Load reads and validates a registry TOML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates registry TOML content.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}

	r := &Registry{
		pools:    make(map[string]Pool, len(file.Pools)),
		channels: file.Channels,
		byKey:    make(map[string]int, len(file.Channels)),
	}
	for id, p := range file.Pools {
		p.ID = id
		r.pools[id] = p
	}
	for i, c := range file.Channels {
		if _, dup := r.byKey[c.Key]; dup {
			return nil, fmt.Errorf("registry: duplicate channel key %q", c.Key)
		}
		r.byKey[c.Key] = i
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// validate checks referential integrity of the loaded table.
func (r *Registry) validate() error {
	for id, p := range r.pools {
		if p.Port <= 0 {
			return fmt.Errorf("registry: pool %q has no remote-debugging port", id)
		}
	}
	for _, c := range r.channels {
		if c.Key == "" {
			return fmt.Errorf("registry: channel with empty key")
		}
		if c.DisplayID == "" {
			return fmt.Errorf("registry: channel %q has no display_id", c.Key)
		}
		if _, ok := r.pools[c.Pool]; !ok {
			return fmt.Errorf("registry: channel %q references unknown pool %q", c.Key, c.Pool)
		}
		if c.Section <= 0 {
			return fmt.Errorf("registry: channel %q has invalid section %d", c.Key, c.Section)
		}
		if c.Fallback != "" {
			fi, ok := r.byKey[c.Fallback]
			if !ok {
				return fmt.Errorf("registry: channel %q fallback %q not in registry", c.Key, c.Fallback)
			}
			if r.channels[fi].Key == c.Key {
				return fmt.Errorf("registry: channel %q is its own fallback", c.Key)
			}
			if r.channels[fi].Pool != c.Pool {
				return fmt.Errorf("registry: channel %q fallback %q belongs to a different pool", c.Key, c.Fallback)
			}
		}
	}
	return nil
}

// Pools returns all pools, keyed by ID.
func (r *Registry) Pools() map[string]Pool {
	out := make(map[string]Pool, len(r.pools))
	for id, p := range r.pools {
		out[id] = p
	}
	return out
}

// Pool returns the pool with the given ID.
func (r *Registry) Pool(id string) (Pool, error) {
	p, ok := r.pools[id]
	if !ok {
		return Pool{}, fmt.Errorf("%w: %q", ErrPoolNotFound, id)
	}
	return p, nil
}

// Channels returns all channels in registry order.
func (r *Registry) Channels() []Channel {
	out := make([]Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// Lookup returns the channel with the given key.
func (r *Registry) Lookup(key string) (Channel, error) {
	i, ok := r.byKey[key]
	if !ok {
		return Channel{}, fmt.Errorf("%w: %q", ErrChannelNotFound, key)
	}
	return r.channels[i], nil
}

// ForPool returns the pool's channels in registry order.
func (r *Registry) ForPool(poolID string) []Channel {
	var out []Channel
	for _, c := range r.channels {
		if c.Pool == poolID {
			out = append(out, c)
		}
	}
	return out
}

// SectionOffset returns the channel's zero-based position within its pool's
// section, counting in registry order. This is the index the picker's
// index-based selection strategy uses; pickers are per pool, so channels in
// other pools never shift it even when they reuse the section number.
func (r *Registry) SectionOffset(key string) (int, error) {
	i, ok := r.byKey[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrChannelNotFound, key)
	}
	target := r.channels[i]
	offset := 0
	for _, c := range r.channels {
		if c.Key == target.Key {
			return offset, nil
		}
		if c.Pool == target.Pool && c.Section == target.Section {
			offset++
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrChannelNotFound, key)
}

// OtherSection returns a section number present in the pool other than the
// given one, or 0 if the pool only has one section. Used by the
// wrong-identity diagnostic to name the probable fix.
func (r *Registry) OtherSection(poolID string, section int) int {
	for _, c := range r.ForPool(poolID) {
		if c.Section != section {
			return c.Section
		}
	}
	return 0
}

// RotationOrder returns the pool's channels in the order a coordinator
// should visit them. An explicit override (list of keys) wins; otherwise
// registry order, with frontKey moved to the front if it is in the pool.
// Pure reordering: the same set of channels is always returned.
func (r *Registry) RotationOrder(poolID, frontKey string, override []string) []Channel {
	channels := r.ForPool(poolID)

	if len(override) > 0 {
		seen := make(map[string]bool, len(override))
		var ordered []Channel
		for _, key := range override {
			for _, c := range channels {
				if c.Key == key && !seen[key] {
					ordered = append(ordered, c)
					seen[key] = true
				}
			}
		}
		// Channels missing from the override keep their registry order at the tail.
		for _, c := range channels {
			if !seen[c.Key] {
				ordered = append(ordered, c)
			}
		}
		return ordered
	}

	if frontKey == "" {
		return channels
	}
	for i, c := range channels {
		if c.Key == frontKey && i > 0 {
			reordered := make([]Channel, 0, len(channels))
			reordered = append(reordered, c)
			reordered = append(reordered, channels[:i]...)
			reordered = append(reordered, channels[i+1:]...)
			return reordered
		}
	}
	return channels
}
