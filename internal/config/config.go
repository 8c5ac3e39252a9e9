// Package config holds the CEL engine's runtime configuration: the
// enabled flag, the tracked-event bitset, the tracked-app set, and the
// date format used when fabricating channels from event records.
//
// Reads are lock-free with respect to writers: Store.Current loads an
// atomic pointer to the current immutable Config. Set/Load replace that
// pointer wholesale; readers in flight keep seeing the old Config until
// they next call Current.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"celengine/internal/event"
)

// Config is an immutable snapshot of CEL configuration. Never mutate a
// Config in place -- build a new one and hand it to Store.Set.
type Config struct {
	Enabled       bool
	DateFormat    string
	TrackedEvents uint64          // bitset, see event.Kind.Bit
	TrackedApps   map[string]bool // lower-cased app names
}

// Tracks reports whether k is in the tracked-events bitset.
func (c *Config) Tracks(k event.Kind) bool {
	if c == nil {
		return false
	}
	return c.TrackedEvents&k.Bit() != 0
}

// TracksApp reports whether name (case-insensitive) is in tracked_apps.
func (c *Config) TracksApp(name string) bool {
	if c == nil || len(c.TrackedApps) == 0 {
		return false
	}
	return c.TrackedApps[strings.ToLower(name)]
}

// validate enforces the configuration invariant: a non-empty tracked_apps
// set requires at least one of APP_START/APP_END to be tracked.
func (c *Config) validate() error {
	if len(c.TrackedApps) > 0 && !c.Tracks(event.AppStart) && !c.Tracks(event.AppEnd) {
		return fmt.Errorf("cel: config rejected: apps configured but neither APP_START nor APP_END is tracked")
	}
	return nil
}

// Store holds the current Config behind an atomic pointer so readers
// never block on a writer and never observe a partially-applied reload.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a Store holding a disabled, empty configuration.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Config{TrackedApps: map[string]bool{}})
	return s
}

// Current returns the active configuration snapshot. Never nil.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// IsEnabled reports whether the engine is currently enabled.
func (s *Store) IsEnabled() bool {
	return s.Current().Enabled
}

// Tracks reports whether k is tracked by the current configuration.
func (s *Store) Tracks(k event.Kind) bool {
	return s.Current().Tracks(k)
}

// TracksApp reports whether name is in the current tracked_apps set.
func (s *Store) TracksApp(name string) bool {
	return s.Current().TracksApp(name)
}

// Set validates and atomically installs cfg as the current configuration.
// On validation failure the previous configuration is retained and an
// error is returned -- this is the only way Set can fail. Load can also
// fail earlier, on an unknown event name or a read error.
func (s *Store) Set(cfg *Config) error {
	if cfg.TrackedApps == nil {
		cfg.TrackedApps = map[string]bool{}
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}

// Load parses a `[general]` key=value configuration block (enable,
// dateformat, apps, events) and installs it via Set. Lines outside a
// recognized `[general]` section, and entire `[manager]`/`[radius]`
// sections, are skipped rather than rejected -- those sections belong to
// sibling subsystems and are not this engine's concern.
//
// This is a small bespoke format (a literal "ALL" sentinel, case-folded
// app names, case-sensitive event names), hand-scanned with bufio rather
// than pulled in through a general-purpose ini/yaml/env library.
func (s *Store) Load(r io.Reader) error {
	cfg := &Config{TrackedApps: map[string]bool{}}
	inGeneral := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			inGeneral = section == "general"
			continue
		}
		if !inGeneral {
			continue
		}

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "enable":
			cfg.Enabled = parseBool(val)
		case "dateformat":
			cfg.DateFormat = val
		case "apps":
			for _, a := range strings.Split(val, ",") {
				a = strings.TrimSpace(strings.ToLower(a))
				if a != "" {
					cfg.TrackedApps[a] = true
				}
			}
		case "events":
			bits, err := event.ParseSet(val)
			if err != nil {
				return err
			}
			cfg.TrackedEvents = bits
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("cel: reading config: %w", err)
	}

	return s.Set(cfg)
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "true", "1", "on":
		return true
	default:
		return false
	}
}
