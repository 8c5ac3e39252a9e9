package config

import (
	"strings"
	"testing"

	"celengine/internal/event"
)

const sampleConf = `
[general]
enable=yes
dateformat=%F %T
apps=Dial,Queue
events=CHANNEL_START,CHANNEL_END,APP_START,APP_END,HANGUP

[manager]
enabled=yes
port=5038

[radius]
server=127.0.0.1
`

func TestLoadParsesGeneralSection(t *testing.T) {
	s := NewStore()
	if err := s.Load(strings.NewReader(sampleConf)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := s.Current()
	if !cfg.Enabled {
		t.Fatal("expected enabled=true")
	}
	if cfg.DateFormat != "%F %T" {
		t.Fatalf("dateformat = %q", cfg.DateFormat)
	}
	if !cfg.TracksApp("dial") || !cfg.TracksApp("QUEUE") {
		t.Fatalf("expected case-insensitive app tracking, got %+v", cfg.TrackedApps)
	}
	if cfg.TracksApp("bridge") {
		t.Fatal("unexpected app tracked")
	}
}

func TestLoadSkipsOtherSections(t *testing.T) {
	s := NewStore()
	if err := s.Load(strings.NewReader(sampleConf)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// `enabled` under [manager] must not leak into our Enabled field --
	// it already is correct because Enabled came from [general]'s
	// `enable`, a different key name, but this guards against a future
	// section-tracking regression.
	cfg := s.Current()
	if !cfg.Enabled {
		t.Fatal("expected [general] enable=yes to still apply")
	}
}

func TestLoadRejectsUnknownEventName(t *testing.T) {
	s := NewStore()
	err := s.Load(strings.NewReader("[general]\nevents=BOGUS\n"))
	if err == nil {
		t.Fatal("expected error for unknown event name")
	}
}

func TestSetRejectsAppsWithoutAppEvents(t *testing.T) {
	s := NewStore()
	// Seed a known-good configuration first.
	if err := s.Load(strings.NewReader("[general]\nenable=yes\nevents=CHANNEL_START\n")); err != nil {
		t.Fatalf("seed load failed: %v", err)
	}

	bad := &Config{Enabled: true, TrackedApps: map[string]bool{"dial": true}}
	if err := s.Set(bad); err == nil {
		t.Fatal("expected rejection: apps configured but no APP_START/APP_END tracked")
	}

	// Prior configuration must still be in effect.
	if s.Current().TracksApp("dial") {
		t.Fatal("rejected configuration must not have been applied")
	}
}

func TestSetAllowsAppsWithAppEventTracked(t *testing.T) {
	s := NewStore()
	ok := &Config{
		Enabled:       true,
		TrackedApps:   map[string]bool{"dial": true},
		TrackedEvents: event.AppStart.Bit(),
	}
	if err := s.Set(ok); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}
