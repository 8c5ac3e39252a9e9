// Package engine wires together every CEL collaborator -- config store,
// backend registry, linked-id tracker, dial-status store, and the bus/
// router pair -- behind a single Engine object created by New and
// passed to subscribers by capture. Tests instantiate independent
// engines; there is no process-wide global.
package engine

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"celengine/internal/backend"
	"celengine/internal/bus"
	"celengine/internal/config"
	"celengine/internal/dialstatus"
	"celengine/internal/event"
	"celengine/internal/linkedid"
	"celengine/internal/metrics"
	"celengine/internal/snapshot"
)

// Engine is the CEL engine: the central object every translator and
// every public operation is a method of or closes over.
type Engine struct {
	log zerolog.Logger

	cfg      *config.Store
	backends *backend.Registry
	linked   *linkedid.Tracker
	dial     *dialstatus.Store
	metrics  *metrics.Counters

	router *bus.Router
	busI   *bus.Bus
	pubTop *bus.Topic

	mu      sync.Mutex
	running bool
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogWriter directs the engine's zerolog output at w instead of
// os.Stderr. Mainly useful for tests that want to assert on log output.
func WithLogWriter(w io.Writer) Option {
	return func(e *Engine) {
		e.log = zerolog.New(w).With().Timestamp().Logger()
	}
}

// New constructs an Engine with every collaborator wired but not yet
// running -- call Init to subscribe topics and start the dispatcher.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:      zerolog.New(os.Stderr).With().Timestamp().Logger(),
		cfg:      config.NewStore(),
		backends: backend.NewRegistry(),
		linked:   linkedid.NewTracker(),
		dial:     dialstatus.NewStore(),
		metrics:  metrics.NewCounters(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.router = bus.NewRouter(func(kind string) {
		e.log.Error().Str("kind", kind).Msg("cel: no translator registered for message kind")
	})
	e.busI = bus.NewBus(e.router, 256)
	e.pubTop = bus.NewTopic(64)
	e.registerTranslators()
	return e
}

// Metrics exposes the engine's activity counters for read-only reporting.
func (e *Engine) Metrics() *metrics.Counters { return e.metrics }

// Subscribe attaches an upstream producer's Topic to the engine's bus.
// Must be called before Init (mirroring Bus.Subscribe's own
// precondition).
func (e *Engine) Subscribe(t *bus.Topic) {
	e.busI.Subscribe(t)
}

// Init starts the engine: subscribes the CEL-owned publish topic and
// starts the dispatcher goroutine. Safe to call only once per Engine.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	e.busI.Subscribe(e.pubTop)
	e.busI.Start()
	e.running = true
	return nil
}

// Term tears the engine down: stops the dispatcher and joins every
// forwarder, guaranteeing no translator or backend callback is in
// flight on return, then discards the tracker and dial-status state.
// Events published after Term are dropped because nothing is left to
// dispatch them.
func (e *Engine) Term() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.busI.Stop()
	e.linked = linkedid.NewTracker()
	e.dial.Clear()
	e.running = false
}

// Reload parses a configuration source and installs it if valid. On
// validation failure the previous configuration is retained and the
// error is returned -- Reload never leaves the engine without a
// configuration.
func (e *Engine) Reload(r io.Reader) error {
	if err := e.cfg.Load(r); err != nil {
		e.log.Error().Err(err).Msg("cel: configuration reload rejected, keeping prior configuration")
		return err
	}
	return nil
}

// GetConfig returns the current configuration snapshot.
func (e *Engine) GetConfig() *config.Config { return e.cfg.Current() }

// SetConfig validates and installs cfg directly, bypassing the file
// parser -- used by callers that already hold a typed configuration
// object (e.g. a management API).
func (e *Engine) SetConfig(cfg *config.Config) error { return e.cfg.Set(cfg) }

// CheckEnabled reports whether the engine is currently enabled.
func (e *Engine) CheckEnabled() bool { return e.cfg.IsEnabled() }

// BackendRegister installs cb under name.
func (e *Engine) BackendRegister(name string, cb backend.Callback) error {
	return e.backends.Register(name, cb)
}

// BackendUnregister removes name.
func (e *Engine) BackendUnregister(name string) error {
	return e.backends.Unregister(name)
}

// BackendNames returns a snapshot of registered backend names, for the
// CLI's status output.
func (e *Engine) BackendNames() []string { return e.backends.Names() }

// FabricateChannelFromEvent synthesizes a lightweight channel-like
// object from r, using the current configuration's date format.
func (e *Engine) FabricateChannelFromEvent(r *event.Record) *event.FabricatedChannel {
	return event.Fabricate(r, e.cfg.Current().DateFormat)
}

// StrToEventType resolves name to its Kind, or (-1, false) if unknown.
func (e *Engine) StrToEventType(name string) (event.Kind, bool) {
	k, ok := event.Parse(name)
	if !ok {
		return -1, false
	}
	return k, true
}

// GetTypeName returns k's canonical name, or "Unknown" if unrecognized.
func (e *Engine) GetTypeName(k event.Kind) string { return event.Name(k) }

// Publish wraps the arguments in the generic carrier message and
// publishes it on the CEL-owned topic, which the bus forwards into the
// aggregation topic alongside every other upstream producer. Publishers
// never reach backends directly -- this is the only way external code
// can inject an event, and it goes through the exact same routing and
// filtering as platform-originated events.
func (e *Engine) Publish(ch *snapshot.Channel, kind event.Kind, extras any) {
	e.pubTop.Publish(bus.UserDefinedMsg{
		Channel:   ch,
		EventKind: kind,
		Extra:     extras,
	})
}

// reportEvent is the central gate every translator funnels through:
// enabled/tracked-events/tracked-apps filtering, record construction, and
// backend fan-out. userName is only meaningful for event.UserDefined.
func (e *Engine) reportEvent(k event.Kind, snap *snapshot.Channel, userName string, extras any) {
	cfg := e.cfg.Current()

	// Disabled config drops silently.
	if cfg == nil || !cfg.Enabled {
		return
	}

	// CHANNEL_START refs the linked-id whenever LINKEDID_END is tracked,
	// even if CHANNEL_START itself is untracked.
	if k == event.ChannelStart && cfg.Tracks(event.LinkedIDEnd) {
		e.linked.Ref(snap.LinkedID)
	}

	// Kind-level filter.
	if !cfg.Tracks(k) {
		e.metrics.DroppedByFilter()
		return
	}

	// App-level filter for APP_START/APP_END.
	if k == event.AppStart || k == event.AppEnd {
		if !cfg.TracksApp(snap.AppName) {
			e.metrics.DroppedByFilter()
			return
		}
	}

	// Build the record and fan out.
	rec, err := event.NewRecord(k, snap, userName, extras)
	if err != nil {
		e.log.Error().Err(err).Str("kind", event.Name(k)).Msg("cel: dropping emission, record construction failed")
		return
	}
	e.metrics.Emitted(k)

	e.backends.ForEach(rec, e.metrics.BackendInvoked, func(name string, recovered any) {
		e.metrics.BackendPanicked(name)
		e.log.Error().Str("backend", name).Interface("panic", recovered).Msg("cel: backend callback panicked, isolated from siblings")
	})

	// record released implicitly: nothing retains rec past this call.
}

// unrefLinked unrefs snap's linked-id, emitting LINKEDID_END through
// reportEvent if the refcount drops to zero. A no-op while LINKEDID_END
// is untracked -- this keeps the tracker empty, and the CHANNEL_START
// ref in reportEvent a true no-op, whenever the feature is unused.
func (e *Engine) unrefLinked(snap *snapshot.Channel) {
	if !e.cfg.Tracks(event.LinkedIDEnd) {
		return
	}
	e.linked.Unref(snap, func(s *snapshot.Channel) {
		e.reportEvent(event.LinkedIDEnd, s, "", nil)
	}, func(linkedID string) {
		e.log.Error().Str("linkedid", linkedID).Msg("cel: CHANNEL_END for unknown linkedid, ignoring")
	})
}

// refLinked refs id directly, bypassing reportEvent's CHANNEL_START
// special case -- used by the linkedid-change translator, which refs
// the new linked-id unconditionally on a mid-call linkedid swap, not as
// a side effect of a CHANNEL_START emission. Still gated on
// LINKEDID_END being tracked, same rationale as unrefLinked.
func (e *Engine) refLinked(id string) {
	if e.cfg.Tracks(event.LinkedIDEnd) {
		e.linked.Ref(id)
	}
}
