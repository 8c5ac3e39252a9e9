package engine

import (
	"celengine/internal/bus"
	"celengine/internal/event"
	"celengine/internal/snapshot"
)

// handleSnapshotDiff runs the three diff translators in their
// load-bearing fixed order: app-change, then state-change, then
// linkedid-change. APP_END must precede HANGUP, and linkedid tracking
// must only see the final ref after both prior translators have emitted
// anything that depends on the outgoing snapshot.
func (e *Engine) handleSnapshotDiff(m bus.Message) {
	d := m.(bus.SnapshotDiffMsg)
	if isInternal(d.Old) || isInternal(d.New) {
		return
	}

	e.appChange(d.Old, d.New)
	e.stateChange(d.Old, d.New)
	e.linkedIDChange(d.Old, d.New)
}

func isInternal(s *snapshot.Channel) bool {
	return s != nil && s.Internal
}

func (e *Engine) appChange(old, newer *snapshot.Channel) {
	if old != nil && newer != nil && old.AppName == newer.AppName {
		return
	}
	if old != nil && old.AppName != "" {
		e.reportEvent(event.AppEnd, old, "", nil)
	}
	if newer != nil && newer.AppName != "" {
		e.reportEvent(event.AppStart, newer, "", nil)
	}
}

func (e *Engine) stateChange(old, newer *snapshot.Channel) {
	switch {
	case newer == nil:
		e.reportEvent(event.ChannelEnd, old, "", nil)
		e.unrefLinked(old)
	case old == nil:
		// The ref for CHANNEL_START happens inside reportEvent itself,
		// gated on LINKEDID_END tracking, even when CHANNEL_START is not
		// itself tracked -- do not ref again here.
		e.reportEvent(event.ChannelStart, newer, "", nil)
	case !old.Dead && newer.Dead:
		blob, _ := e.dial.Drain(newer.UniqueID)
		e.reportEvent(event.Hangup, newer, "", map[string]any{
			"hangupcause":  newer.HangupCause,
			"hangupsource": newer.HangupSource,
			"dialstatus":   blob.DialStatus,
		})
	case old.State != newer.State && newer.State == snapshot.StateUp:
		e.reportEvent(event.Answer, newer, "", nil)
	}
}

func (e *Engine) linkedIDChange(old, newer *snapshot.Channel) {
	if old == nil || newer == nil {
		return
	}
	if old.LinkedID == newer.LinkedID {
		return
	}
	e.refLinked(newer.LinkedID)
	e.unrefLinked(old)
}
