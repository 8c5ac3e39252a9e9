package engine

import (
	"celengine/internal/bus"
	"celengine/internal/dialstatus"
	"celengine/internal/event"
)

// registerTranslators wires every bus message kind to its translator.
// This is the one place the fixed kind->handler mapping is assembled;
// nothing else in the engine runtime-switches on message type.
func (e *Engine) registerTranslators() {
	e.router.Register(bus.KindSnapshotDiff, e.handleSnapshotDiff)
	e.router.Register(bus.KindBridgeEnter, e.handleBridge)
	e.router.Register(bus.KindBridgeExit, e.handleBridge)
	e.router.Register(bus.KindPark, e.handlePark)
	e.router.Register(bus.KindDial, e.handleDial)
	e.router.Register(bus.KindBlindTransfer, e.handleBlindTransfer)
	e.router.Register(bus.KindAttendedTransfer, e.handleAttendedTransfer)
	e.router.Register(bus.KindPickup, e.handlePickup)
	e.router.Register(bus.KindLocalOptimize, e.handleLocalOptimize)
	e.router.Register(bus.KindUserDefined, e.handleGeneric)
}

func (e *Engine) handleBridge(m bus.Message) {
	b := m.(bus.BridgeMsg)
	if isInternal(b.Channel) {
		return
	}
	kind := event.BridgeEnter
	if !b.Enter {
		kind = event.BridgeExit
	}
	e.reportEvent(kind, b.Channel, "", map[string]any{"bridge_id": b.BridgeID})
}

var parkEndReasons = map[bus.ParkSubKind]string{
	bus.ParkTimeout:  "ParkedCallTimeOut",
	bus.ParkGiveUp:   "ParkedCallGiveUp",
	bus.ParkUnparked: "ParkedCallUnparked",
	bus.ParkFailed:   "ParkedCallFailed",
	bus.ParkSwap:     "ParkedCallSwap",
}

func (e *Engine) handlePark(m bus.Message) {
	p := m.(bus.ParkMsg)
	if p.Channel == nil {
		return
	}

	if p.SubKind == bus.ParkParked {
		e.reportEvent(event.ParkStart, p.Channel, "", map[string]any{
			"parker_dial_string": p.ParkerDialString,
			"parking_lot":        p.ParkingLot,
		})
		return
	}

	reason, ok := parkEndReasons[p.SubKind]
	if !ok {
		e.log.Error().Int("subkind", int(p.SubKind)).Msg("cel: unrecognized parking sub-kind, dropping")
		return
	}
	e.reportEvent(event.ParkEnd, p.Channel, "", map[string]any{"reason": reason})
}

func (e *Engine) handleDial(m bus.Message) {
	d := m.(bus.DialMsg)
	if d.Caller == nil {
		return
	}
	if d.Forward != "" {
		e.reportEvent(event.Forward, d.Caller, "", map[string]any{"forward": d.Forward})
	}
	if d.DialStatus != "" {
		e.dial.Stage(d.Caller.UniqueID, dialstatus.Blob{DialStatus: d.DialStatus, Forward: d.Forward})
	}
}

func (e *Engine) handleBlindTransfer(m bus.Message) {
	t := m.(bus.BlindTransferMsg)
	if t.Transferer == nil || t.Result != "success" || t.Extension == "" || t.Context == "" {
		return
	}
	e.reportEvent(event.BlindTransfer, t.Transferer, "", map[string]any{
		"extension": t.Extension,
		"context":   t.Context,
		"bridge_id": t.BridgeID,
	})
}

func (e *Engine) handleAttendedTransfer(m bus.Message) {
	t := m.(bus.AttendedTransferMsg)
	if t.Dest == bus.DestFail {
		return
	}

	// Order the sides so b1 is the one bearing a bridge, swapping if the
	// primary side lacks one. This guards the null-bridge case by never
	// reading a bridge id off a side without one.
	b1, c1, b2, c2 := t.ToTransferTarget, t.ToTransferTarget.Channel, t.ToTransferee, t.ToTransferee.Channel
	if !b1.HasBridge && t.ToTransferee.HasBridge {
		b1, c1, b2, c2 = t.ToTransferee, t.ToTransferee.Channel, t.ToTransferTarget, t.ToTransferTarget.Channel
	}
	if c1 == nil {
		return
	}

	var bridge1ID, bridge2ID any
	if b1.HasBridge {
		bridge1ID = b1.BridgeID
	}
	if b2.HasBridge {
		bridge2ID = b2.BridgeID
	}
	var channel2Name string
	if c2 != nil {
		channel2Name = c2.Name
	}

	switch t.Dest {
	case bus.DestBridgeMerge, bus.DestLink, bus.DestThreeway:
		e.reportEvent(event.AttendedTransfer, c1, "", map[string]any{
			"bridge1_id":    bridge1ID,
			"channel2_name": channel2Name,
			"bridge2_id":    bridge2ID,
		})
	case bus.DestApp:
		e.reportEvent(event.AttendedTransfer, c1, "", map[string]any{
			"bridge1_id":    bridge1ID,
			"channel2_name": channel2Name,
			"app":           t.App,
		})
	}
}

func (e *Engine) handlePickup(m bus.Message) {
	p := m.(bus.PickupMsg)
	if p.Target == nil || p.Picker == nil {
		return
	}
	e.reportEvent(event.Pickup, p.Target, "", map[string]any{"pickup_channel": p.Picker.Name})
}

func (e *Engine) handleLocalOptimize(m bus.Message) {
	lo := m.(bus.LocalOptimizeMsg)
	if lo.Channel1 == nil || lo.Channel2 == nil {
		return
	}
	e.reportEvent(event.LocalOptimize, lo.Channel1, "", map[string]any{"local_two": lo.Channel2.Name})
}

func (e *Engine) handleGeneric(m bus.Message) {
	u := m.(bus.UserDefinedMsg)
	if u.EventKind != event.UserDefined {
		e.log.Error().Str("kind", event.Name(u.EventKind)).Msg("cel: generic translator received a non-USER_DEFINED kind, dropping")
		return
	}
	if u.Channel == nil {
		return
	}
	e.reportEvent(event.UserDefined, u.Channel, u.EventName, u.Extra)
}
