// Package bus implements the CEL engine's topic plumbing: upstream
// producers publish tagged messages onto their own Topic; the Bus
// forwards every subscribed Topic into one aggregation channel; a
// single dispatcher goroutine drains that channel and hands each
// message to the Router, which dispatches by message kind to exactly
// one translator.
package bus

import (
	"celengine/internal/event"
	"celengine/internal/snapshot"
)

// Message is a tagged variant dispatched by Router on Kind(). Using
// tagged variants here (one concrete struct type per kind, each
// implementing Kind()) avoids runtime type-switches in the router itself
// -- Kind() is the single source of truth for routing.
type Message interface {
	Kind() string
}

const (
	KindSnapshotDiff     = "snapshot_diff"
	KindBridgeEnter      = "bridge_enter"
	KindBridgeExit       = "bridge_exit"
	KindPark             = "park"
	KindDial             = "dial"
	KindBlindTransfer    = "blind_transfer"
	KindAttendedTransfer = "attended_transfer"
	KindPickup           = "pickup"
	KindLocalOptimize    = "local_optimize"
	KindUserDefined      = "user_defined"
)

// SnapshotDiffMsg carries an (old, new) channel snapshot pair for the
// diff translators. Either snapshot may be nil (absent), never both.
type SnapshotDiffMsg struct {
	Old *snapshot.Channel
	New *snapshot.Channel
}

func (SnapshotDiffMsg) Kind() string { return KindSnapshotDiff }

// BridgeMsg carries a bridge entry or exit for one channel.
type BridgeMsg struct {
	BridgeID string
	Channel  *snapshot.Channel
	Enter    bool
}

func (m BridgeMsg) Kind() string {
	if m.Enter {
		return KindBridgeEnter
	}
	return KindBridgeExit
}

// ParkSubKind distinguishes the parking event carried by ParkMsg.
type ParkSubKind int

const (
	ParkParked ParkSubKind = iota
	ParkTimeout
	ParkGiveUp
	ParkUnparked
	ParkFailed
	ParkSwap
)

// ParkMsg carries a parking lifecycle event. ParkerDialString and
// ParkingLot are only meaningful when SubKind == ParkParked.
type ParkMsg struct {
	SubKind          ParkSubKind
	Channel          *snapshot.Channel
	ParkerDialString string
	ParkingLot       string
}

func (ParkMsg) Kind() string { return KindPark }

// DialMsg carries one dial attempt outcome/forward notification.
type DialMsg struct {
	Caller     *snapshot.Channel
	Forward    string
	DialStatus string
}

func (DialMsg) Kind() string { return KindDial }

// BlindTransferMsg carries a completed or failed blind transfer attempt.
type BlindTransferMsg struct {
	Transferer *snapshot.Channel
	Result     string // "success" fires BLINDTRANSFER; anything else drops
	Extension  string
	Context    string
	BridgeID   string // may be empty if no bridge snapshot was attached
}

func (BlindTransferMsg) Kind() string { return KindBlindTransfer }

// TransferSide is one leg of an attended transfer: the bridge it was on
// (HasBridge false if it had none) and the channel itself.
type TransferSide struct {
	BridgeID  string // read only when HasBridge is true
	HasBridge bool
	Channel   *snapshot.Channel
}

// AttendedTransferDest names the destination category of an attended
// transfer.
type AttendedTransferDest int

const (
	DestBridgeMerge AttendedTransferDest = iota
	DestLink
	DestThreeway
	DestApp
	DestFail
)

// AttendedTransferMsg carries an attended transfer attempt. Dest ==
// DestFail is dropped by the translator before emission.
type AttendedTransferMsg struct {
	ToTransferTarget TransferSide
	ToTransferee     TransferSide
	Dest             AttendedTransferDest
	App              string // set only when Dest == DestApp
}

func (AttendedTransferMsg) Kind() string { return KindAttendedTransfer }

// PickupMsg carries a call-pickup event.
type PickupMsg struct {
	Target *snapshot.Channel
	Picker *snapshot.Channel
}

func (PickupMsg) Kind() string { return KindPickup }

// LocalOptimizeMsg carries a local-channel optimization event.
type LocalOptimizeMsg struct {
	Channel1 *snapshot.Channel
	Channel2 *snapshot.Channel
}

func (LocalOptimizeMsg) Kind() string { return KindLocalOptimize }

// UserDefinedMsg is the single generic carrier for both a
// platform-originated "event_details" message and an externally
// published event. Both enter the same routing path so that neither
// source can reach a backend except through report-event's filtering.
//
// EventKind is the kind the producer asked for. The Generic translator
// only accepts EventKind == event.UserDefined; anything else is a
// malformed upstream message that is logged and dropped.
type UserDefinedMsg struct {
	Channel   *snapshot.Channel
	EventKind event.Kind
	EventName string // event_details.event / the publish API's user-defined name
	Extra     any    // event_details.extra / the publish API's extras
}

func (UserDefinedMsg) Kind() string { return KindUserDefined }
