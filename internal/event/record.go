package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"celengine/internal/snapshot"
)

// Record is the normalized, self-contained CEL event payload. It is built
// once per emission by NewRecord and never retains references to the
// snapshot it was built from -- every field is copied.
type Record struct {
	// ID is a per-emission key: NewRecord mints a fresh UUID for every
	// record, whatever its kind. It is not part of the wire form;
	// wsbackend's JSON does not carry it.
	ID string

	Kind     Kind
	UserName string // set only for Kind == UserDefined

	TimeSec  int64
	TimeUsec int64

	CallerName   string
	CallerNumber string
	ANI          string
	RDNIS        string
	DNID         string

	Context   string
	Extension string

	ChannelName string
	AppName     string
	AppData     string

	AccountCode string
	PeerAccount string
	UniqueID    string
	LinkedID    string
	UserField   string
	AMAFlags    uint
	PeerName    string

	Extras string // compact serialization of the extras object, "" if absent
}

// nowFunc is overridden in tests so record construction is deterministic.
var nowFunc = time.Now

// NewRecord builds a Record from a channel snapshot. userName is only
// meaningful for Kind == UserDefined. extras, if non-nil, is serialized to
// a compact string; a serialization error (a value encoding/json cannot
// encode) abandons the single emission (returns an error) rather than producing a
// half-built record -- the caller logs and continues.
func NewRecord(k Kind, snap *snapshot.Channel, userName string, extras any) (*Record, error) {
	now := nowFunc()

	r := &Record{
		ID:       uuid.NewString(),
		Kind:     k,
		UserName: userName,
		TimeSec:  now.Unix(),
		TimeUsec: int64(now.Nanosecond() / 1000),
	}

	if snap != nil {
		r.CallerName = snap.CallerName
		r.CallerNumber = snap.CallerNumber
		r.ANI = snap.ANI
		r.RDNIS = snap.RDNIS
		r.DNID = snap.DNID
		r.Context = snap.Context
		r.Extension = snap.Extension
		r.ChannelName = snap.Name
		r.AppName = snap.AppName
		r.AppData = snap.AppData
		r.AccountCode = snap.AccountCode
		r.PeerAccount = snap.PeerAccount
		r.UniqueID = snap.UniqueID
		r.LinkedID = snap.LinkedID
		r.UserField = snap.UserField
		r.AMAFlags = snap.AMAFlags
		r.PeerName = snap.PeerName
	}

	if extras != nil {
		b, err := json.Marshal(extras)
		if err != nil {
			return nil, fmt.Errorf("cel: serializing extras for %s: %w", Name(k), err)
		}
		r.Extras = string(b)
	}

	return r, nil
}

// FabricatedChannel is a lightweight channel-like object synthesized from
// an event record, for consumers (e.g. CDR-adjacent code) that want to
// treat a historical CEL record as if it were a live channel snapshot.
//
// KNOWN BUG, preserved on purpose: AccountCode and PeerAccount are both
// populated from the record's AccountCode field. The record's own
// PeerAccount field is never read here. This is a long-standing quirk
// that downstream consumers may already depend on; flagged here for
// later review rather than silently "fixed".
type FabricatedChannel struct {
	UniqueID     string
	LinkedID     string
	Name         string
	CallerName   string
	CallerNumber string
	ANI          string
	RDNIS        string
	DNID         string
	Context      string
	Extension    string
	AppName      string
	AppData      string
	AccountCode  string
	PeerAccount  string
	UserField    string
	AMAFlags     uint
	PeerName     string
	EventTime    string // formatted per the configured date format
}

// Fabricate synthesizes a FabricatedChannel from r. dateFormat is the
// configured dateformat string, written in the operator-facing strftime
// dialect (e.g. "%F %T"); an empty format yields "<sec>.<usec>" instead.
// appName/appData are copied into the returned struct so its lifetime
// does not depend on r's.
func Fabricate(r *Record, dateFormat string) *FabricatedChannel {
	fc := &FabricatedChannel{
		UniqueID:     r.UniqueID,
		LinkedID:     r.LinkedID,
		Name:         r.ChannelName,
		CallerName:   r.CallerName,
		CallerNumber: r.CallerNumber,
		ANI:          r.ANI,
		RDNIS:        r.RDNIS,
		DNID:         r.DNID,
		Context:      r.Context,
		Extension:    r.Extension,
		AppName:      r.AppName,
		AppData:      r.AppData,
		AccountCode:  r.AccountCode,
		PeerAccount:  r.AccountCode, // see doc comment: preserved bug, not our peer_account
		UserField:    r.UserField,
		AMAFlags:     r.AMAFlags,
		PeerName:     r.PeerName,
	}

	if dateFormat == "" {
		fc.EventTime = strconv.FormatInt(r.TimeSec, 10) + "." + strconv.FormatInt(r.TimeUsec, 10)
	} else {
		fc.EventTime = time.Unix(r.TimeSec, r.TimeUsec*1000).UTC().Format(strftimeToGoLayout(dateFormat))
	}

	return fc
}

// strftimeSpecs maps the strftime conversion specifiers recognized in a
// dateformat string to the equivalent Go reference-time layout chunk.
var strftimeSpecs = map[rune]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'P': "pm",
	'Z': "MST",
	'z': "-0700",
	'a': "Mon",
	'A': "Monday",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'F': "2006-01-02",
	'T': "15:04:05",
	'%': "%",
}

// strftimeToGoLayout translates a strftime-style dateformat (the dialect
// operators write in the configuration file, e.g. "%F %T") into the
// equivalent time.Format reference layout. time.Format interprets its
// layout argument literally against the reference time
// "Mon Jan 2 15:04:05 MST 2006" -- handing it a raw strftime string
// would print the percent-escapes back out verbatim instead of
// substituting the current time, so every recognized specifier is
// translated before formatting. An unrecognized specifier (or any
// character outside of a specifier) passes through unchanged.
func strftimeToGoLayout(format string) string {
	var b strings.Builder
	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '%' && i+1 < len(runes) {
			if layout, ok := strftimeSpecs[runes[i+1]]; ok {
				b.WriteString(layout)
				i++
				continue
			}
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}
