package linkedid

import (
	"testing"

	"celengine/internal/snapshot"
)

func TestRefUnrefSingleChannel(t *testing.T) {
	tr := NewTracker()
	tr.Ref("L1")
	if tr.Count("L1") != 1 {
		t.Fatalf("Count = %d, want 1", tr.Count("L1"))
	}

	var fired *snapshot.Channel
	tr.Unref(&snapshot.Channel{LinkedID: "L1", Name: "c1"}, func(s *snapshot.Channel) { fired = s }, nil)

	if fired == nil || fired.Name != "c1" {
		t.Fatal("expected LINKEDID_END emission for the unrefing channel")
	}
	if tr.Count("L1") != 0 {
		t.Fatal("entry should be removed once refcount hits zero")
	}
}

func TestSharedLinkedIDFiresOnce(t *testing.T) {
	tr := NewTracker()
	tr.Ref("L")
	tr.Ref("L")

	var fires int
	var lastSubject string
	emit := func(s *snapshot.Channel) {
		fires++
		lastSubject = s.Name
	}

	tr.Unref(&snapshot.Channel{LinkedID: "L", Name: "c1"}, emit, nil)
	if fires != 0 {
		t.Fatal("must not fire until last reference drops")
	}
	tr.Unref(&snapshot.Channel{LinkedID: "L", Name: "c2"}, emit, nil)
	if fires != 1 {
		t.Fatalf("fires = %d, want exactly 1", fires)
	}
	if lastSubject != "c2" {
		t.Fatalf("LINKEDID_END subject = %q, want c2 (the channel whose end triggered it)", lastSubject)
	}
}

func TestUnrefMissingEntryReportsWithoutPanicking(t *testing.T) {
	tr := NewTracker()
	var missingID string
	tr.Unref(&snapshot.Channel{LinkedID: "ghost"}, func(*snapshot.Channel) {
		t.Fatal("emit must not be called for a missing entry")
	}, func(id string) { missingID = id })

	if missingID != "ghost" {
		t.Fatalf("missing callback id = %q, want ghost", missingID)
	}
}

func TestRefUnrefNoopOnEmptyID(t *testing.T) {
	tr := NewTracker()
	tr.Ref("")
	if tr.Len() != 0 {
		t.Fatal("Ref(\"\") must be a no-op")
	}
	tr.Unref(&snapshot.Channel{LinkedID: ""}, func(*snapshot.Channel) {
		t.Fatal("must not emit for empty linked-id")
	}, func(string) {
		t.Fatal("must not report missing for empty linked-id")
	})
}
