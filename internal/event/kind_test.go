package event

import "testing"

func TestRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		name := Name(k)
		if name == "Unknown" {
			t.Fatalf("Name(%d) = Unknown, want a real name", k)
		}
		got, ok := Parse(name)
		if !ok {
			t.Fatalf("Parse(%q) failed, want ok", name)
		}
		if got != k {
			t.Fatalf("Parse(Name(%d)) = %d, want %d", k, got, k)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	if _, ok := Parse("NOT_A_REAL_EVENT"); ok {
		t.Fatal("Parse of unknown name should fail")
	}
}

func TestParseSetAll(t *testing.T) {
	bits, err := ParseSet("ALL")
	if err != nil {
		t.Fatalf("ParseSet(ALL) error: %v", err)
	}
	if bits != AllBits() {
		t.Fatalf("ParseSet(ALL) = %b, want %b", bits, AllBits())
	}
}

func TestParseSetUnknownName(t *testing.T) {
	_, err := ParseSet("CHANNEL_START,BOGUS")
	if err == nil {
		t.Fatal("expected error for unknown event name")
	}
	var unameErr *UnknownEventNameError
	if _, ok := err.(*UnknownEventNameError); !ok {
		_ = unameErr
		t.Fatalf("expected *UnknownEventNameError, got %T", err)
	}
}

func TestParseSetMixedWhitespace(t *testing.T) {
	bits, err := ParseSet(" CHANNEL_START , HANGUP ,, ANSWER")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ChannelStart.Bit() | Hangup.Bit() | Answer.Bit()
	if bits != want {
		t.Fatalf("got %b, want %b", bits, want)
	}
}

func TestBitOutOfRange(t *testing.T) {
	if All.Bit() != 0 {
		t.Fatal("All.Bit() should be 0, it is not a real tracked kind")
	}
	if Kind(999).Bit() != 0 {
		t.Fatal("out-of-range kind should have a zero bit")
	}
}
