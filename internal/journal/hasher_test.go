package journal

import (
	"bytes"
	"testing"

	"github.com/route-beacon/route-pusher/internal/bgp"
)

func TestComputeEventID_Deterministic(t *testing.T) {
	attrs := &bgp.Attributes{Origin: bgp.OriginIGP, ASPath: "64500 64501", NextHop: "10.0.0.1"}
	msg, err := bgp.MarshalUpdate(attrs, []string{"192.0.2.0/24"})
	if err != nil {
		t.Fatal(err)
	}

	h1 := ComputeEventID(msg)
	h2 := ComputeEventID(msg)

	if len(h1) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(h1))
	}
	if !bytes.Equal(h1, h2) {
		t.Fatal("hashes differ for same input")
	}
}

func TestComputeEventID_DifferentMessages(t *testing.T) {
	attrs := &bgp.Attributes{Origin: bgp.OriginIGP, ASPath: "64500", NextHop: "10.0.0.1"}
	msgA, err := bgp.MarshalUpdate(attrs, []string{"192.0.2.0/24"})
	if err != nil {
		t.Fatal(err)
	}
	msgB, err := bgp.MarshalUpdate(attrs, []string{"198.51.100.0/24"})
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(ComputeEventID(msgA), ComputeEventID(msgB)) {
		t.Fatal("different messages should produce different event_ids")
	}
}

func TestEventID_WouldSendEventsAreDistinct(t *testing.T) {
	pref := uint32(500)
	evA := &bgp.RouteEvent{
		Direction: "would-send",
		Prefixes:  []string{"192.0.2.0/24"},
		Attrs:     bgp.Attributes{Origin: bgp.OriginIGP, ASPath: "64500", NextHop: "10.0.0.1", LocalPref: &pref},
	}
	evB := &bgp.RouteEvent{
		Direction: "would-send",
		Prefixes:  []string{"198.51.100.0/24"},
		Attrs:     bgp.Attributes{Origin: bgp.OriginIGP, ASPath: "64500", NextHop: "10.0.0.1", LocalPref: &pref},
	}

	idA := eventID(evA)
	idB := eventID(evB)
	if len(idA) != 32 || len(idB) != 32 {
		t.Fatalf("ids must be 32 bytes, got %d and %d", len(idA), len(idB))
	}
	if bytes.Equal(idA, idB) {
		t.Fatal("distinct previewed routes must not share an event_id")
	}
	if !bytes.Equal(idA, eventID(evA)) {
		t.Fatal("event_id must be stable for the same event")
	}
}

func TestEventID_PrefersWireBytes(t *testing.T) {
	attrs := &bgp.Attributes{Origin: bgp.OriginIGP, ASPath: "64500", NextHop: "10.0.0.1"}
	msg, err := bgp.MarshalUpdate(attrs, []string{"192.0.2.0/24"})
	if err != nil {
		t.Fatal(err)
	}
	ev := &bgp.RouteEvent{Direction: "sent", Prefixes: []string{"192.0.2.0/24"}, Attrs: *attrs, Raw: msg}

	if !bytes.Equal(eventID(ev), ComputeEventID(msg)) {
		t.Fatal("events with wire bytes must hash the wire bytes")
	}
}
