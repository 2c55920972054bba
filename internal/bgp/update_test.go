package bgp

import (
	"encoding/binary"
	"testing"
)

// buildUpdate constructs a raw BGP UPDATE message from its components.
func buildUpdate(withdrawn []byte, pathAttrs []byte, nlri []byte) []byte {
	bodyLen := 2 + len(withdrawn) + 2 + len(pathAttrs) + len(nlri)
	totalLen := HeaderSize + bodyLen

	msg := make([]byte, totalLen)
	for i := 0; i < 16; i++ {
		msg[i] = 0xFF
	}
	binary.BigEndian.PutUint16(msg[16:18], uint16(totalLen))
	msg[18] = MsgTypeUpdate

	offset := HeaderSize
	binary.BigEndian.PutUint16(msg[offset:offset+2], uint16(len(withdrawn)))
	offset += 2
	copy(msg[offset:], withdrawn)
	offset += len(withdrawn)

	binary.BigEndian.PutUint16(msg[offset:offset+2], uint16(len(pathAttrs)))
	offset += 2
	copy(msg[offset:], pathAttrs)
	offset += len(pathAttrs)

	copy(msg[offset:], nlri)
	return msg
}

func uint32ptr(v uint32) *uint32 { return &v }

func TestMarshalUpdate_HeaderAndNLRI(t *testing.T) {
	attrs := &Attributes{
		Origin:  OriginIGP,
		ASPath:  "",
		NextHop: "192.0.2.1",
	}
	msg, err := MarshalUpdate(attrs, []string{"10.0.0.0/24"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 16; i++ {
		if msg[i] != 0xFF {
			t.Fatalf("marker byte %d = %#x, want 0xFF", i, msg[i])
		}
	}
	if got := binary.BigEndian.Uint16(msg[16:18]); int(got) != len(msg) {
		t.Errorf("length field = %d, want %d", got, len(msg))
	}
	if msg[18] != MsgTypeUpdate {
		t.Errorf("type = %d, want %d", msg[18], MsgTypeUpdate)
	}
	if got := binary.BigEndian.Uint16(msg[19:21]); got != 0 {
		t.Errorf("withdrawn length = %d, want 0", got)
	}

	// NLRI is the tail: prefixLen=24 plus 3 address bytes.
	nlri := msg[len(msg)-4:]
	if nlri[0] != 24 || nlri[1] != 10 || nlri[2] != 0 || nlri[3] != 0 {
		t.Errorf("nlri = %v, want [24 10 0 0]", nlri)
	}
}

func TestMarshalUpdate_RoundTrip(t *testing.T) {
	attrs := &Attributes{
		Origin:          OriginEGP,
		ASPath:          "65001 65002 {65010,65011}",
		NextHop:         "198.51.100.7",
		MED:             uint32ptr(40),
		LocalPref:       uint32ptr(500),
		Communities:     []string{"65001:100", "65001:200"},
		AtomicAggregate: true,
		Aggregator:      &Aggregator{AS: 65001, IP: "203.0.113.9"},
	}

	msg, err := MarshalUpdate(attrs, []string{"172.16.0.0/16", "10.1.2.0/24"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rcv, err := ParseUpdate(msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rcv == nil {
		t.Fatal("parse returned nil for UPDATE message")
	}

	if len(rcv.Prefixes) != 2 || rcv.Prefixes[0] != "172.16.0.0/16" || rcv.Prefixes[1] != "10.1.2.0/24" {
		t.Errorf("prefixes = %v", rcv.Prefixes)
	}
	if len(rcv.Withdrawn) != 0 {
		t.Errorf("withdrawn = %v, want none", rcv.Withdrawn)
	}
	got := rcv.Attrs
	if got.Origin != OriginEGP {
		t.Errorf("origin = %d, want %d", got.Origin, OriginEGP)
	}
	if got.ASPath != "65001 65002 {65010,65011}" {
		t.Errorf("as path = %q", got.ASPath)
	}
	if got.NextHop != "198.51.100.7" {
		t.Errorf("next hop = %q", got.NextHop)
	}
	if got.MED == nil || *got.MED != 40 {
		t.Errorf("med = %v, want 40", got.MED)
	}
	if got.LocalPref == nil || *got.LocalPref != 500 {
		t.Errorf("local pref = %v, want 500", got.LocalPref)
	}
	if len(got.Communities) != 2 || got.Communities[0] != "65001:100" || got.Communities[1] != "65001:200" {
		t.Errorf("communities = %v", got.Communities)
	}
	if !got.AtomicAggregate {
		t.Error("atomic aggregate not set")
	}
	if got.Aggregator == nil || got.Aggregator.AS != 65001 || got.Aggregator.IP != "203.0.113.9" {
		t.Errorf("aggregator = %+v", got.Aggregator)
	}
}

func TestMarshalUpdate_BadInput(t *testing.T) {
	tests := []struct {
		name     string
		attrs    *Attributes
		prefixes []string
	}{
		{"bad next hop", &Attributes{NextHop: "not-an-ip"}, []string{"10.0.0.0/8"}},
		{"bad as path", &Attributes{NextHop: "192.0.2.1", ASPath: "65001 foo"}, []string{"10.0.0.0/8"}},
		{"bad prefix", &Attributes{NextHop: "192.0.2.1"}, []string{"10.0.0.0/40"}},
		{"bad community", &Attributes{NextHop: "192.0.2.1", Communities: []string{"x"}}, []string{"10.0.0.0/8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MarshalUpdate(tt.attrs, tt.prefixes); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseUpdate_Withdrawal(t *testing.T) {
	// Withdrawn: 172.16.0.0/16 → prefixLen=16, 2 address bytes.
	msg := buildUpdate([]byte{16, 172, 16}, nil, nil)

	rcv, err := ParseUpdate(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rcv.Withdrawn) != 1 || rcv.Withdrawn[0] != "172.16.0.0/16" {
		t.Errorf("withdrawn = %v, want [172.16.0.0/16]", rcv.Withdrawn)
	}
	if len(rcv.Prefixes) != 0 {
		t.Errorf("prefixes = %v, want none", rcv.Prefixes)
	}
}

func TestParseUpdate_NonUpdateIgnored(t *testing.T) {
	msg := buildUpdate(nil, nil, nil)
	msg[18] = 4 // KEEPALIVE

	rcv, err := ParseUpdate(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rcv != nil {
		t.Errorf("expected nil for non-UPDATE message, got %+v", rcv)
	}
}

func TestParseUpdate_Truncated(t *testing.T) {
	msg := buildUpdate([]byte{16, 172, 16}, nil, nil)
	// Claim more withdrawn bytes than present.
	binary.BigEndian.PutUint16(msg[19:21], 200)

	if _, err := ParseUpdate(msg); err == nil {
		t.Error("expected error for truncated withdrawn section")
	}
}
