package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/route-beacon/route-pusher/internal/bgp"
	"go.uber.org/zap"
)

func uint32ptr(v uint32) *uint32 { return &v }

func TestFormatSent(t *testing.T) {
	attrs := &bgp.Attributes{
		Origin:      bgp.OriginIGP,
		ASPath:      "65010 65020",
		NextHop:     "10.0.0.1",
		LocalPref:   uint32ptr(500),
		MED:         uint32ptr(40),
		Communities: []string{"65010:100", "65010:200"},
		Aggregator:  &bgp.Aggregator{AS: 65020, IP: "10.2.0.1"},
	}
	got := FormatSent(attrs, "10.1.0.0/16")
	want := "PREFIX [10.1.0.0/16] AS_PATH [65010 65020] AGGREGATOR [65020 10.2.0.1]" +
		" ATOMIC_AGGREGATE [0] LOCAL_PREF [500] MED [40]" +
		" COMMUNITY [65010:100 65010:200] ORIGIN [0] NEXT_HOP [10.0.0.1]"
	if got != want {
		t.Errorf("FormatSent:\n got %q\nwant %q", got, want)
	}
}

func TestFormatSent_Minimal(t *testing.T) {
	attrs := &bgp.Attributes{
		Origin:          bgp.OriginIncomplete,
		NextHop:         "192.0.2.1",
		AtomicAggregate: true,
	}
	got := FormatSent(attrs, "10.0.0.0/8")
	want := "PREFIX [10.0.0.0/8] AS_PATH [] ATOMIC_AGGREGATE [1] COMMUNITY [] ORIGIN [2] NEXT_HOP [192.0.2.1]"
	if got != want {
		t.Errorf("FormatSent:\n got %q\nwant %q", got, want)
	}
}

func TestFormatReceived(t *testing.T) {
	rcv := &bgp.Received{
		Prefixes: []string{"10.1.0.0/16", "10.2.0.0/16"},
		Attrs: bgp.Attributes{
			Origin:      bgp.OriginEGP,
			ASPath:      "65010",
			NextHop:     "10.0.0.2",
			MED:         uint32ptr(5),
			Communities: []string{"65010:1"},
		},
	}
	got := FormatReceived(rcv)
	want := "PREFIXES [10.1.0.0/16 10.2.0.0/16] AS_PATH [65010] MED [5]" +
		" COMMUNITY [65010:1] ORIGIN [EGP] AGGREGATOR [] NEXT_HOP [10.0.0.2]"
	if got != want {
		t.Errorf("FormatReceived:\n got %q\nwant %q", got, want)
	}
}

func TestFormatNotification(t *testing.T) {
	got := FormatNotification("NOTIFICATION received", 6, 1, nil)
	want := "NOTIFICATION received [Cease] SUBCODE [Maximum Number of Prefixes Reached]"
	if got != want {
		t.Errorf("FormatNotification:\n got %q\nwant %q", got, want)
	}

	got = FormatNotification("ERROR occurred", 99, 3, []byte{0xDE, 0xAD})
	want = "ERROR occurred [unknown] SUBCODE [unknown] DATA [dead]"
	if got != want {
		t.Errorf("FormatNotification:\n got %q\nwant %q", got, want)
	}
}

func TestReporter_Tee(t *testing.T) {
	var buf bytes.Buffer
	r := New(zap.NewNop(), &buf)

	attrs := &bgp.Attributes{Origin: bgp.OriginIGP, NextHop: "10.0.0.1"}
	r.Sent(attrs, "10.0.0.0/24", true)
	r.Reject(2, "invalid prefix")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "would-send: PREFIX [10.0.0.0/24]") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "rejected line 2:") {
		t.Errorf("line 1 = %q", lines[1])
	}
}
