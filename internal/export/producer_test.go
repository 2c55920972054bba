package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/route-beacon/route-pusher/internal/bgp"
)

func TestBuildRecord_Announcement(t *testing.T) {
	pref := uint32(500)
	ev := &bgp.RouteEvent{
		Direction: "sent",
		Prefixes:  []string{"192.0.2.0/24"},
		Attrs: bgp.Attributes{
			Origin:      bgp.OriginIGP,
			ASPath:      "64500 64501",
			NextHop:     "10.0.0.1",
			LocalPref:   &pref,
			Communities: []string{"64500:100"},
			Aggregator:  &bgp.Aggregator{AS: 64501, IP: "10.0.0.2"},
		},
	}

	ts := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rec := buildRecord(ev, ts)

	if rec.Direction != "sent" {
		t.Errorf("direction = %q", rec.Direction)
	}
	if rec.Origin != "IGP" {
		t.Errorf("origin = %q", rec.Origin)
	}
	if rec.Aggregator != "64501 10.0.0.2" {
		t.Errorf("aggregator = %q", rec.Aggregator)
	}
	if rec.Timestamp != "2026-08-31T12:00:00Z" {
		t.Errorf("timestamp = %q", rec.Timestamp)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["med"]; ok {
		t.Error("absent MED should be omitted from payload")
	}
	if _, ok := decoded["withdrawn"]; ok {
		t.Error("empty withdrawn should be omitted from payload")
	}
	if decoded["local_pref"] != float64(500) {
		t.Errorf("local_pref = %v", decoded["local_pref"])
	}
}

func TestBuildRecord_PureWithdrawal(t *testing.T) {
	ev := &bgp.RouteEvent{
		Direction: "received",
		Withdrawn: []string{"198.51.100.0/24"},
	}
	rec := buildRecord(ev, time.Now().UTC())
	if rec.Origin != "" {
		t.Errorf("pure withdrawal should not name an origin, got %q", rec.Origin)
	}
	if len(rec.Withdrawn) != 1 {
		t.Fatalf("withdrawn = %v", rec.Withdrawn)
	}
}

func TestRecordKey(t *testing.T) {
	tests := []struct {
		name string
		ev   *bgp.RouteEvent
		want string
	}{
		{"announcement", &bgp.RouteEvent{Prefixes: []string{"192.0.2.0/24"}}, "192.0.2.0/24"},
		{"withdrawal", &bgp.RouteEvent{Withdrawn: []string{"198.51.100.0/24"}}, "198.51.100.0/24"},
		{"empty", &bgp.RouteEvent{}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(recordKey(tc.ev)); got != tc.want {
				t.Errorf("recordKey = %q, want %q", got, tc.want)
			}
		})
	}
}
