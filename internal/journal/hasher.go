package journal

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/route-beacon/route-pusher/internal/bgp"
)

// ComputeEventID computes the SHA256 hash of the raw UPDATE message bytes.
// The hash covers the full wire message including the 19-byte header.
// Returns a 32-byte digest suitable for BYTEA storage.
func ComputeEventID(raw []byte) []byte {
	h := sha256.Sum256(raw)
	return h[:]
}

// eventID is the dedup key for a route event: the hash of the wire bytes
// when present, otherwise a hash of the event's logical content. Dry-run
// events carry no wire message and must still journal one row per route.
func eventID(ev *bgp.RouteEvent) []byte {
	if len(ev.Raw) > 0 {
		return ComputeEventID(ev.Raw)
	}
	payload, _ := json.Marshal(ev)
	return ComputeEventID(payload)
}
