package bgp

import (
	"fmt"
	"strconv"
	"strings"
)

// Aggregator is the AGGREGATOR path attribute: the AS and router that
// formed an aggregate route.
type Aggregator struct {
	AS uint16
	IP string
}

func (a Aggregator) String() string {
	return fmt.Sprintf("%d %s", a.AS, a.IP)
}

// Attributes is the path attribute set carried by a single UPDATE, in the
// textual form used by dump records and log lines. LocalPref and MED are
// nil when the attribute is absent.
type Attributes struct {
	Origin          uint8
	ASPath          string
	NextHop         string
	MED             *uint32
	LocalPref       *uint32
	Communities     []string
	AtomicAggregate bool
	Aggregator      *Aggregator
}

// pathSegment is one AS_PATH segment in wire order.
type pathSegment struct {
	segType uint8
	asns    []uint16
}

// splitASPath converts a textual AS path ("65001 65002 {65010,65011}") into
// wire segments. Consecutive plain AS numbers form an AS_SEQUENCE; each
// brace-enclosed comma-separated group forms an AS_SET. An empty path yields
// no segments (valid for iBGP-originated routes).
func splitASPath(path string) ([]pathSegment, error) {
	var segments []pathSegment
	var seq []uint16

	flushSeq := func() {
		if len(seq) > 0 {
			segments = append(segments, pathSegment{segType: ASPathSegmentSequence, asns: seq})
			seq = nil
		}
	}

	for _, tok := range strings.Fields(path) {
		if strings.HasPrefix(tok, "{") {
			flushSeq()
			var set []uint16
			for _, m := range strings.Split(strings.Trim(tok, "{}"), ",") {
				if m == "" {
					continue
				}
				asn, err := strconv.ParseUint(m, 10, 16)
				if err != nil {
					return nil, fmt.Errorf("bgp: bad AS in set %q: %w", tok, err)
				}
				set = append(set, uint16(asn))
			}
			if len(set) > 0 {
				segments = append(segments, pathSegment{segType: ASPathSegmentSet, asns: set})
			}
			continue
		}
		asn, err := strconv.ParseUint(tok, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bgp: bad AS %q in path: %w", tok, err)
		}
		seq = append(seq, uint16(asn))
	}
	flushSeq()

	return segments, nil
}

// joinASPath renders wire segments back into the textual form.
func joinASPath(segments []pathSegment) string {
	var parts []string
	for _, seg := range segments {
		asns := make([]string, len(seg.asns))
		for i, a := range seg.asns {
			asns[i] = strconv.FormatUint(uint64(a), 10)
		}
		switch seg.segType {
		case ASPathSegmentSequence:
			parts = append(parts, strings.Join(asns, " "))
		case ASPathSegmentSet:
			parts = append(parts, "{"+strings.Join(asns, ",")+"}")
		}
	}
	return strings.Join(parts, " ")
}
