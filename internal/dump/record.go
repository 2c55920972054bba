// Package dump parses table-dump text files (bgpdump -m style) into route
// records and provides the field syntax checks applied before a record may
// be advertised.
package dump

import (
	"fmt"
	"strings"
)

// AtomicAggregateMarker is the token in the atomic-aggregate field that
// marks an aggregated route.
const AtomicAggregateMarker = "AG"

// minFields is the field count a dump line must have for all positional
// fields used here to exist.
const minFields = 14

// RouteRecord is one parsed dump line. Fields hold the pipe-delimited
// positions verbatim; no normalization is applied.
type RouteRecord struct {
	Neighbor    string // position 3: originating neighbor
	Prefix      string // position 5: a.b.c.d/mask
	ASPath      string // position 6
	Origin      string // position 7: IGP/EGP/other token
	NextHop     string // position 8
	MED         string // position 10
	Communities string // position 11: space-delimited ASN:VALUE pairs
	AtomicAgg   string // position 12: atomic-aggregate marker
	Aggregator  string // position 13: space-delimited aggregator list
}

// ParseLine splits a pipe-delimited dump line into a RouteRecord. Lines
// with fewer than 14 fields are rejected.
func ParseLine(line string) (*RouteRecord, error) {
	fields := strings.Split(line, "|")
	if len(fields) < minFields {
		return nil, fmt.Errorf("dump: line has %d fields, need %d", len(fields), minFields)
	}
	return &RouteRecord{
		Neighbor:    fields[3],
		Prefix:      fields[5],
		ASPath:      fields[6],
		Origin:      fields[7],
		NextHop:     fields[8],
		MED:         fields[10],
		Communities: fields[11],
		AtomicAgg:   fields[12],
		Aggregator:  fields[13],
	}, nil
}
