// Package filter evaluates user-supplied per-field regex constraints
// against parsed route records.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Key names one filterable record field. The set of keys is closed; unknown
// keys are rejected when the set is built.
type Key string

const (
	KeyNeighbor        Key = "NEIG"
	KeyPrefix          Key = "NLRI"
	KeyASPath          Key = "ASPT"
	KeyOrigin          Key = "ORIG"
	KeyNextHop         Key = "NXHP"
	KeyLocalPref       Key = "LOCP"
	KeyMED             Key = "MED"
	KeyCommunity       Key = "COMM"
	KeyAtomicAggregate Key = "ATOM"
	KeyAggregator      Key = "AGG"
)

var knownKeys = map[Key]struct{}{
	KeyNeighbor:        {},
	KeyPrefix:          {},
	KeyASPath:          {},
	KeyOrigin:          {},
	KeyNextHop:         {},
	KeyLocalPref:       {},
	KeyMED:             {},
	KeyCommunity:       {},
	KeyAtomicAggregate: {},
	KeyAggregator:      {},
}

// Set holds at most one compiled pattern per field key.
type Set struct {
	patterns map[Key]*regexp.Regexp
}

// New builds a Set from "KEY=PATTERN" entries. Keys are case-insensitive.
// An unknown key or a pattern that does not compile is an error; callers
// treat it as fatal before any connection attempt.
func New(entries []string) (*Set, error) {
	s := &Set{patterns: make(map[Key]*regexp.Regexp)}
	for _, entry := range entries {
		rawKey, pattern, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("filter: entry %q is not KEY=PATTERN", entry)
		}
		key := Key(strings.ToUpper(strings.TrimSpace(rawKey)))
		if _, known := knownKeys[key]; !known {
			return nil, fmt.Errorf("filter: unknown key %q in entry %q", rawKey, entry)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("filter: pattern for %s does not compile: %w", key, err)
		}
		s.patterns[key] = re
	}
	return s, nil
}

// Match reports whether value satisfies the constraint bound to key. A key
// with no bound pattern matches everything.
func (s *Set) Match(key Key, value string) bool {
	if s == nil {
		return true
	}
	re, ok := s.patterns[key]
	if !ok {
		return true
	}
	return re.MatchString(value)
}

// Bound reports whether a pattern is bound for key.
func (s *Set) Bound(key Key) bool {
	if s == nil {
		return false
	}
	_, ok := s.patterns[key]
	return ok
}
