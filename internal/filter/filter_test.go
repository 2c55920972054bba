package filter

import "testing"

func TestNew_ValidEntries(t *testing.T) {
	s, err := New([]string{"NEIG=^10\\.", "nlri=^192\\.168\\.", "Comm=65001:"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Bound(KeyNeighbor) || !s.Bound(KeyPrefix) || !s.Bound(KeyCommunity) {
		t.Error("expected NEIG, NLRI and COMM to be bound")
	}
	if s.Bound(KeyOrigin) {
		t.Error("ORIG should not be bound")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"unknown key", "WHAT=.*"},
		{"missing separator", "NEIG"},
		{"bad pattern", "NEIG=["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New([]string{tt.entry}); err == nil {
				t.Errorf("New(%q): expected error", tt.entry)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	s, err := New([]string{"NEIG=^10\\.0\\."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.Match(KeyNeighbor, "10.0.0.2") {
		t.Error("expected 10.0.0.2 to match ^10\\.0\\.")
	}
	if s.Match(KeyNeighbor, "192.168.0.1") {
		t.Error("expected 192.168.0.1 not to match")
	}
	// Unbound key matches everything.
	if !s.Match(KeyPrefix, "anything at all") {
		t.Error("unbound key must match")
	}
}

func TestMatch_NilSet(t *testing.T) {
	var s *Set
	if !s.Match(KeyNeighbor, "10.0.0.2") {
		t.Error("nil set must match everything")
	}
	if s.Bound(KeyNeighbor) {
		t.Error("nil set has no bound keys")
	}
}
