package metrics

import "testing"

func TestRegister_Idempotent(t *testing.T) {
	// MustRegister panics on duplicate registration; the sync.Once guard
	// must make repeated calls safe.
	Register()
	Register()
}
