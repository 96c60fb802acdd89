// Package invariant is the fail-fast helper spec.md §7 calls for:
// invariant violations (BWmap over-allocation beyond carry budget, a
// transmit time past one frame slot, a wire field overflow) indicate an
// implementation bug or corrupted configuration, never a recoverable
// runtime condition, so they panic instead of returning an error.
// Grounded on the teacher's fail-fast constructor validation (every
// NewDriver rejects bad input before first use), taken to its logical
// conclusion for checks that run inside the hot loop instead of at
// construction time.
package invariant

import "fmt"

// Check panics with a formatted message if cond is false.
func Check(cond bool, format string, args ...any) {
	if !cond {
		panic("invariant violation: " + fmt.Sprintf(format, args...))
	}
}
