package dba

import (
	"time"

	"github.com/nanoncore/xgponsim/tcont"
	"github.com/nanoncore/xgponsim/units"
)

// TickState threads per-tick bookkeeping through a Policy's three calls:
// the budget this tick may spend, what has been allocated so far, and how
// many distinct T-CONTs have received a new burst record this tick.
type TickState struct {
	Now          time.Duration
	Budget       units.BaseUnits
	Allocated    units.BaseUnits
	NumScheduled int
}

// Policy is the pluggable DBA grant-sizing strategy. spec.md §4.2 names
// round-robin as the reference policy and GIANT, Xgiant, EBU, deficit, and
// proportional as QoS-aware variants; all of them share this same
// three-call contract, the same role CapabilityMatrix/NewDriver's Driver
// interface plays for vendor adapters in factory.go.
type Policy interface {
	Name() string

	// PrepareTick runs once at the start of a tick, before any T-CONT is
	// visited, letting a policy cache per-tick values like the fair-share
	// ceiling.
	PrepareTick(e *Engine, now time.Duration)

	// SelectGrant returns the base-unit grant size for t this tick. A
	// return of 0 means t is skipped this visit (no BwAlloc is created or
	// extended for it).
	SelectGrant(e *Engine, t *tcont.OltTcont, state *TickState) units.BaseUnits

	// FinalizeTick runs once after the scan loop exits, letting a policy
	// update any carried-forward state (e.g. deficit counters) that
	// depends on the whole tick's outcome.
	FinalizeTick(e *Engine, now time.Duration)
}
