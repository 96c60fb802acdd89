package dba

import (
	"time"

	"github.com/nanoncore/xgponsim/tcont"
	"github.com/nanoncore/xgponsim/units"
)

// RoundRobin is the reference DBA policy of spec.md §4.2: every T-CONT is
// visited in registration order and granted whatever its reported
// occupancy calls for, clamped to an equal per-ONU share of the cycle.
// Grounded on original_source/model/xgpon-olt-dba-engine-round-robin.cc.
type RoundRobin struct {
	ceiling units.BaseUnits
}

// NewRoundRobin constructs the reference round-robin policy.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (p *RoundRobin) Name() string { return "round-robin" }

func (p *RoundRobin) PrepareTick(e *Engine, now time.Duration) {
	p.ceiling = maxServicePerOnu(e.framesPerCycle, e.usPhyFrameSize, e.oltMgr.Len())
}

func (p *RoundRobin) SelectGrant(e *Engine, t *tcont.OltTcont, state *TickState) units.BaseUnits {
	remaining := t.CalculateRemainingDataToServe(0)
	return wantedGrant(remaining, e.unit, p.ceiling)
}

func (p *RoundRobin) FinalizeTick(e *Engine, now time.Duration) {}
