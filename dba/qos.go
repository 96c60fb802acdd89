// QoS-aware DBA policies layered on the round-robin scan order: each adds
// its own grant-sizing rule on top of the shared wantedGrant/ceiling
// machinery in common.go, the same way vendors/*/adapter.go layers
// vendor-specific encodings on top of factory.go's common Driver contract.
// Supplemented from the guaranteed-bandwidth and fairness discussion in
// original_source/model/xgpon-olt-dba-engine.cc, which spec.md distilled
// down to "QoS-aware variants" without naming their exact formulas.
package dba

import (
	"time"

	"github.com/nanoncore/xgponsim/tcont"
	"github.com/nanoncore/xgponsim/units"
)

// Giant grants each T-CONT at least its fixed+assured bandwidth
// commitment every cycle before falling back to reported-demand sizing,
// so type-1/type-2 traffic never starves behind best-effort demand.
type Giant struct {
	ceiling units.BaseUnits
}

func NewGiant() *Giant { return &Giant{} }

func (p *Giant) Name() string { return "giant" }

func (p *Giant) PrepareTick(e *Engine, now time.Duration) {
	p.ceiling = maxServicePerOnu(e.framesPerCycle, e.usPhyFrameSize, e.oltMgr.Len())
}

func (p *Giant) SelectGrant(e *Engine, t *tcont.OltTcont, state *TickState) units.BaseUnits {
	remaining := t.CalculateRemainingDataToServe(0)
	want := wantedGrant(remaining, e.unit, p.ceiling)
	guaranteed := guaranteedBaseUnits(t.QoS.FixedBw+t.QoS.AssuredBw, e.framesPerCycle, e.unit)
	if guaranteed > want {
		want = guaranteed
	}
	if want > p.ceiling {
		want = p.ceiling
	}
	return want
}

func (p *Giant) FinalizeTick(e *Engine, now time.Duration) {}

// Xgiant extends Giant with a secondary, half-weighted guarantee over
// non-assured bandwidth, giving type-3 traffic a softer floor than
// type-1/type-2 but still ahead of plain best-effort.
type Xgiant struct {
	ceiling units.BaseUnits
}

func NewXgiant() *Xgiant { return &Xgiant{} }

func (p *Xgiant) Name() string { return "xgiant" }

func (p *Xgiant) PrepareTick(e *Engine, now time.Duration) {
	p.ceiling = maxServicePerOnu(e.framesPerCycle, e.usPhyFrameSize, e.oltMgr.Len())
}

func (p *Xgiant) SelectGrant(e *Engine, t *tcont.OltTcont, state *TickState) units.BaseUnits {
	remaining := t.CalculateRemainingDataToServe(0)
	want := wantedGrant(remaining, e.unit, p.ceiling)
	floor := guaranteedBaseUnits(t.QoS.FixedBw+t.QoS.AssuredBw, e.framesPerCycle, e.unit)
	floor += guaranteedBaseUnits(t.QoS.NonAssuredBw, e.framesPerCycle, e.unit) / 2
	if floor > want {
		want = floor
	}
	if want > p.ceiling {
		want = p.ceiling
	}
	return want
}

func (p *Xgiant) FinalizeTick(e *Engine, now time.Duration) {}

// Ebu (effective bandwidth utilization) tracks an exponentially smoothed
// demand estimate per T-CONT in its Deficit field, trading round-to-round
// responsiveness for steadier grant sizes under bursty traffic.
type Ebu struct {
	ceiling units.BaseUnits
	alpha   float64
}

func NewEbu() *Ebu { return &Ebu{alpha: 0.25} }

func (p *Ebu) Name() string { return "ebu" }

func (p *Ebu) PrepareTick(e *Engine, now time.Duration) {
	p.ceiling = maxServicePerOnu(e.framesPerCycle, e.usPhyFrameSize, e.oltMgr.Len())
}

func (p *Ebu) SelectGrant(e *Engine, t *tcont.OltTcont, state *TickState) units.BaseUnits {
	remaining := t.CalculateRemainingDataToServe(0)
	if remaining == 0 {
		t.Deficit = int64(float64(t.Deficit) * (1 - p.alpha))
		return PollGrantBaseUnits
	}
	instantaneous := float64(wantedGrant(remaining, e.unit, p.ceiling))
	smoothed := p.alpha*instantaneous + (1-p.alpha)*float64(t.Deficit)
	t.Deficit = int64(smoothed)
	want := units.BaseUnits(smoothed)
	if want < MinGrantBaseUnits {
		want = MinGrantBaseUnits
	}
	if want > p.ceiling {
		want = p.ceiling
	}
	return want
}

func (p *Ebu) FinalizeTick(e *Engine, now time.Duration) {}

// DeficitRR is a classic deficit round-robin scheduler: each T-CONT
// accrues a fixed quantum every visit, and can only be granted up to its
// accumulated deficit, which carries forward across ticks when a T-CONT
// has less demand than its quantum.
type DeficitRR struct {
	ceiling units.BaseUnits
	quantum units.BaseUnits
}

func NewDeficitRR() *DeficitRR { return &DeficitRR{} }

func (p *DeficitRR) Name() string { return "xgiant-deficit" }

func (p *DeficitRR) PrepareTick(e *Engine, now time.Duration) {
	p.ceiling = maxServicePerOnu(e.framesPerCycle, e.usPhyFrameSize, e.oltMgr.Len())
	p.quantum = p.ceiling
}

func (p *DeficitRR) SelectGrant(e *Engine, t *tcont.OltTcont, state *TickState) units.BaseUnits {
	remaining := t.CalculateRemainingDataToServe(0)
	if remaining == 0 {
		return PollGrantBaseUnits
	}
	t.Deficit += int64(p.quantum)
	want := wantedGrant(remaining, e.unit, p.ceiling)
	if t.Deficit < int64(want) {
		want = units.BaseUnits(t.Deficit)
		if want < MinGrantBaseUnits {
			want = MinGrantBaseUnits
		}
	}
	t.Deficit -= int64(want)
	return want
}

func (p *DeficitRR) FinalizeTick(e *Engine, now time.Duration) {}

// Proportional scales the per-ONU ceiling for each T-CONT by its total
// provisioned QoS bandwidth over a fixed 1 Gb/s reference (weights above
// 1 Gb/s count as 1 Gb/s). Each T-CONT is scaled on its own, not against
// the other T-CONTs' weights; a zero weight or a share that rounds to zero
// gets the full ceiling.
type Proportional struct {
	ceiling units.BaseUnits
}

func NewProportional() *Proportional { return &Proportional{} }

func (p *Proportional) Name() string { return "xgiant-prop" }

func (p *Proportional) PrepareTick(e *Engine, now time.Duration) {
	p.ceiling = maxServicePerOnu(e.framesPerCycle, e.usPhyFrameSize, e.oltMgr.Len())
}

func (p *Proportional) SelectGrant(e *Engine, t *tcont.OltTcont, state *TickState) units.BaseUnits {
	remaining := t.CalculateRemainingDataToServe(0)
	if remaining == 0 {
		return PollGrantBaseUnits
	}
	weight := t.QoS.FixedBw + t.QoS.AssuredBw + t.QoS.NonAssuredBw + t.QoS.BestEffortBw
	share := p.ceiling
	if weight > 0 {
		const weightScale = 1_000_000_000
		scaled := uint64(p.ceiling) * min64(weight, weightScale) / weightScale
		if scaled > 0 {
			share = units.BaseUnits(scaled)
		}
	}
	return wantedGrant(remaining, e.unit, share)
}

func (p *Proportional) FinalizeTick(e *Engine, now time.Duration) {}
