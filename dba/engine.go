// Package dba implements the OLT-side Dynamic Bandwidth Allocation tick
// loop: scanning registered T-CONTs in round-robin order, delegating grant
// sizing to a pluggable Policy, assembling the resulting per-ONU bursts,
// and emitting one BWmap per 125us upstream frame slot. Grounded on
// original_source/model/xgpon-olt-dba-engine.cc and
// xgpon-olt-dba-engine-round-robin.cc, generalized the way factory.go
// generalizes vendor adapters behind a single Driver contract.
package dba

import (
	"fmt"
	"sort"
	"time"

	"github.com/nanoncore/xgponsim/burstasm"
	"github.com/nanoncore/xgponsim/config"
	"github.com/nanoncore/xgponsim/connmgr"
	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/invariant"
	"github.com/nanoncore/xgponsim/model"
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/simclock"
	"github.com/nanoncore/xgponsim/tcont"
	"github.com/nanoncore/xgponsim/units"
)

// maxWireGrantSize is the largest value a BwAlloc's GrantSize/StartTime
// field can carry on the wire (both are uint16, and 0xFFFF on StartTime is
// reserved as NoStartTime).
const maxWireGrantSize = 0xFFFE

// MaxTcontPerBwmap bounds how many BwAlloc records a single BWmap may
// carry, guarding against a misbehaving Policy that never lets the scan
// loop terminate.
const MaxTcontPerBwmap = 64

// tickSlackBaseUnits is the margin the tick loop stops short of the frame
// budget by, so the last grant's FEC/overhead rounding cannot push a
// burst past the frame boundary (spec.md §4.2 step 3).
const tickSlackBaseUnits units.BaseUnits = 10

// fecDataBlockBytes and fecTotalBlockBytes are the FEC block sizes shared
// by every burst this engine assembles.
const (
	fecDataBlockBytes  = 216
	fecTotalBlockBytes = 248
)

// OnuLink is the OLT's per-ONU link state the engine needs to size and
// address a burst: the negotiated profile, and whether this tick's burst
// must carry a pending PLOAM message.
type OnuLink struct {
	Profile      phy.Profile
	PloamPresent bool
}

// ServedBwmap records a BWmap the engine has already issued, queued so a
// caller can pop it (olt.Receiver.PopServedBwmap) and pair it with a
// returning burst one round-trip later (spec.md §4.2 Design Notes).
type ServedBwmap struct {
	Map          model.BWmap
	CreationTime time.Duration
}

// Engine is the OLT-side DBA tick driver. It owns no T-CONTs itself;
// connmgr.OltManager does, and the engine holds only a reference to it,
// looking T-CONTs up by AllocId each tick.
type Engine struct {
	cfg            config.Config
	unit           units.GrantUnit
	usPhyFrameSize units.BaseUnits
	framesPerCycle int

	oltMgr *connmgr.OltManager
	pool   *burstasm.Pool
	policy Policy
	log    simclock.Logger

	onuLinks map[ident.OnuId]OnuLink

	lastIndexForFrame int
	lastIndexForCycle int
	cycleOpen         bool
	extraCarry        units.BaseUnits

	served []ServedBwmap
}

// NewEngine constructs a DBA engine bound to oltMgr's T-CONT table and
// driven by policy. log may be nil, in which case diagnostics are
// discarded.
func NewEngine(cfg config.Config, oltMgr *connmgr.OltManager, policy Policy, log simclock.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oltMgr == nil {
		return nil, fmt.Errorf("dba: NewEngine requires a non-nil OltManager")
	}
	if policy == nil {
		return nil, fmt.Errorf("dba: NewEngine requires a non-nil Policy")
	}
	if log == nil {
		log = simclock.NopLogger{}
	}
	params := phy.ParamsFor(cfg.PonMode)
	return &Engine{
		cfg:            cfg,
		unit:           cfg.PonMode.GrantUnit(),
		usPhyFrameSize: units.BaseUnits(params.UsPhyFrameSize),
		framesPerCycle: cfg.FramesPerDBAcycle,
		oltMgr:         oltMgr,
		pool:           burstasm.NewPool(),
		policy:         policy,
		log:            log,
		onuLinks:       make(map[ident.OnuId]OnuLink),
	}, nil
}

// RegisterOnuLink records onu's negotiated burst profile, called once when
// the ONU is activated and before its first BwAlloc is granted.
func (e *Engine) RegisterOnuLink(onu ident.OnuId, link OnuLink) {
	e.onuLinks[onu] = link
}

// GrantUnit returns the base grant unit this engine was constructed with.
func (e *Engine) GrantUnit() units.GrantUnit { return e.unit }

// UsPhyFrameSize returns the upstream frame capacity in base units.
func (e *Engine) UsPhyFrameSize() units.BaseUnits { return e.usPhyFrameSize }

// FramesPerCycle returns the configured DBA cycle length in frames.
func (e *Engine) FramesPerCycle() int { return e.framesPerCycle }

// ExtraCarry returns the over-allocation carried into the next tick's
// budget (spec.md §7).
func (e *Engine) ExtraCarry() units.BaseUnits { return e.extraCarry }

// OltManager exposes the bound T-CONT table so Policy implementations can
// look up QoS state beyond the single T-CONT passed to SelectGrant.
func (e *Engine) OltManager() *connmgr.OltManager { return e.oltMgr }

// PopServed dequeues the oldest BWmap this engine has issued but not yet
// handed to a caller, for round-trip matching against arriving bursts.
func (e *Engine) PopServed() (ServedBwmap, bool) {
	if len(e.served) == 0 {
		return ServedBwmap{}, false
	}
	b := e.served[0]
	e.served = e.served[1:]
	return b, true
}

// atCycleBoundary reports whether now starts a new DBA cycle: its frame
// slot index is a multiple of framesPerCycle.
func (e *Engine) atCycleBoundary(now time.Duration) bool {
	frameSlot := int64(now / phy.FrameSlotNs)
	return frameSlot%int64(e.framesPerCycle) == 0
}

func (e *Engine) tcontAt(order []ident.AllocId, idx int) *tcont.OltTcont {
	n := len(order)
	if n == 0 {
		return nil
	}
	id := order[((idx%n)+n)%n]
	t, _ := e.oltMgr.Tcont(id)
	return t
}

// firstTcont opens a new cycle: lastIndexForCycle takes on the scan
// cursor's current position, wherever the previous cycle's scan left off,
// cycleOpen is set, and the T-CONT under that cursor is returned.
func (e *Engine) firstTcont(order []ident.AllocId) *tcont.OltTcont {
	e.lastIndexForCycle = e.lastIndexForFrame
	e.cycleOpen = true
	return e.tcontAt(order, e.lastIndexForFrame)
}

// currentTcont resumes an in-progress cycle at the cursor the previous
// frame's scan left off at, or returns nil if no cycle is open.
func (e *Engine) currentTcont(order []ident.AllocId) *tcont.OltTcont {
	if !e.cycleOpen {
		return nil
	}
	return e.tcontAt(order, e.lastIndexForFrame)
}

// nextTcont advances the scan cursor by one ring position and returns the
// T-CONT now under it.
func (e *Engine) nextTcont(order []ident.AllocId) *tcont.OltTcont {
	e.lastIndexForFrame++
	return e.tcontAt(order, e.lastIndexForFrame)
}

// checkAllTcontsServed reports whether the scan cursor has wrapped back to
// where this cycle began, meaning every T-CONT in the ring has now been
// visited once since firstTcont opened it.
func (e *Engine) checkAllTcontsServed(order []ident.AllocId) bool {
	n := len(order)
	if n == 0 {
		return true
	}
	cur := ((e.lastIndexForFrame % n) + n) % n
	start := ((e.lastIndexForCycle % n) + n) % n
	return cur == start
}

// GenerateBwMap runs one DBA tick (spec.md §4.2): clears the burst pool,
// lets the policy prepare, scans T-CONTs either opening a fresh cycle or
// resuming the one in progress, grants bandwidth up to the frame budget,
// and returns the resulting BWmap.
func (e *Engine) GenerateBwMap(now time.Duration) model.BWmap {
	e.pool.ClearTick()
	e.policy.PrepareTick(e, now)

	order := e.oltMgr.Order()
	var cur *tcont.OltTcont
	if len(order) > 0 {
		if e.atCycleBoundary(now) {
			cur = e.firstTcont(order)
		} else {
			cur = e.currentTcont(order)
		}
	}

	budget := e.usPhyFrameSize
	if e.extraCarry < budget {
		budget -= e.extraCarry
	} else {
		budget = 0
	}
	stopAt := units.BaseUnits(0)
	if budget > tickSlackBaseUnits {
		stopAt = budget - tickSlackBaseUnits
	}

	state := &TickState{Now: now, Budget: budget}

	for cur != nil && state.Allocated < stopAt && state.NumScheduled < MaxTcontPerBwmap {
		size := e.policy.SelectGrant(e, cur, state)
		if size > 0 {
			e.grant(cur, size, now, state)
		}
		cur = e.nextTcont(order)
		if e.checkAllTcontsServed(order) {
			e.cycleOpen = false
			break
		}
	}

	e.policy.FinalizeTick(e, now)

	bwmap := e.produceBwmapFromBursts(now)

	if state.Allocated > e.usPhyFrameSize {
		e.extraCarry = state.Allocated - e.usPhyFrameSize
	} else {
		e.extraCarry = 0
	}

	e.served = append(e.served, ServedBwmap{Map: bwmap, CreationTime: now})
	return bwmap
}

// grant records sizeBU base units of bandwidth for t's burst this tick and
// credits the resulting increase in on-wire bytes, after FEC/gap
// expansion, to state.Allocated.
func (e *Engine) grant(t *tcont.OltTcont, sizeBU units.BaseUnits, now time.Duration, state *TickState) {
	link := e.onuLinks[t.OnuId]
	info := e.pool.Get(t.OnuId, link.Profile, link.PloamPresent, fecDataBlockBytes, fecTotalBlockBytes)

	invariant.Check(sizeBU <= maxWireGrantSize, "dba: grant size %d for alloc %d overflows the uint16 GrantSize wire field", sizeBU, t.AllocId)

	before := info.FinalBurstBytes(e.unit)
	deltaBytes := sizeBU.ToBytes(e.unit)
	// Every grant requests a fresh DBRu, poll or not: a size-1 poll grant
	// exists specifically so an idle ONU can report, so it carries the
	// flag just as much as a data grant does (spec.md §4.2).
	flags := model.FlagDBRuRequest
	created := info.AddAlloc(t.AllocId, t, uint16(sizeBU), flags, link.Profile.Index, deltaBytes)
	after := info.FinalBurstBytes(e.unit)

	deltaFinal := after - before
	deltaAllocatedBU := units.CeilBytesToBaseUnits(deltaFinal, e.unit)
	state.Allocated += deltaAllocatedBU
	if created {
		state.NumScheduled++
	}
	t.RecordGrant(model.BwAlloc{
		AllocId:           t.AllocId,
		GrantSize:         uint16(sizeBU),
		Flags:             flags,
		BurstProfileIndex: link.Profile.Index,
	}, uint64(deltaBytes), now)
}

// produceBwmapFromBursts walks the ONUs with an active accumulator this
// tick in ascending OnuId order, assigning each burst's first BwAlloc a
// StartTime equal to the cumulative base-unit offset of every burst ahead
// of it (spec.md §4.2 step 4). Later BwAlloc records within the same
// burst (a second AllocId sharing the ONU) carry NoStartTime: they are
// accounting-only, since the ONU transmits the whole burst as one unit.
func (e *Engine) produceBwmapFromBursts(now time.Duration) model.BWmap {
	onus := e.pool.OnusInUse()
	sort.Slice(onus, func(i, j int) bool { return onus[i] < onus[j] })

	var allocs []model.BwAlloc
	cursor := units.BaseUnits(0)
	for _, onu := range onus {
		info, ok := e.pool.Lookup(onu)
		if !ok || len(info.Allocs) == 0 {
			continue
		}
		for i, a := range info.Allocs {
			if i == 0 {
				invariant.Check(cursor <= maxWireGrantSize, "dba: cumulative burst offset %d for onu %d overflows the uint16 StartTime wire field", cursor, onu)
				a.StartTime = uint16(cursor)
			}
			allocs = append(allocs, a)
		}
		burstUnits := units.CeilBytesToBaseUnits(info.FinalBurstBytes(e.unit), e.unit)
		cursor += burstUnits
	}
	return model.BWmap{CreationTime: now, Allocs: allocs}
}
