// Package burstasm is the per-burst assembler (OLT side): it accumulates
// bandwidth allocations destined for the same ONU into a single burst and
// computes the exact on-wire size, including preamble, delimiter, guard,
// FEC expansion, and PLOAM insertion. Grounded on
// original_source/model/xgpon-olt-dba-per-burst-info.cc; the free-list
// pool follows Design Notes §9 "Pool of burst-info records".
package burstasm

import (
	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/model"
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/tcont"
	"github.com/nanoncore/xgponsim/units"
)

// BurstInfo accumulates the BwAllocs destined for one ONU's upstream
// burst during a single DBA tick.
type BurstInfo struct {
	OnuId        ident.OnuId
	Profile      phy.Profile
	PloamPresent bool
	DataBlockSize  int // D, bytes
	FecBlockSize   int // T, bytes

	// HeaderTrailerDataBytes (G) is the running total of payload bytes
	// this burst carries, before FEC expansion and gap overhead.
	HeaderTrailerDataBytes units.Bytes

	Allocs    []model.BwAlloc
	OltTconts []*tcont.OltTcont

	// allocIndex maps an AllocId already present in this burst to its
	// index in Allocs, so repeated grants in one tick extend the same
	// record instead of creating a new one.
	allocIndex map[ident.AllocId]int
}

// Reset clears b for reuse against a new ONU/tick, without reallocating
// its backing slices where capacity allows.
func (b *BurstInfo) Reset(onuId ident.OnuId, profile phy.Profile, ploamPresent bool, d, t int) {
	b.OnuId = onuId
	b.Profile = profile
	b.PloamPresent = ploamPresent
	b.DataBlockSize = d
	b.FecBlockSize = t
	b.HeaderTrailerDataBytes = 0
	b.Allocs = b.Allocs[:0]
	b.OltTconts = b.OltTconts[:0]
	if b.allocIndex == nil {
		b.allocIndex = make(map[ident.AllocId]int)
	} else {
		for k := range b.allocIndex {
			delete(b.allocIndex, k)
		}
	}
}

// AddAlloc extends this burst with deltaBytes of additional payload for
// allocId, either appending a new BwAlloc record (first grant for
// allocId in this burst) or extending an existing one in place. It
// reports whether a new record was created, which the DBA tick loop uses
// to decide whether numScheduled should increment (see spec.md §4.2 step
// 3b and the Open Question decision in DESIGN.md).
func (b *BurstInfo) AddAlloc(allocId ident.AllocId, oltT *tcont.OltTcont, deltaBaseUnits uint16, flags model.BwAllocFlags, profileIdx uint8, deltaBytes units.Bytes) (created bool) {
	if idx, ok := b.allocIndex[allocId]; ok {
		b.Allocs[idx].GrantSize += deltaBaseUnits
		b.HeaderTrailerDataBytes += deltaBytes
		return false
	}
	startTime := uint16(model.NoStartTime)
	if len(b.Allocs) == 0 {
		// First alloc of the burst carries a real start time, assigned
		// later by produceBwmapFromBursts once cumulative offsets across
		// ONUs are known.
		startTime = 0
	}
	b.Allocs = append(b.Allocs, model.BwAlloc{
		AllocId:           allocId,
		StartTime:         startTime,
		GrantSize:         deltaBaseUnits,
		BurstProfileIndex: profileIdx,
		Flags:             flags,
	})
	b.OltTconts = append(b.OltTconts, oltT)
	b.allocIndex[allocId] = len(b.Allocs) - 1
	b.HeaderTrailerDataBytes += deltaBytes
	return true
}

// FinalBurstBytes computes the exact on-wire burst size per spec.md §4.2:
//
//	FEC off: G + gapPhyOverhead
//	FEC on, D data block bytes, T total block bytes:
//	  full = G div D; rem = G mod D
//	  G' = full*T + (rem==0 ? 0 : rem + (T-D))
//	  finalBurstBytes = G' + gapPhyOverhead
func (b *BurstInfo) FinalBurstBytes(unit units.GrantUnit) units.Bytes {
	g := b.HeaderTrailerDataBytes
	if b.PloamPresent {
		g += ploamLen
	}
	gap := b.Profile.GapPhyOverhead(unit)
	if !b.Profile.FEC {
		return g + gap
	}
	d := units.Bytes(b.DataBlockSize)
	tBlk := units.Bytes(b.FecBlockSize)
	full := uint64(g) / uint64(d)
	rem := units.Bytes(uint64(g) % uint64(d))
	expanded := units.Bytes(full)*tBlk
	if rem != 0 {
		expanded += rem + (tBlk - d)
	}
	return expanded + gap
}

// ploamLen is the fixed length a present PLOAM message adds to a burst's
// header/trailer data bytes. spec.md models PLOAM content only as a
// presence flag; 48 bytes matches the ITU-T PLOAMu message length.
const ploamLen units.Bytes = 48

// Pool is an explicit free-list of BurstInfo records keyed by OnuId,
// cleared every tick rather than reallocated. The simulation is
// single-threaded (spec.md §5), so a sync.Pool would add nondeterminism
// the reference scenarios do not call for; a plain map-backed free-list
// is sufficient and deterministic.
type Pool struct {
	byOnu map[ident.OnuId]*BurstInfo
	free  []*BurstInfo
}

// NewPool constructs an empty burst-info pool.
func NewPool() *Pool {
	return &Pool{byOnu: make(map[ident.OnuId]*BurstInfo)}
}

// ClearTick releases every in-use BurstInfo back to the free list,
// called at the start of each DBA tick (spec.md §4.2 step 1).
func (p *Pool) ClearTick() {
	for onu, b := range p.byOnu {
		p.free = append(p.free, b)
		delete(p.byOnu, onu)
	}
}

// Get returns the BurstInfo accumulator for onuId, creating (from the
// free list, or freshly if empty) and Reset-ing it if this is the first
// touch this tick.
func (p *Pool) Get(onuId ident.OnuId, profile phy.Profile, ploamPresent bool, d, t int) *BurstInfo {
	if b, ok := p.byOnu[onuId]; ok {
		return b
	}
	var b *BurstInfo
	if n := len(p.free); n > 0 {
		b, p.free = p.free[n-1], p.free[:n-1]
	} else {
		b = &BurstInfo{}
	}
	b.Reset(onuId, profile, ploamPresent, d, t)
	p.byOnu[onuId] = b
	return b
}

// Lookup returns the in-use BurstInfo for onuId without creating one.
func (p *Pool) Lookup(onuId ident.OnuId) (*BurstInfo, bool) {
	b, ok := p.byOnu[onuId]
	return b, ok
}

// OnusInUse returns the ONUs with an active accumulator this tick, in
// map iteration order; callers that need a stable order sort the result.
func (p *Pool) OnusInUse() []ident.OnuId {
	out := make([]ident.OnuId, 0, len(p.byOnu))
	for onu := range p.byOnu {
		out = append(out, onu)
	}
	return out
}
