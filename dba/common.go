package dba

import (
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/tcont"
	"github.com/nanoncore/xgponsim/units"
)

// MinGrantBaseUnits is the floor grant size a T-CONT with outstanding
// demand receives; see DESIGN.md's Open Question decision on grant-size
// units. It is never 0: a T-CONT that should be served at all gets at
// least this much.
const MinGrantBaseUnits units.BaseUnits = 4

// PollGrantBaseUnits is the grant handed to a T-CONT with nothing reported
// queued, just large enough to carry a fresh DBRu status report.
const PollGrantBaseUnits units.BaseUnits = 1

// overheadPerOnuBaseUnits is the reference per-ONU framing overhead
// subtracted from the fair-share ceiling in maxServicePerOnu, per spec.md
// §4.2.
const overheadPerOnuBaseUnits units.BaseUnits = 188

// maxServicePerOnu computes the per-tick ceiling a single T-CONT may be
// granted within its DBA cycle:
//
//	(framesPerCycle * frameSize) / nTconts - overheadPerOnu
func maxServicePerOnu(framesPerCycle int, frameSize units.BaseUnits, nTconts int) units.BaseUnits {
	if nTconts <= 0 {
		return 0
	}
	share := units.BaseUnits(uint64(framesPerCycle) * uint64(frameSize) / uint64(nTconts))
	if share <= overheadPerOnuBaseUnits {
		return MinGrantBaseUnits
	}
	return share - overheadPerOnuBaseUnits
}

// olderServedWins implements the within-tick tie-break of spec.md §4.2:
// among same-priority candidates, the one served longest ago wins; equal
// timestamps favor the lower AllocId.
func olderServedWins(a, b *tcont.OltTcont) bool {
	if a.LastServed != b.LastServed {
		return a.LastServed < b.LastServed
	}
	return a.AllocId < b.AllocId
}

// wantedGrant converts a T-CONT's outstanding demand (in bytes) into a
// clamped grant size in base units, the reference sizing formula every
// policy in this package shares: request one more byte than reported (to
// absorb in-flight arrivals), round up to a whole base unit, and clamp to
// [MinGrantBaseUnits, ceiling]. A T-CONT with nothing reported queued gets
// a single polling unit instead.
func wantedGrant(remainingBytes uint64, unit units.GrantUnit, ceiling units.BaseUnits) units.BaseUnits {
	if remainingBytes == 0 {
		return PollGrantBaseUnits
	}
	want := units.CeilBytesToBaseUnits(units.Bytes(remainingBytes)+1, unit)
	if want > ceiling {
		want = ceiling
	}
	if want < MinGrantBaseUnits {
		want = MinGrantBaseUnits
	}
	return want
}

// guaranteedBaseUnits converts a bits/second QoS commitment into the
// number of base units it is owed over one DBA cycle, used by the QoS-aware
// policies to compute a guaranteed floor under the reported-demand grant.
func guaranteedBaseUnits(bitsPerSec uint64, framesPerCycle int, unit units.GrantUnit) units.BaseUnits {
	if bitsPerSec == 0 {
		return 0
	}
	cycleNs := uint64(framesPerCycle) * uint64(phy.FrameSlotNs)
	bytes := units.Bytes((bitsPerSec/8)*cycleNs/1_000_000_000 + 1)
	return units.CeilBytesToBaseUnits(bytes, unit)
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
