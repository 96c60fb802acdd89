// Package model defines the wire-adjacent value types shared by the OLT
// and ONU sides of the simulation: T-CONT types, the QoS parameter bundle,
// status reports, bandwidth allocation records, and BWmaps. These are
// plain structs with Validate() methods, the same shape as
// model/subscriber.go and model/servicetier.go in the teacher repo, aimed
// at the XGTC domain instead of subscriber provisioning.
package model

import (
	"fmt"
	"time"

	"github.com/nanoncore/xgponsim/ident"
)

// TcontType enumerates the five T-CONT service types.
type TcontType int

const (
	TcontFixed       TcontType = 1
	TcontAssured     TcontType = 2
	TcontNonAssured  TcontType = 3
	TcontBestEffort  TcontType = 4
	TcontMixed       TcontType = 5
)

func (t TcontType) Valid() bool { return t >= TcontFixed && t <= TcontMixed }

func (t TcontType) String() string {
	switch t {
	case TcontFixed:
		return "fixed"
	case TcontAssured:
		return "assured"
	case TcontNonAssured:
		return "non-assured"
	case TcontBestEffort:
		return "best-effort"
	case TcontMixed:
		return "mixed"
	default:
		return fmt.Sprintf("tcont-type(%d)", int(t))
	}
}

// QoSBundle is the per-OLT-side-T-CONT QoS parameter set.
type QoSBundle struct {
	FixedBw       uint64 // bits/s
	AssuredBw     uint64 // bits/s
	NonAssuredBw  uint64 // bits/s
	BestEffortBw  uint64 // bits/s
	MaxServiceInterval uint16 // frame units, >= 1
	MinServiceInterval uint16 // frame units, conventionally 2*MaxServiceInterval
	Type          TcontType
}

// Validate enforces the invariants in spec.md §3: for type-2, fixed=0 and
// assured>0; for type-4, only best-effort>0; MaxSI >= 1.
func (q QoSBundle) Validate() error {
	if !q.Type.Valid() {
		return fmt.Errorf("model: invalid tcont type %d", int(q.Type))
	}
	if q.MaxServiceInterval < 1 {
		return fmt.Errorf("model: MaxServiceInterval must be >= 1")
	}
	switch q.Type {
	case TcontAssured:
		if q.FixedBw != 0 {
			return fmt.Errorf("model: type-2 (assured) T-CONT must have fixed bandwidth 0")
		}
		if q.AssuredBw == 0 {
			return fmt.Errorf("model: type-2 (assured) T-CONT must have assured bandwidth > 0")
		}
	case TcontBestEffort:
		if q.FixedBw != 0 || q.AssuredBw != 0 || q.NonAssuredBw != 0 {
			return fmt.Errorf("model: type-4 (best-effort) T-CONT must only carry best-effort bandwidth")
		}
		if q.BestEffortBw == 0 {
			return fmt.Errorf("model: type-4 (best-effort) T-CONT must have best-effort bandwidth > 0")
		}
	}
	return nil
}

// StatusReport (DBRu) carries the reported buffer occupancy, capped at
// 0xFFFFFFFF, with the arrival time implicit in the caller's bookkeeping.
type StatusReport struct {
	BufferOccupancy uint32
}

const MaxBufferOccupancy uint32 = 0xFFFFFFFF

// NewStatusReport clamps occupancy to MaxBufferOccupancy.
func NewStatusReport(occupancyBytes uint64) StatusReport {
	if occupancyBytes > uint64(MaxBufferOccupancy) {
		return StatusReport{BufferOccupancy: MaxBufferOccupancy}
	}
	return StatusReport{BufferOccupancy: uint32(occupancyBytes)}
}

// BwAllocFlags packs the three single-bit flags a BwAlloc carries.
type BwAllocFlags uint8

const (
	FlagDBRuRequest BwAllocFlags = 1 << iota
	FlagPLOAMu
	FlagForceWake
)

func (f BwAllocFlags) Has(bit BwAllocFlags) bool { return f&bit != 0 }

// NoStartTime is the sentinel StartTime value meaning "no burst start,
// accounting only".
const NoStartTime uint16 = 0xFFFF

// BwAlloc is a single bandwidth allocation record within a BWmap.
type BwAlloc struct {
	AllocId           ident.AllocId
	StartTime         uint16 // 0xFFFF == NoStartTime
	GrantSize         uint16 // base grant units
	BurstProfileIndex uint8  // 2 bits
	Flags             BwAllocFlags
}

// HasStart reports whether this record carries a real burst start time.
func (b BwAlloc) HasStart() bool { return b.StartTime != NoStartTime }

// BWmap is the downstream message granting a set of AllocIds permission to
// transmit upstream, with per-grant start time and size.
type BWmap struct {
	CreationTime time.Duration
	Allocs       []BwAlloc
}

// TotalGrantSize sums GrantSize over all records, in base grant units.
func (m BWmap) TotalGrantSize() uint64 {
	var total uint64
	for _, a := range m.Allocs {
		total += uint64(a.GrantSize)
	}
	return total
}
