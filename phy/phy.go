// Package phy holds the PHY parameter table: per-mode rates, frame sizes,
// guard times, and burst profiles (preamble/delimiter lengths, FEC on/off),
// grounded on the named-constant-plus-lookup-table style of
// vendors/vsol/line_profile.go.
package phy

import (
	"github.com/nanoncore/xgponsim/units"
)

// Mode selects XG-PON or XG(S)-PON PHY parameters.
type Mode int

const (
	ModeXGPON Mode = iota
	ModeXGSPON
)

func (m Mode) Valid() bool { return m == ModeXGPON || m == ModeXGSPON }

func (m Mode) String() string {
	if m == ModeXGPON {
		return "xgpon"
	}
	return "xgspon"
}

// GrantUnit returns the base grant unit for this PON mode: 4 bytes for
// XG-PON, 16 bytes for XG(S)-PON.
func (m Mode) GrantUnit() units.GrantUnit {
	if m == ModeXGPON {
		return units.GrantUnitXGPON
	}
	return units.GrantUnitXGSPON
}

// FrameSlotNs is the fixed upstream frame slot duration (125 microseconds)
// shared by both PON flavors, expressed in nanoseconds.
const FrameSlotNs = 125_000

// Params bundles the per-mode PHY rates and frame sizing used by the DBA
// engine and the burst assembler.
type Params struct {
	Mode Mode
	// UsPhyFrameSize is the upstream PHY frame size in base grant units
	// (9720 for both modes at their respective unit size).
	UsPhyFrameSize uint32
	// UsLinkRateBytesPerSec is the upstream line rate in bytes/second.
	UsLinkRateBytesPerSec uint64
	// FecDataBlockSize (D) and FecTotalBlockSize (T) are the FEC block
	// data and total sizes in bytes; T > D when FEC is enabled.
	FecDataBlockSize  int
	FecTotalBlockSize int
}

// ParamsFor returns the PHY parameter table entry for mode.
func ParamsFor(mode Mode) Params {
	switch mode {
	case ModeXGPON:
		return Params{
			Mode:                  ModeXGPON,
			UsPhyFrameSize:        9720,
			UsLinkRateBytesPerSec: 2_488_320_000 / 8,
			FecDataBlockSize:      216,
			FecTotalBlockSize:     248,
		}
	default:
		return Params{
			Mode:                  ModeXGSPON,
			UsPhyFrameSize:        9720,
			UsLinkRateBytesPerSec: 9_953_280_000 / 8,
			FecDataBlockSize:      216,
			FecTotalBlockSize:     248,
		}
	}
}

// Profile describes one upstream burst profile: preamble and delimiter
// lengths, FEC on/off, and the guard time before the burst.
type Profile struct {
	Index        uint8
	PreambleLen  int // bytes
	DelimiterLen int // bytes
	FEC          bool
	GuardBlocks  units.BaseUnits
}

// DefaultProfile is the reference burst profile used when a topology does
// not specify its own.
func DefaultProfile(fec bool) Profile {
	return Profile{
		Index:        0,
		PreambleLen:  160,
		DelimiterLen: 8,
		FEC:          fec,
		GuardBlocks:  4,
	}
}

// GapPhyOverhead returns guardBlocks*baseGrant + preamble + delimiter, in
// bytes, per the §4.2 formula.
func (p Profile) GapPhyOverhead(unit units.GrantUnit) units.Bytes {
	return p.GuardBlocks.ToBytes(unit) + units.Bytes(p.PreambleLen) + units.Bytes(p.DelimiterLen)
}

// OverheadBaseUnits returns a conservative worst-case per-burst framing
// overhead in base grant units. The dba package does not call it; its
// maxServicePerOnu budget uses a fixed per-ONU overhead constant instead.
// Supplemented from
// original_source/model/xgpon-olt-dba-engine-round-robin.cc, which derives
// this from the profile table rather than a single global constant.
func (p Profile) OverheadBaseUnits(unit units.GrantUnit) units.BaseUnits {
	gap := p.GapPhyOverhead(unit)
	fecSlack := units.Bytes(0)
	if p.FEC {
		fecSlack = units.Bytes(32)
	}
	return units.CeilBytesToBaseUnits(gap+fecSlack, unit)
}
