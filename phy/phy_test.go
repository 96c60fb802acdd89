package phy

import (
	"testing"

	"github.com/nanoncore/xgponsim/units"
)

func TestGrantUnit(t *testing.T) {
	if ModeXGPON.GrantUnit() != units.GrantUnitXGPON {
		t.Fatalf("XG-PON grant unit mismatch")
	}
	if ModeXGSPON.GrantUnit() != units.GrantUnitXGSPON {
		t.Fatalf("XG(S)-PON grant unit mismatch")
	}
}

func TestGapPhyOverhead(t *testing.T) {
	p := DefaultProfile(false)
	got := p.GapPhyOverhead(units.GrantUnitXGPON)
	want := units.Bytes(4*4 + 160 + 8)
	if got != want {
		t.Fatalf("GapPhyOverhead = %d, want %d", got, want)
	}
}

func TestParamsForBothModes(t *testing.T) {
	for _, m := range []Mode{ModeXGPON, ModeXGSPON} {
		p := ParamsFor(m)
		if p.UsPhyFrameSize != 9720 {
			t.Errorf("%s: UsPhyFrameSize = %d, want 9720", m, p.UsPhyFrameSize)
		}
		if p.FecDataBlockSize != 216 || p.FecTotalBlockSize != 248 {
			t.Errorf("%s: FEC block sizes = (%d,%d), want (216,248)", m, p.FecDataBlockSize, p.FecTotalBlockSize)
		}
	}
}
