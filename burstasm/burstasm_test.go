package burstasm

import (
	"testing"

	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/model"
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/units"
)

// TestFecExpansionTableDriven covers spec.md §8 property 7: for
// headerTrailerDataBytes=G with FEC on, the on-wire size equals the
// piecewise formula at G in {0, 1, D-1, D, D+1, k*D, k*D+r}.
func TestFecExpansionTableDriven(t *testing.T) {
	const d = 216
	const tBlk = 248
	profile := phy.Profile{FEC: true, PreambleLen: 0, DelimiterLen: 0, GuardBlocks: 0}

	cases := []struct {
		name string
		g    units.Bytes
		want units.Bytes
	}{
		{"zero", 0, 0},
		{"one", 1, 1 + (tBlk - d)},
		{"d-minus-1", d - 1, (d - 1) + (tBlk - d)},
		{"exactly d", d, tBlk},
		{"d-plus-1", d + 1, tBlk + 1 + (tBlk - d)},
		{"two full blocks", 2 * d, 2 * tBlk},
		{"two blocks plus remainder", 2*d + 68, 2*tBlk + 68 + (tBlk - d)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := &BurstInfo{}
			b.Reset(1, profile, false, d, tBlk)
			b.HeaderTrailerDataBytes = c.g
			got := b.FinalBurstBytes(units.GrantUnitXGPON)
			if got != c.want {
				t.Fatalf("FinalBurstBytes(G=%d) = %d, want %d", c.g, got, c.want)
			}
		})
	}
}

// TestS6FecBlockRounding reproduces spec.md seed scenario S6 verbatim.
func TestS6FecBlockRounding(t *testing.T) {
	profile := phy.DefaultProfile(true)
	b := &BurstInfo{}
	b.Reset(0, profile, false, 216, 248)
	b.HeaderTrailerDataBytes = 500

	unit := units.GrantUnitXGPON
	gap := profile.GapPhyOverhead(unit)
	want := units.Bytes(596) + gap
	got := b.FinalBurstBytes(unit)
	if got != want {
		t.Fatalf("FinalBurstBytes = %d, want %d (596 + gap=%d)", got, want, gap)
	}
}

func TestAddAllocCreatesThenExtends(t *testing.T) {
	p := NewPool()
	profile := phy.DefaultProfile(false)
	b := p.Get(1, profile, false, 216, 248)

	created := b.AddAlloc(10, nil, 5, model.FlagDBRuRequest, 0, 20)
	if !created {
		t.Fatalf("expected first AddAlloc to create a new record")
	}
	created = b.AddAlloc(10, nil, 3, 0, 0, 12)
	if created {
		t.Fatalf("expected second AddAlloc for the same AllocId to extend in place")
	}
	if len(b.Allocs) != 1 {
		t.Fatalf("expected exactly 1 BwAlloc record, got %d", len(b.Allocs))
	}
	if b.Allocs[0].GrantSize != 8 {
		t.Fatalf("GrantSize = %d, want 8", b.Allocs[0].GrantSize)
	}
	if b.HeaderTrailerDataBytes != 32 {
		t.Fatalf("HeaderTrailerDataBytes = %d, want 32", b.HeaderTrailerDataBytes)
	}
}

func TestPoolClearTickReleasesRecords(t *testing.T) {
	p := NewPool()
	profile := phy.DefaultProfile(false)
	b1 := p.Get(ident.OnuId(1), profile, false, 216, 248)
	b1.AddAlloc(1, nil, 4, 0, 0, 16)

	p.ClearTick()
	if _, ok := p.Lookup(1); ok {
		t.Fatalf("expected ClearTick to release onu 1's accumulator")
	}
	// Reacquiring should reuse the freed record (reset to zero state).
	b2 := p.Get(ident.OnuId(2), profile, false, 216, 248)
	if len(b2.Allocs) != 0 || b2.HeaderTrailerDataBytes != 0 {
		t.Fatalf("expected a freshly reset record, got %+v", b2)
	}
}
