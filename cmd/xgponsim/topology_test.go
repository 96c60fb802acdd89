package main

import (
	"testing"
	"time"

	"github.com/nanoncore/xgponsim/config"
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/simclock"
)

func TestBuildTopologyRejectsZeroOnus(t *testing.T) {
	vc := simclock.NewVirtualClock()
	if _, err := BuildTopology(config.DefaultConfig(), 0, 100_000_000, 0, vc, nil); err == nil {
		t.Fatalf("expected an error for zero ONUs")
	}
}

func TestBuildTopologyRegistersEveryOnu(t *testing.T) {
	vc := simclock.NewVirtualClock()
	cfg := config.DefaultConfig()
	topo, err := BuildTopology(cfg, 3, 100_000_000, 0, vc, nil)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	if topo.OltMgr.Len() != 3 {
		t.Fatalf("expected 3 registered tconts, got %d", topo.OltMgr.Len())
	}
	if len(topo.Onus) != 3 {
		t.Fatalf("expected 3 onus, got %d", len(topo.Onus))
	}
}

func TestTopologyTickProducesABwmap(t *testing.T) {
	vc := simclock.NewVirtualClock()
	cfg := config.DefaultConfig()
	topo, err := BuildTopology(cfg, 2, 100_000_000, 0, vc, nil)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	frame := time.Duration(phy.FrameSlotNs)
	topo.Tick(vc.Now())
	vc.RunUntil(frame)
	if len(topo.LastBwmap.Allocs) == 0 {
		t.Fatalf("expected the first tick to grant at least one alloc across 2 onus")
	}
}
