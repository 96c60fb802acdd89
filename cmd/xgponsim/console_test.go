package main

import (
	"strings"
	"testing"

	"github.com/nanoncore/xgponsim/config"
	"github.com/nanoncore/xgponsim/simclock"
)

func TestShowTcontsListsRegisteredAllocs(t *testing.T) {
	vc := simclock.NewVirtualClock()
	topo, err := BuildTopology(config.DefaultConfig(), 2, 100_000_000, 0, vc, nil)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	c, err := NewConsole("127.0.0.1:0", topo, nil)
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	out := c.runCommand("show tconts")
	if !strings.Contains(out, "alloc=1") || !strings.Contains(out, "alloc=2") {
		t.Fatalf("expected both allocs listed, got: %s", out)
	}
}

func TestShowBwmapBeforeAnyTick(t *testing.T) {
	vc := simclock.NewVirtualClock()
	topo, err := BuildTopology(config.DefaultConfig(), 1, 100_000_000, 0, vc, nil)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	c, err := NewConsole("127.0.0.1:0", topo, nil)
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	if out := c.runCommand("show bwmap"); !strings.Contains(out, "no bwmap") {
		t.Fatalf("expected a no-bwmap placeholder, got: %s", out)
	}
}

func TestRunCommandRejectsUnknown(t *testing.T) {
	vc := simclock.NewVirtualClock()
	topo, err := BuildTopology(config.DefaultConfig(), 1, 100_000_000, 0, vc, nil)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	c, err := NewConsole("127.0.0.1:0", topo, nil)
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	if out := c.runCommand("reboot"); !strings.Contains(out, "unknown command") {
		t.Fatalf("expected unknown command message, got: %s", out)
	}
}
