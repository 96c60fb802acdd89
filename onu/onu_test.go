package onu

import (
	"testing"
	"time"

	"github.com/nanoncore/xgponsim/connmgr"
	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/model"
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/simclock"
	"github.com/nanoncore/xgponsim/tcont"
	"github.com/nanoncore/xgponsim/units"
)

func newTestOnu(t *testing.T) (*Onu, *connmgr.OnuManager, *simclock.VirtualClock) {
	t.Helper()
	mgr, err := connmgr.NewOnuManager(1)
	if err != nil {
		t.Fatalf("NewOnuManager: %v", err)
	}
	vc := simclock.NewVirtualClock()
	o, err := NewOnu(1, phy.ModeXGSPON, 0, mgr, vc, nil)
	if err != nil {
		t.Fatalf("NewOnu: %v", err)
	}
	return o, mgr, vc
}

func newOnuTcont(t *testing.T, allocId uint16) *tcont.OnuTcont {
	t.Helper()
	ot, err := tcont.NewOnuTcont(ident.AllocId(allocId), 1, model.TcontBestEffort)
	if err != nil {
		t.Fatalf("NewOnuTcont: %v", err)
	}
	return ot
}

func TestProcessBwMapSchedulesAndTransmits(t *testing.T) {
	o, mgr, vc := newTestOnu(t)
	onuT := newOnuTcont(t, 5)
	if err := mgr.AddTcont(onuT); err != nil {
		t.Fatalf("AddTcont: %v", err)
	}
	onuT.AddConnection(7)
	payload := []byte("hello upstream")
	onuT.Enqueue(0, payload)

	var got []Burst
	o.OnBurstSent(func(b Burst) { got = append(got, b) })

	bwmap := model.BWmap{Allocs: []model.BwAlloc{
		{AllocId: 5, StartTime: 0, GrantSize: 8, Flags: model.FlagDBRuRequest},
	}}
	o.ProcessBwMap(bwmap, 0)
	vc.RunUntil(1000 * time.Microsecond)

	if len(got) != 1 {
		t.Fatalf("expected exactly one burst, got %d", len(got))
	}
	b := got[0]
	if len(b.Frames) == 0 {
		t.Fatalf("expected at least one XGEM frame")
	}
	if string(b.Frames[0].Payload) != string(payload) {
		t.Fatalf("frame payload = %q, want %q", b.Frames[0].Payload, payload)
	}
	if b.Report == nil {
		t.Fatalf("expected a status report since FlagDBRuRequest was set")
	}
	if onuT.BytesQueued() != 0 {
		t.Fatalf("expected the connection to be fully drained, BytesQueued = %d", onuT.BytesQueued())
	}
}

func TestProcessBwMapIgnoresForeignAllocId(t *testing.T) {
	o, _, vc := newTestOnu(t)
	var got []Burst
	o.OnBurstSent(func(b Burst) { got = append(got, b) })

	bwmap := model.BWmap{Allocs: []model.BwAlloc{
		{AllocId: 99, StartTime: 0, GrantSize: 8},
	}}
	o.ProcessBwMap(bwmap, 0)
	vc.RunUntil(1000 * time.Microsecond)
	if len(got) != 0 {
		t.Fatalf("expected no burst for an alloc id this ONU does not own")
	}
}

func TestProcessBwMapSkipsAccountingOnlyRecords(t *testing.T) {
	o, mgr, vc := newTestOnu(t)
	onuT := newOnuTcont(t, 5)
	mgr.AddTcont(onuT)

	var got []Burst
	o.OnBurstSent(func(b Burst) { got = append(got, b) })

	bwmap := model.BWmap{Allocs: []model.BwAlloc{
		{AllocId: 5, StartTime: model.NoStartTime, GrantSize: 8},
	}}
	o.ProcessBwMap(bwmap, 0)
	vc.RunUntil(1000 * time.Microsecond)
	if len(got) != 0 {
		t.Fatalf("expected no scheduled burst for an accounting-only (NoStartTime) record")
	}
	if len(onuT.History()) != 1 {
		t.Fatalf("expected the record to still be appended to history")
	}
}

func TestBurstFragmentsOversizedSdu(t *testing.T) {
	o, mgr, vc := newTestOnu(t)
	onuT := newOnuTcont(t, 5)
	mgr.AddTcont(onuT)
	onuT.AddConnection(3)
	big := make([]byte, 200)
	for i := range big {
		big[i] = byte(i)
	}
	onuT.Enqueue(0, big)

	var got []Burst
	o.OnBurstSent(func(b Burst) { got = append(got, b) })

	// GrantSize of 4 base units (16 bytes/unit = 64 bytes) cannot hold the
	// 200-byte SDU plus an 8-byte XGEM header, forcing a fragment.
	bwmap := model.BWmap{Allocs: []model.BwAlloc{
		{AllocId: 5, StartTime: 0, GrantSize: uint16(units.BaseUnits(4))},
	}}
	o.ProcessBwMap(bwmap, 0)
	vc.RunUntil(1000 * time.Microsecond)

	if len(got) != 1 || len(got[0].Frames) == 0 {
		t.Fatalf("expected one burst with at least one frame")
	}
	if got[0].Frames[0].Header.LastFragment {
		t.Fatalf("expected the first frame of an oversized SDU to not be the last fragment")
	}
	if onuT.BytesQueued() == 0 {
		t.Fatalf("expected a remainder still queued after a single fragmenting grant")
	}
}
