// Package onu implements the ONU side of the upstream DBA loop: consuming
// an arriving BWmap, scheduling the transmit time for each grant it
// addresses to this ONU, and assembling the resulting upstream burst out
// of XGEM frames drawn from the ONU's T-CONT connections. Grounded on
// original_source/model/xgpon-onu-dba-engine.cc,
// xgpon-onu-us-scheduler.cc, and xgpon-onu-xgem-engine.cc.
package onu

import (
	"fmt"
	"time"

	"github.com/nanoncore/xgponsim/connmgr"
	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/invariant"
	"github.com/nanoncore/xgponsim/model"
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/simclock"
	"github.com/nanoncore/xgponsim/units"
	"github.com/nanoncore/xgponsim/xgtc"
)

// minReportingGrantBaseUnits is the grant size, in base units, at or above
// which a burst piggybacks a status report even when its governing
// BwAlloc did not set FlagDBRuRequest (spec.md §4.1's second clause):
// once a T-CONT is transmitting real data rather than being polled, it
// keeps the OLT's view of its queue fresh on every burst.
const minReportingGrantBaseUnits = 4

// Burst is the assembled upstream transmission for one AllocId: the XGEM
// frames it carries and, if the governing BwAlloc requested one or the
// grant is at least minReportingGrantBaseUnits, a fresh status report.
type Burst struct {
	OnuId   ident.OnuId
	AllocId ident.AllocId
	Frames  []xgtc.XgemFrame
	Report  *model.StatusReport
	SentAt  time.Duration
}

// BurstSentFunc is invoked once a burst has been assembled and its
// transmit time has arrived; the caller is responsible for delivering it
// to the OLT side after the fiber propagation delay it models.
type BurstSentFunc func(b Burst)

// Onu is the ONU-side DBA consumer and upstream burst producer for one
// ONU.
type Onu struct {
	Id                  ident.OnuId
	unit                units.GrantUnit
	linkRateBytesPerSec uint64
	equalizationDelay   time.Duration

	mgr   *connmgr.OnuManager
	clock simclock.Clock
	log   simclock.Logger

	onBurstSent BurstSentFunc
}

// NewOnu constructs the ONU-side DBA consumer for id, bound to mgr's
// T-CONT table. equalizationDelay is the ranging-derived compensation
// subtracted from the grant's nominal start time so every ONU's bursts
// arrive time-aligned at the OLT regardless of fiber length (spec.md
// §4.3).
func NewOnu(id ident.OnuId, mode phy.Mode, equalizationDelay time.Duration, mgr *connmgr.OnuManager, clock simclock.Clock, log simclock.Logger) (*Onu, error) {
	if mgr == nil {
		return nil, fmt.Errorf("onu: NewOnu requires a non-nil OnuManager")
	}
	if clock == nil {
		return nil, fmt.Errorf("onu: NewOnu requires a non-nil Clock")
	}
	if log == nil {
		log = simclock.NopLogger{}
	}
	params := phy.ParamsFor(mode)
	return &Onu{
		Id:                  id,
		unit:                mode.GrantUnit(),
		linkRateBytesPerSec: params.UsLinkRateBytesPerSec,
		equalizationDelay:   equalizationDelay,
		mgr:                 mgr,
		clock:               clock,
		log:                 log,
	}, nil
}

// OnBurstSent registers the callback invoked once a scheduled burst's
// transmit time arrives.
func (o *Onu) OnBurstSent(fn BurstSentFunc) { o.onBurstSent = fn }

// ProcessBwMap consumes an arriving BWmap: every BwAlloc addressed to a
// T-CONT this ONU owns updates that T-CONT's bounded history, and every
// record carrying a real StartTime schedules a burst transmission at its
// computed transmit time (spec.md §4.3). Records addressed to other ONUs,
// or carrying NoStartTime (accounting-only, a second AllocId folded into
// another ONU's burst), are not this ONU's concern and are skipped.
func (o *Onu) ProcessBwMap(bwmap model.BWmap, now time.Duration) {
	for _, a := range bwmap.Allocs {
		t, ok := o.mgr.Tcont(a.AllocId)
		if !ok {
			continue
		}
		t.RecordBwAlloc(a, now)
		if !a.HasStart() {
			continue
		}
		alloc := a
		txAt := o.txTimeFor(alloc.StartTime, now)
		delay := txAt - now
		if delay < 0 {
			delay = 0
		}
		o.clock.Schedule(delay, func() {
			o.produceAndTransmitUsBurst(alloc.AllocId, units.BaseUnits(alloc.GrantSize), alloc.Flags, txAt)
		})
	}
}

// txTimeFor converts a BwAlloc's StartTime (in base units from the start
// of the upstream frame) into an absolute simulated transmit time,
// subtracting the equalization delay so every ONU's first bit lands at
// the OLT at the same instant its StartTime nominally designates.
func (o *Onu) txTimeFor(startTimeBaseUnits uint16, frameStart time.Duration) time.Duration {
	offsetBytes := units.BaseUnits(startTimeBaseUnits).ToBytes(o.unit)
	offsetNs := float64(offsetBytes) / float64(o.linkRateBytesPerSec) * 1e9
	invariant.Check(offsetNs <= float64(phy.FrameSlotNs), "onu %d: computed tx offset %.0fns exceeds the %dns frame slot", uint16(o.Id), offsetNs, phy.FrameSlotNs)
	txAt := frameStart + time.Duration(offsetNs) - o.equalizationDelay
	if txAt < frameStart {
		txAt = frameStart
	}
	return txAt
}

// produceAndTransmitUsBurst assembles the upstream burst for allocId:
// draining queued SDUs round-robin across the T-CONT's connections,
// fragmenting an SDU that does not fit the remaining grant, padding
// leftover space of at least one XGEM header with an idle XGEM frame
// (a smaller remainder is left unpadded), and piggybacking a fresh status
// report when the governing BwAlloc requested one or the grant itself
// carries enough payload to warrant one (spec.md §4.1).
func (o *Onu) produceAndTransmitUsBurst(allocId ident.AllocId, grantSize units.BaseUnits, flags model.BwAllocFlags, now time.Duration) {
	t, ok := o.mgr.Tcont(allocId)
	if !ok {
		o.log.Warnf("onu %d: burst scheduled for unknown alloc id %d", uint16(o.Id), uint16(allocId))
		return
	}

	grantBytes := grantSize.ToBytes(o.unit)
	var frames []xgtc.XgemFrame
	used := units.Bytes(0)

	for used+xgtc.XgemHeaderLen <= grantBytes {
		remaining := grantBytes - used
		conn := t.NextConnection()
		if conn == nil {
			frames = append(frames, xgtc.NewIdleFrame(int(remaining)))
			used = grantBytes
			break
		}
		sdu := conn.Front()
		maxPayload := remaining - xgtc.XgemHeaderLen
		if units.Bytes(len(sdu)) <= maxPayload {
			conn.PopFront()
			t.AccountDrain(len(sdu))
			frames = append(frames, xgtc.XgemFrame{
				Header:  xgtc.XgemHeader{PLI: uint16(len(sdu)), PortID: conn.XgemPortId, LastFragment: true},
				Payload: sdu,
			})
			used += units.Bytes(len(sdu)) + xgtc.XgemHeaderLen
			continue
		}
		frag := sdu[:maxPayload]
		remainder := sdu[maxPayload:]
		conn.ReplaceFront(remainder)
		t.AccountDrain(len(frag))
		frames = append(frames, xgtc.XgemFrame{
			Header:  xgtc.XgemHeader{PLI: uint16(len(frag)), PortID: conn.XgemPortId, LastFragment: false},
			Payload: frag,
		})
		used += units.Bytes(len(frag)) + xgtc.XgemHeaderLen
		break // the grant is exhausted; remainder stays queued for its next grant
	}
	if used < grantBytes && grantBytes-used >= xgtc.XgemHeaderLen {
		frames = append(frames, xgtc.NewIdleFrame(int(grantBytes-used)))
	}

	var report *model.StatusReport
	if flags.Has(model.FlagDBRuRequest) || grantSize >= minReportingGrantBaseUnits {
		r := t.PrepareBufOccupancyReport()
		report = &r
	}

	burst := Burst{OnuId: o.Id, AllocId: allocId, Frames: frames, Report: report, SentAt: now}
	if o.onBurstSent != nil {
		o.onBurstSent(burst)
	}
}
