// Package olt implements the OLT-side upstream burst receiver:
// demultiplexing an arriving burst's XGEM frames by port, reassembling
// fragmented SDUs, and applying any piggybacked status report back onto
// the OLT's T-CONT mirror. ReceiveBurst identifies the burst by its
// AllocId only and does not consult the engine's served-BWmap queue;
// PopServedBwmap exposes that queue to callers. Grounded
// on original_source/model/xgpon-olt-conn-manager.cc and spec.md §4.5.
package olt

import (
	"fmt"
	"time"

	"github.com/nanoncore/xgponsim/connmgr"
	"github.com/nanoncore/xgponsim/dba"
	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/onu"
	"github.com/nanoncore/xgponsim/xgtc"
)

// ReassembledSduFunc is invoked once a complete SDU — possibly spanning
// more than one XGEM fragment — has arrived on a given port.
type ReassembledSduFunc func(onuId ident.OnuId, allocId ident.AllocId, port ident.XgemPortId, sdu []byte, arrivedAt time.Duration)

// partialKey identifies one in-flight reassembly stream: a port is only
// ever fragmented within a single ONU's bursts, never across ONUs.
type partialKey struct {
	onu  ident.OnuId
	port ident.XgemPortId
}

// Receiver is the OLT-side burst receiver bound to one OLT's T-CONT table
// and DBA engine.
type Receiver struct {
	mgr *connmgr.OltManager
	eng *dba.Engine

	onSdu ReassembledSduFunc

	partial map[partialKey][]byte
}

// NewReceiver constructs a burst receiver bound to mgr's T-CONT table and
// eng's served-BWmap queue.
func NewReceiver(mgr *connmgr.OltManager, eng *dba.Engine) (*Receiver, error) {
	if mgr == nil {
		return nil, fmt.Errorf("olt: NewReceiver requires a non-nil OltManager")
	}
	if eng == nil {
		return nil, fmt.Errorf("olt: NewReceiver requires a non-nil dba.Engine")
	}
	return &Receiver{mgr: mgr, eng: eng, partial: make(map[partialKey][]byte)}, nil
}

// OnReassembledSdu registers the callback invoked for every complete SDU
// this receiver reassembles.
func (r *Receiver) OnReassembledSdu(fn ReassembledSduFunc) { r.onSdu = fn }

// ReceiveBurst consumes one upstream burst arriving from the fiber: it
// applies any piggybacked status report to the OLT's T-CONT mirror, then
// reassembles every XGEM frame the burst carries.
func (r *Receiver) ReceiveBurst(b onu.Burst, arrivedAt time.Duration) error {
	t, ok := r.mgr.Tcont(b.AllocId)
	if !ok {
		return fmt.Errorf("olt: burst for unknown alloc id %d", uint16(b.AllocId))
	}
	if b.Report != nil {
		t.ReceiveStatusReport(*b.Report, arrivedAt)
	}
	for _, frame := range b.Frames {
		r.reassembleFrame(b.OnuId, b.AllocId, frame, arrivedAt)
	}
	return nil
}

// reassembleFrame folds one XGEM frame into its port's in-flight SDU,
// delivering it via onSdu once a frame marked LastFragment completes it.
// Idle frames (port IdleXgemPortId) are padding only and never reach
// reassembly.
func (r *Receiver) reassembleFrame(onuId ident.OnuId, allocId ident.AllocId, frame xgtc.XgemFrame, arrivedAt time.Duration) {
	if frame.Header.PortID == xgtc.IdleXgemPortId {
		return
	}
	key := partialKey{onu: onuId, port: frame.Header.PortID}
	buf := append(r.partial[key], frame.Payload...)
	if !frame.Header.LastFragment {
		r.partial[key] = buf
		return
	}
	delete(r.partial, key)
	if r.onSdu != nil {
		r.onSdu(onuId, allocId, frame.Header.PortID, buf, arrivedAt)
	}
}

// PendingFragments reports how many (ONU, port) pairs currently have a
// partially reassembled SDU in flight.
func (r *Receiver) PendingFragments() int { return len(r.partial) }

// PopServedBwmap dequeues the oldest BWmap the bound DBA engine has
// issued and not yet popped, the round-trip
// matching point spec.md §4.2's Design Notes describe.
func (r *Receiver) PopServedBwmap() (dba.ServedBwmap, bool) {
	return r.eng.PopServed()
}
