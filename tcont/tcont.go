// Package tcont implements the OLT-side and ONU-side T-CONT records: the
// mirror pair described in spec.md §3-4.1. Grounded on the plain-struct +
// bounded-history style of model/subscriber.go, generalized with a small
// ring buffer for the >=1s service-history retention spec.md requires.
package tcont

import (
	"time"

	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/model"
)

// HistoryRetention is the minimum duration a BwAlloc/report history entry
// must be retained, per spec.md §3.
const HistoryRetention = time.Second

// historyEntry pairs a BwAlloc with its arrival/creation time for bounded
// retention on either side of the link.
type historyEntry struct {
	alloc model.BwAlloc
	at    time.Duration
}

// history is an append-and-trim ring over a slice; trimming drops entries
// older than HistoryRetention relative to the most recent Append call.
type history struct {
	entries []historyEntry
}

func (h *history) Append(a model.BwAlloc, now time.Duration) {
	h.entries = append(h.entries, historyEntry{alloc: a, at: now})
	h.trim(now)
}

func (h *history) trim(now time.Duration) {
	cut := 0
	for cut < len(h.entries) && now-h.entries[cut].at > HistoryRetention {
		cut++
	}
	if cut > 0 {
		h.entries = append(h.entries[:0], h.entries[cut:]...)
	}
}

// Recent returns a copy of the retained history entries, oldest first.
func (h *history) Recent() []model.BwAlloc {
	out := make([]model.BwAlloc, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.alloc
	}
	return out
}

// OltTcont is the OLT-side mirror of one T-CONT: QoS parameters, the
// latest status report, service history, and the derived counters the
// QoS-aware DBA policies maintain.
type OltTcont struct {
	AllocId ident.AllocId
	OnuId   ident.OnuId
	QoS     model.QoSBundle

	latestReport        model.StatusReport
	latestReportArrival time.Duration
	history             history

	// Deficit is the carried-forward unused grant opportunity for
	// deficit-round-robin-style policies.
	Deficit int64
	// LastServed is the simulated time of the last BwAlloc issued to this
	// T-CONT, used for the oldest-served-wins tie-break in §4.2.
	LastServed time.Duration
	// OutstandingGranted is bytes granted since the last status report
	// arrival that have not yet been confirmed consumed.
	OutstandingGranted uint64
}

// NewOltTcont constructs an OLT-side T-CONT record for allocId on onuId.
func NewOltTcont(allocId ident.AllocId, onuId ident.OnuId, qos model.QoSBundle) (*OltTcont, error) {
	if err := allocId.Validate(); err != nil {
		return nil, err
	}
	if err := onuId.Validate(); err != nil {
		return nil, err
	}
	if err := qos.Validate(); err != nil {
		return nil, err
	}
	return &OltTcont{AllocId: allocId, OnuId: onuId, QoS: qos}, nil
}

// ReceiveStatusReport stores a freshly arrived DBRu report and resets the
// outstanding-granted counter, since the report reflects everything issued
// before its arrival.
func (t *OltTcont) ReceiveStatusReport(report model.StatusReport, arrivalTime time.Duration) {
	t.latestReport = report
	t.latestReportArrival = arrivalTime
	t.OutstandingGranted = 0
}

// LatestReport returns the most recently received status report and its
// arrival time.
func (t *OltTcont) LatestReport() (model.StatusReport, time.Duration) {
	return t.latestReport, t.latestReportArrival
}

// RecordGrant notes that size bytes were just granted to this T-CONT at
// now, updating LastServed, OutstandingGranted, and the service history.
func (t *OltTcont) RecordGrant(alloc model.BwAlloc, sizeBytes uint64, now time.Duration) {
	t.LastServed = now
	t.OutstandingGranted += sizeBytes
	t.history.Append(alloc, now)
}

// ServiceHistory returns the retained (>=1s) recent BwAllocs for this
// T-CONT, oldest first.
func (t *OltTcont) ServiceHistory() []model.BwAlloc { return t.history.Recent() }

// CalculateRemainingDataToServe estimates bytes still queued that have not
// yet been covered by grants in flight, per spec.md §4.1:
//
//	max(0, latestReport - grantedBytesIssuedSinceReportArrival + likelyArrived)
//
// likelyArrived is 0 for the reference policy; QoS policies may pass a
// non-zero token-bucket estimate.
func (t *OltTcont) CalculateRemainingDataToServe(likelyArrived uint64) uint64 {
	reported := uint64(t.latestReport.BufferOccupancy)
	remaining := reported + likelyArrived
	if t.OutstandingGranted >= remaining {
		return 0
	}
	return remaining - t.OutstandingGranted
}

// Connection is one upstream sending connection under an ONU T-CONT: a
// FIFO of user SDUs addressed by an XGEM port.
type Connection struct {
	XgemPortId ident.XgemPortId
	queue      [][]byte
}

// Enqueue appends sdu to the connection's FIFO.
func (c *Connection) Enqueue(sdu []byte) { c.queue = append(c.queue, sdu) }

// Front returns the head-of-queue SDU without removing it, or nil if empty.
func (c *Connection) Front() []byte {
	if len(c.queue) == 0 {
		return nil
	}
	return c.queue[0]
}

// PopFront removes and returns the head-of-queue SDU.
func (c *Connection) PopFront() []byte {
	if len(c.queue) == 0 {
		return nil
	}
	sdu := c.queue[0]
	c.queue = c.queue[1:]
	return sdu
}

// ReplaceFront overwrites the head-of-queue SDU in place, used when a
// fragment is emitted and the remainder stays queued.
func (c *Connection) ReplaceFront(remainder []byte) {
	if len(c.queue) == 0 {
		c.queue = append(c.queue, remainder)
		return
	}
	c.queue[0] = remainder
}

func (c *Connection) Empty() bool { return len(c.queue) == 0 }

// OnuTcont is the ONU-side T-CONT: the per-allocation upstream FIFO and
// the connections that feed it.
type OnuTcont struct {
	AllocId     ident.AllocId
	OnuId       ident.OnuId
	Type        model.TcontType
	Connections []*Connection

	bytesQueued uint64
	history     history

	// rrCursor tracks the next connection index for round-robin draining.
	rrCursor int
}

// NewOnuTcont constructs an ONU-side T-CONT record.
func NewOnuTcont(allocId ident.AllocId, onuId ident.OnuId, tcontType model.TcontType) (*OnuTcont, error) {
	if err := allocId.Validate(); err != nil {
		return nil, err
	}
	if err := onuId.Validate(); err != nil {
		return nil, err
	}
	if !tcontType.Valid() {
		return nil, &invalidTcontTypeError{tcontType}
	}
	return &OnuTcont{AllocId: allocId, OnuId: onuId, Type: tcontType}, nil
}

type invalidTcontTypeError struct{ t model.TcontType }

func (e *invalidTcontTypeError) Error() string {
	return "tcont: invalid T-CONT type " + e.t.String()
}

// AddConnection attaches a new upstream sending connection to this T-CONT.
func (t *OnuTcont) AddConnection(port ident.XgemPortId) *Connection {
	c := &Connection{XgemPortId: port}
	t.Connections = append(t.Connections, c)
	return c
}

// Enqueue appends sdu to the given connection and updates the queued-byte
// counter.
func (t *OnuTcont) Enqueue(connIdx int, sdu []byte) {
	t.Connections[connIdx].Enqueue(sdu)
	t.bytesQueued += uint64(len(sdu))
}

// BytesQueued returns the total bytes queued across all connections under
// this T-CONT.
func (t *OnuTcont) BytesQueued() uint64 { return t.bytesQueued }

// accountDrain reduces the queued-byte counter by n, called whenever the
// burst producer consumes bytes from a connection under this T-CONT.
func (t *OnuTcont) accountDrain(n int) {
	if uint64(n) > t.bytesQueued {
		t.bytesQueued = 0
		return
	}
	t.bytesQueued -= uint64(n)
}

// AccountDrain is the exported form of accountDrain, used by the ONU
// upstream scheduler after it consumes bytes from a connection.
func (t *OnuTcont) AccountDrain(n int) { t.accountDrain(n) }

// PrepareBufOccupancyReport returns the current queued byte count, to be
// piggybacked as a DBRu. Per spec.md §4.1 it is called whenever the ONU
// assembles an upstream burst for this AllocId and the governing BwAlloc
// requested a report (or, by policy, whenever the burst carries >= 4 base
// units of payload).
func (t *OnuTcont) PrepareBufOccupancyReport() model.StatusReport {
	return model.NewStatusReport(t.bytesQueued)
}

// RecordBwAlloc stores an incoming BwAlloc in this T-CONT's bounded
// (>=1s) history, called by the ONU DBA consumer on BWmap receipt.
func (t *OnuTcont) RecordBwAlloc(a model.BwAlloc, now time.Duration) {
	t.history.Append(a, now)
}

// History returns the retained recent BwAllocs, oldest first.
func (t *OnuTcont) History() []model.BwAlloc { return t.history.Recent() }

// NextConnection returns the connection to drain next under round-robin
// across connections, exhausting each by FIFO order, and advances the
// cursor. It skips empty connections and returns nil if all are empty.
func (t *OnuTcont) NextConnection() *Connection {
	n := len(t.Connections)
	if n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		idx := (t.rrCursor + i) % n
		if !t.Connections[idx].Empty() {
			t.rrCursor = (idx + 1) % n
			return t.Connections[idx]
		}
	}
	return nil
}
