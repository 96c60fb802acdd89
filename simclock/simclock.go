// Package simclock provides the explicit scheduling context Design Notes
// §9 calls for in place of a process-wide singleton: a Clock interface
// with two implementations, a deterministic VirtualClock for tests and
// scenario runs, and a RealClock for cmd/xgponsim's live operation.
// Grounded on the ticker/deadline-queue event loop in
// other_examples/netem.LinkFwdFull, generalized from a fixed-rate ticker
// into an explicit event heap so advancing time does not require sleeping
// in wall-clock time.
package simclock

import (
	"container/heap"
	"time"
)

// Logger is the minimal diagnostics interface injected into the engine
// and scheduler, modeled on netem.LinkFwdConfig.Logger.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// NopLogger discards everything; the default when no Logger is supplied.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Warnf(string, ...any)  {}

// CancelFunc cancels a previously scheduled callback. Calling it after the
// callback has already fired is a no-op.
type CancelFunc func()

// Clock is the scheduling abstraction every component depends on instead
// of a global timer. Operations never block; "wait" means "schedule a
// callback at time t" (spec.md §5).
type Clock interface {
	// Now returns the current simulated time.
	Now() time.Duration
	// Schedule arranges for cb to run at Now()+delay and returns a
	// CancelFunc. Events scheduled for the same time fire in the order
	// they were scheduled (spec.md §5 ordering guarantee).
	Schedule(delay time.Duration, cb func()) CancelFunc
}

// event is one entry in the VirtualClock's pending-event heap.
type event struct {
	at       time.Duration
	seq      uint64
	cb       func()
	canceled bool
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)        { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// VirtualClock is a deterministic, single-goroutine discrete-event clock:
// advancing time pops and runs due events in (time, insertion-order)
// order rather than sleeping. This is the reference implementation scenario
// tests S1-S6 run against; it is not a claim to be "the" simulator kernel
// spec.md treats as an external collaborator, only a minimal, testable
// stand-in for it.
type VirtualClock struct {
	now     time.Duration
	pending eventHeap
	nextSeq uint64
}

// NewVirtualClock constructs a VirtualClock starting at time 0.
func NewVirtualClock() *VirtualClock {
	vc := &VirtualClock{}
	heap.Init(&vc.pending)
	return vc
}

func (vc *VirtualClock) Now() time.Duration { return vc.now }

func (vc *VirtualClock) Schedule(delay time.Duration, cb func()) CancelFunc {
	if delay < 0 {
		delay = 0
	}
	ev := &event{at: vc.now + delay, seq: vc.nextSeq, cb: cb}
	vc.nextSeq++
	heap.Push(&vc.pending, ev)
	return func() { ev.canceled = true }
}

// RunUntil advances the clock, firing every due event, until no event
// remains at or before deadline. Now() is left at deadline (or the last
// fired event's time, whichever is later) once it returns.
func (vc *VirtualClock) RunUntil(deadline time.Duration) {
	for vc.pending.Len() > 0 && vc.pending[0].at <= deadline {
		ev := heap.Pop(&vc.pending).(*event)
		if ev.canceled {
			continue
		}
		vc.now = ev.at
		ev.cb()
	}
	if vc.now < deadline {
		vc.now = deadline
	}
}

// Step advances to and fires exactly the next pending event, regardless
// of how far away it is, returning false if there is nothing pending.
func (vc *VirtualClock) Step() bool {
	for vc.pending.Len() > 0 {
		ev := heap.Pop(&vc.pending).(*event)
		if ev.canceled {
			continue
		}
		vc.now = ev.at
		ev.cb()
		return true
	}
	return false
}

// Pending reports how many events are still queued (including canceled
// ones awaiting their pop).
func (vc *VirtualClock) Pending() int { return vc.pending.Len() }

// RealClock wraps time.AfterFunc for cmd/xgponsim's live, wall-clock run.
type RealClock struct {
	start time.Time
}

// NewRealClock constructs a RealClock whose zero time is the moment of
// construction.
func NewRealClock() *RealClock {
	return &RealClock{start: time.Now()}
}

func (rc *RealClock) Now() time.Duration { return time.Since(rc.start) }

func (rc *RealClock) Schedule(delay time.Duration, cb func()) CancelFunc {
	t := time.AfterFunc(delay, cb)
	return func() { t.Stop() }
}
