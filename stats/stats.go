// Package stats is the trace/statistics surface spec.md §6 calls out:
// per-ONU upstream byte counters, broken down by T-CONT type, plus a
// downstream byte counter, exposed as a custom prometheus.Collector.
// Grounded on the TCPInfoCollector shape in
// runZeroInc-sockstats/pkg/exporter/exporter.go: a mutex-guarded map,
// pre-built *prometheus.Desc values, Describe/Collect implementing
// prometheus.Collector directly rather than registering individual
// metric objects per ONU.
package stats

import (
	"sort"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/model"
)

var tcontTypeNames = map[model.TcontType]string{
	model.TcontFixed:      "t1",
	model.TcontAssured:    "t2",
	model.TcontNonAssured: "t3",
	model.TcontBestEffort: "t4",
	model.TcontMixed:      "mixed",
}

type onuCounters struct {
	usBytes   uint64
	usByType  map[model.TcontType]uint64
	dsBytes   uint64
}

// Collector is a prometheus.Collector over the per-ONU upstream/downstream
// byte counters this simulation accumulates. It holds no registry
// reference of its own; callers register it with a prometheus.Registerer
// (directly, or via the ambient default registry).
type Collector struct {
	mu   sync.Mutex
	onus map[ident.OnuId]*onuCounters

	usOltBytesDesc   *prometheus.Desc
	usTypeOltDesc    *prometheus.Desc
	dsOnuBytesDesc   *prometheus.Desc
}

// NewCollector constructs an empty stats Collector.
func NewCollector() *Collector {
	return &Collector{
		onus: make(map[ident.OnuId]*onuCounters),
		usOltBytesDesc: prometheus.NewDesc(
			"xgponsim_us_olt_bytes_total",
			"Total upstream payload bytes received at the OLT from one ONU.",
			[]string{"onu_id"}, nil,
		),
		usTypeOltDesc: prometheus.NewDesc(
			"xgponsim_us_olt_tcont_bytes_total",
			"Upstream payload bytes received at the OLT from one ONU, broken down by T-CONT type.",
			[]string{"onu_id", "tcont_type"}, nil,
		),
		dsOnuBytesDesc: prometheus.NewDesc(
			"xgponsim_ds_onu_bytes_total",
			"Total downstream payload bytes delivered to one ONU.",
			[]string{"onu_id"}, nil,
		),
	}
}

// OnuSnapshot is a point-in-time copy of one ONU's accumulated counters,
// used by the telemetry package to build gNMI notifications without
// reaching into Collector's internals.
type OnuSnapshot struct {
	Onu             ident.OnuId
	UpstreamBytes   uint64
	UpstreamByType  map[model.TcontType]uint64
	DownstreamBytes uint64
}

// Snapshot returns a copy of every tracked ONU's current counters, sorted
// by ONU id for deterministic output.
func (c *Collector) Snapshot() []OnuSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]OnuSnapshot, 0, len(c.onus))
	for onu, e := range c.onus {
		byType := make(map[model.TcontType]uint64, len(e.usByType))
		for tt, n := range e.usByType {
			byType[tt] = n
		}
		out = append(out, OnuSnapshot{
			Onu:             onu,
			UpstreamBytes:   e.usBytes,
			UpstreamByType:  byType,
			DownstreamBytes: e.dsBytes,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Onu < out[j].Onu })
	return out
}

func (c *Collector) entry(onu ident.OnuId) *onuCounters {
	e, ok := c.onus[onu]
	if !ok {
		e = &onuCounters{usByType: make(map[model.TcontType]uint64)}
		c.onus[onu] = e
	}
	return e
}

// RecordUpstream accounts n payload bytes received at the OLT from onu
// under a T-CONT of the given type.
func (c *Collector) RecordUpstream(onu ident.OnuId, tcontType model.TcontType, n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(onu)
	e.usBytes += uint64(n)
	e.usByType[tcontType] += uint64(n)
}

// RecordDownstream accounts n payload bytes delivered downstream to onu.
func (c *Collector) RecordDownstream(onu ident.OnuId, n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(onu).dsBytes += uint64(n)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usOltBytesDesc
	ch <- c.usTypeOltDesc
	ch <- c.dsOnuBytesDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for onu, e := range c.onus {
		label := onuLabel(onu)
		ch <- prometheus.MustNewConstMetric(c.usOltBytesDesc, prometheus.CounterValue, float64(e.usBytes), label)
		ch <- prometheus.MustNewConstMetric(c.dsOnuBytesDesc, prometheus.CounterValue, float64(e.dsBytes), label)
		for tt, n := range e.usByType {
			ch <- prometheus.MustNewConstMetric(c.usTypeOltDesc, prometheus.CounterValue, float64(n), label, tcontTypeLabel(tt))
		}
	}
}

func onuLabel(onu ident.OnuId) string {
	return strconv.FormatUint(uint64(onu), 10)
}

func tcontTypeLabel(tt model.TcontType) string {
	if name, ok := tcontTypeNames[tt]; ok {
		return name
	}
	return tt.String()
}
