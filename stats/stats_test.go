package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/nanoncore/xgponsim/model"
)

func collectAll(t *testing.T, c *Collector) []*dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)
	var out []*dto.Metric
	for m := range ch {
		var pm dto.Metric
		if err := m.Write(&pm); err != nil {
			t.Fatalf("Write: %v", err)
		}
		out = append(out, &pm)
	}
	return out
}

func TestCollectorAccumulatesUpstreamBytes(t *testing.T) {
	c := NewCollector()
	c.RecordUpstream(1, model.TcontBestEffort, 100)
	c.RecordUpstream(1, model.TcontBestEffort, 50)
	c.RecordUpstream(2, model.TcontFixed, 10)

	metrics := collectAll(t, c)
	if len(metrics) == 0 {
		t.Fatalf("expected at least one metric after recording upstream bytes")
	}

	var total float64
	for _, m := range metrics {
		if m.Counter != nil {
			total += m.Counter.GetValue()
		}
	}
	if total <= 0 {
		t.Fatalf("expected a positive total counter value, got %v", total)
	}
}

func TestCollectorIgnoresNonPositiveDeltas(t *testing.T) {
	c := NewCollector()
	c.RecordUpstream(1, model.TcontBestEffort, 0)
	c.RecordUpstream(1, model.TcontBestEffort, -5)
	if len(c.onus) != 0 {
		t.Fatalf("expected no ONU entry to be created for a non-positive delta")
	}
}

func TestDescribeEmitsThreeDescriptors(t *testing.T) {
	c := NewCollector()
	ch := make(chan *prometheus.Desc, 8)
	c.Describe(ch)
	close(ch)
	n := 0
	for range ch {
		n++
	}
	if n != 3 {
		t.Fatalf("Describe emitted %d descriptors, want 3", n)
	}
}
