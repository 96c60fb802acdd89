package telemetry

import (
	"context"
	"testing"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"

	"github.com/nanoncore/xgponsim/model"
	"github.com/nanoncore/xgponsim/stats"
)

func newTestServer(t *testing.T) (*Server, *stats.Collector) {
	t.Helper()
	c := stats.NewCollector()
	s, err := NewServer(c, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, c
}

func TestCapabilitiesAdvertisesOneModel(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.Capabilities(context.Background(), &gnmipb.CapabilityRequest{})
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if len(resp.SupportedModels) != 1 {
		t.Fatalf("expected exactly one supported model, got %d", len(resp.SupportedModels))
	}
}

func TestGetReturnsSnapshotAsUpdates(t *testing.T) {
	s, c := newTestServer(t)
	c.RecordUpstream(3, model.TcontBestEffort, 128)
	c.RecordDownstream(3, 64)

	resp, err := s.Get(context.Background(), &gnmipb.GetRequest{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(resp.Notification) != 1 {
		t.Fatalf("expected a single notification, got %d", len(resp.Notification))
	}
	if len(resp.Notification[0].Update) == 0 {
		t.Fatalf("expected at least one update after recording traffic")
	}
}

func TestGetOnEmptyCollectorHasNoUpdates(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.Get(context.Background(), &gnmipb.GetRequest{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(resp.Notification[0].Update) != 0 {
		t.Fatalf("expected no updates for an empty collector")
	}
}

func TestSetIsRejected(t *testing.T) {
	s, _ := newTestServer(t)
	if _, err := s.Set(context.Background(), &gnmipb.SetRequest{}); err == nil {
		t.Fatalf("expected Set to be rejected on a read-only target")
	}
}

func TestOnuPathEncodesOnuIdAsKey(t *testing.T) {
	p := onuPath(7, "upstream-bytes")
	if got := p.Elem[1].Key["onu-id"]; got != "7" {
		t.Fatalf("onu-id key = %q, want %q", got, "7")
	}
	if p.Elem[len(p.Elem)-1].Name != "upstream-bytes" {
		t.Fatalf("expected leaf element to be upstream-bytes")
	}
}
