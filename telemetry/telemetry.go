// Package telemetry exposes the simulation's stats.Collector surface as a
// gNMI Subscribe target: the OLT accepts Capabilities/Get/Subscribe calls
// from an external collector the way a real OLT's management plane would.
// Grounded on drivers/gnmi/driver.go's path and TypedValue plumbing, with
// the client/subscriber role inverted into a server/target: this package
// answers the RPCs driver.go's Driver issues, rather than issuing them.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/model"
	"github.com/nanoncore/xgponsim/simclock"
	"github.com/nanoncore/xgponsim/stats"
)

// DefaultSampleInterval is used for STREAM/SAMPLE subscriptions that omit
// SampleInterval, mirroring driver.go's SubscribeToTelemetry default path.
const DefaultSampleInterval = time.Second

// modelName is advertised in CapabilityResponse; the simulation exposes a
// single internal model rather than standard OpenConfig YANG modules.
const modelName = "xgponsim-stats"

// Server implements gnmipb.GNMIServer, backed by a stats.Collector. It is
// read-only: Set always fails, since the simulation's counters are derived
// state, not configuration.
type Server struct {
	gnmipb.UnimplementedGNMIServer

	collector *stats.Collector
	log       simclock.Logger
}

// NewServer constructs a gNMI target serving collector's counters.
func NewServer(collector *stats.Collector, log simclock.Logger) (*Server, error) {
	if collector == nil {
		return nil, fmt.Errorf("telemetry: NewServer requires a non-nil stats.Collector")
	}
	if log == nil {
		log = simclock.NopLogger{}
	}
	return &Server{collector: collector, log: log}, nil
}

// Capabilities implements gnmipb.GNMIServer.
func (s *Server) Capabilities(context.Context, *gnmipb.CapabilityRequest) (*gnmipb.CapabilityResponse, error) {
	return &gnmipb.CapabilityResponse{
		SupportedModels: []*gnmipb.ModelData{
			{Name: modelName, Organization: "xgponsim", Version: "1.0.0"},
		},
		SupportedEncodings: []gnmipb.Encoding{gnmipb.Encoding_JSON_IETF},
		GNMIVersion:        "0.10.0",
	}, nil
}

// Get implements gnmipb.GNMIServer: it returns the full current snapshot
// regardless of the requested paths, since the simulation's stats tree is
// small enough that per-path filtering buys nothing over shipping it whole.
func (s *Server) Get(ctx context.Context, req *gnmipb.GetRequest) (*gnmipb.GetResponse, error) {
	notif := s.buildNotification()
	return &gnmipb.GetResponse{Notification: []*gnmipb.Notification{notif}}, nil
}

// Set implements gnmipb.GNMIServer. The simulation's counters are derived,
// not configurable, so every Set is rejected.
func (s *Server) Set(context.Context, *gnmipb.SetRequest) (*gnmipb.SetResponse, error) {
	return nil, status.Error(codes.Unimplemented, "telemetry: target is read-only")
}

// Subscribe implements gnmipb.GNMIServer for ONCE, POLL and STREAM/SAMPLE
// subscription lists. ON_CHANGE is treated as SAMPLE at DefaultSampleInterval,
// since the counters this target serves have no natural change-event hook.
func (s *Server) Subscribe(stream gnmipb.GNMI_SubscribeServer) error {
	req, err := stream.Recv()
	if err != nil {
		return err
	}
	list := req.GetSubscribe()
	if list == nil {
		return status.Error(codes.InvalidArgument, "telemetry: first SubscribeRequest must carry a SubscriptionList")
	}

	switch list.Mode {
	case gnmipb.SubscriptionList_ONCE:
		return s.sendOnce(stream)
	case gnmipb.SubscriptionList_POLL:
		return s.servePoll(stream)
	default:
		return s.serveStream(stream, sampleInterval(list))
	}
}

func sampleInterval(list *gnmipb.SubscriptionList) time.Duration {
	for _, sub := range list.Subscription {
		if sub.SampleInterval > 0 {
			return time.Duration(sub.SampleInterval)
		}
	}
	return DefaultSampleInterval
}

func (s *Server) sendOnce(stream gnmipb.GNMI_SubscribeServer) error {
	if err := stream.Send(&gnmipb.SubscribeResponse{Response: &gnmipb.SubscribeResponse_Update{Update: s.buildNotification()}}); err != nil {
		return err
	}
	return stream.Send(&gnmipb.SubscribeResponse{Response: &gnmipb.SubscribeResponse_SyncResponse{SyncResponse: true}})
}

func (s *Server) servePoll(stream gnmipb.GNMI_SubscribeServer) error {
	if err := s.sendOnce(stream); err != nil {
		return err
	}
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if req.GetPoll() == nil {
			return status.Error(codes.InvalidArgument, "telemetry: expected a Poll request")
		}
		if err := s.sendOnce(stream); err != nil {
			return err
		}
	}
}

func (s *Server) serveStream(stream gnmipb.GNMI_SubscribeServer, interval time.Duration) error {
	if err := stream.Send(&gnmipb.SubscribeResponse{Response: &gnmipb.SubscribeResponse_Update{Update: s.buildNotification()}}); err != nil {
		return err
	}
	if err := stream.Send(&gnmipb.SubscribeResponse{Response: &gnmipb.SubscribeResponse_SyncResponse{SyncResponse: true}}); err != nil {
		return err
	}

	ctx := stream.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := stream.Send(&gnmipb.SubscribeResponse{Response: &gnmipb.SubscribeResponse_Update{Update: s.buildNotification()}}); err != nil {
				s.log.Warnf("telemetry: send failed: %v", err)
				return err
			}
		}
	}
}

// buildNotification snapshots the collector and renders it as a single
// gNMI Notification, one Update per counter.
func (s *Server) buildNotification() *gnmipb.Notification {
	snap := s.collector.Snapshot()
	notif := &gnmipb.Notification{Timestamp: 0}

	for _, onu := range snap {
		notif.Update = append(notif.Update, &gnmipb.Update{
			Path: onuPath(onu.Onu, "upstream-bytes"),
			Val:  uintValue(onu.UpstreamBytes),
		})
		notif.Update = append(notif.Update, &gnmipb.Update{
			Path: onuPath(onu.Onu, "downstream-bytes"),
			Val:  uintValue(onu.DownstreamBytes),
		})
		for tt, n := range onu.UpstreamByType {
			notif.Update = append(notif.Update, &gnmipb.Update{
				Path: onuTypePath(onu.Onu, tt),
				Val:  uintValue(n),
			})
		}
	}
	return notif
}

// onuPath builds /xgponsim/onu[onu-id=<id>]/state/<leaf>.
func onuPath(onu ident.OnuId, leaf string) *gnmipb.Path {
	return &gnmipb.Path{Elem: []*gnmipb.PathElem{
		{Name: "xgponsim"},
		{Name: "onu", Key: map[string]string{"onu-id": strconv.FormatUint(uint64(onu), 10)}},
		{Name: "state"},
		{Name: leaf},
	}}
}

// onuTypePath builds /xgponsim/onu[onu-id=<id>]/state/upstream-bytes-by-tcont[type=<t>].
func onuTypePath(onu ident.OnuId, tt model.TcontType) *gnmipb.Path {
	return &gnmipb.Path{Elem: []*gnmipb.PathElem{
		{Name: "xgponsim"},
		{Name: "onu", Key: map[string]string{"onu-id": strconv.FormatUint(uint64(onu), 10)}},
		{Name: "state"},
		{Name: "upstream-bytes-by-tcont", Key: map[string]string{"type": tt.String()}},
	}}
}

func uintValue(n uint64) *gnmipb.TypedValue {
	return &gnmipb.TypedValue{Value: &gnmipb.TypedValue_UintVal{UintVal: n}}
}
