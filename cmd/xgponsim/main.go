// Command xgponsim runs a live XG-PON/XG(S)-PON upstream MAC simulation:
// one OLT DBA engine driving N ONUs over simclock.RealClock, an SSH
// operator console, and a gNMI telemetry target. Thin composition root,
// grounded on factory.go's role as the teacher's single construction
// entry point.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"google.golang.org/grpc"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"

	"github.com/nanoncore/xgponsim/config"
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/simclock"
	"github.com/nanoncore/xgponsim/telemetry"
)

// stdLogger adapts the standard library logger to simclock.Logger.
type stdLogger struct{}

func (stdLogger) Debugf(format string, args ...any) { log.Printf("DEBUG "+format, args...) }
func (stdLogger) Warnf(format string, args ...any)  { log.Printf("WARN "+format, args...) }

func main() {
	ponMode := flag.String("pon-mode", "xgspon", "PON mode: xgpon or xgspon")
	dbaEngine := flag.String("dba-engine", string(config.DbaRoundRobin), "DBA policy: "+joinEngines())
	numOnus := flag.Int("onus", 4, "number of ONUs to simulate")
	duration := flag.Duration("duration", 10*time.Second, "simulated run duration")
	consoleAddr := flag.String("console-addr", "127.0.0.1:2022", "SSH console bind address")
	telemetryAddr := flag.String("telemetry-addr", "127.0.0.1:9339", "gNMI telemetry bind address")
	bestEffortBw := flag.Uint64("best-effort-bw", 100_000_000, "per-ONU best-effort bandwidth floor, bits/s")
	flag.Parse()

	cfg := config.DefaultConfig()
	switch *ponMode {
	case "xgpon":
		cfg.PonMode = phy.ModeXGPON
	case "xgspon":
		cfg.PonMode = phy.ModeXGSPON
	default:
		fmt.Fprintf(os.Stderr, "xgponsim: unknown -pon-mode %q\n", *ponMode)
		os.Exit(2)
	}
	cfg.OltDbaEngine = config.DbaEngineType(*dbaEngine)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "xgponsim: invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := stdLogger{}
	clock := simclock.NewRealClock()

	topo, err := BuildTopology(cfg, *numOnus, *bestEffortBw, 0, clock, logger)
	if err != nil {
		log.Fatalf("xgponsim: building topology: %v", err)
	}

	console, err := NewConsole(*consoleAddr, topo, logger)
	if err != nil {
		log.Fatalf("xgponsim: building console: %v", err)
	}
	go func() {
		if err := console.ListenAndServe(); err != nil {
			log.Printf("xgponsim: console stopped: %v", err)
		}
	}()

	telemetrySrv, err := telemetry.NewServer(topo.Collector, logger)
	if err != nil {
		log.Fatalf("xgponsim: building telemetry server: %v", err)
	}
	grpcServer := grpc.NewServer()
	gnmipb.RegisterGNMIServer(grpcServer, telemetrySrv)
	lis, err := net.Listen("tcp", *telemetryAddr)
	if err != nil {
		log.Fatalf("xgponsim: telemetry listen on %s: %v", *telemetryAddr, err)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("xgponsim: telemetry server stopped: %v", err)
		}
	}()

	log.Printf("xgponsim: running %d onus, pon-mode=%s dba-engine=%s console=%s telemetry=%s",
		*numOnus, cfg.PonMode, cfg.OltDbaEngine, *consoleAddr, *telemetryAddr)

	runUntil := *duration
	frame := time.Duration(phy.FrameSlotNs)
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	deadline := time.After(runUntil)
	for {
		select {
		case <-deadline:
			grpcServer.GracefulStop()
			return
		case <-ticker.C:
			topo.Tick(clock.Now())
		}
	}
}

func joinEngines() string {
	engines := config.SupportedDbaEngines()
	s := ""
	for i, e := range engines {
		if i > 0 {
			s += ", "
		}
		s += string(e)
	}
	return s
}
