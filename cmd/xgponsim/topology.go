// Topology construction for a live xgponsim run: one OLT DBA engine and
// receiver, paired with N ONUs, wired the way cmd/xgponsim's composition
// root is expected to per spec.md §6's external interfaces. Grounded on
// factory.go's CapabilityMatrix-driven construction, applied to building a
// PON topology instead of picking a vendor driver.
package main

import (
	"fmt"
	"time"

	"github.com/nanoncore/xgponsim/config"
	"github.com/nanoncore/xgponsim/connmgr"
	"github.com/nanoncore/xgponsim/dba"
	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/model"
	"github.com/nanoncore/xgponsim/onu"
	"github.com/nanoncore/xgponsim/olt"
	"github.com/nanoncore/xgponsim/phy"
	"github.com/nanoncore/xgponsim/simclock"
	"github.com/nanoncore/xgponsim/stats"
	"github.com/nanoncore/xgponsim/tcont"
	"github.com/nanoncore/xgponsim/xgtc"
)

// Topology bundles every component one live simulator run needs: the
// OLT-side engine and receiver, the ONU set, and the stats surface the
// telemetry and console front ends read from.
type Topology struct {
	Cfg       config.Config
	OltMgr    *connmgr.OltManager
	Engine    *dba.Engine
	Receiver  *olt.Receiver
	Onus      map[ident.OnuId]*onu.Onu
	Collector *stats.Collector

	LastBwmap model.BWmap
}

// BuildTopology constructs numOnus ONUs, each carrying one best-effort
// T-CONT and one XGEM connection, registered against a single OLT DBA
// engine running cfg.OltDbaEngine.
func BuildTopology(cfg config.Config, numOnus int, bestEffortBitsPerSec uint64, equalizationDelay time.Duration, clock simclock.Clock, log simclock.Logger) (*Topology, error) {
	if numOnus < 1 {
		return nil, fmt.Errorf("xgponsim: need at least one ONU, got %d", numOnus)
	}
	if log == nil {
		log = simclock.NopLogger{}
	}

	oltMgr := connmgr.NewOltManager()
	policy, err := dba.NewPolicy(cfg.OltDbaEngine)
	if err != nil {
		return nil, err
	}
	eng, err := dba.NewEngine(cfg, oltMgr, policy, log)
	if err != nil {
		return nil, err
	}
	receiver, err := olt.NewReceiver(oltMgr, eng)
	if err != nil {
		return nil, err
	}
	collector := stats.NewCollector()
	profile := phy.DefaultProfile(cfg.ProfileFec)

	topo := &Topology{
		Cfg:       cfg,
		OltMgr:    oltMgr,
		Engine:    eng,
		Receiver:  receiver,
		Onus:      make(map[ident.OnuId]*onu.Onu, numOnus),
		Collector: collector,
	}

	receiver.OnReassembledSdu(func(onuId ident.OnuId, allocId ident.AllocId, port ident.XgemPortId, sdu []byte, arrivedAt time.Duration) {
		log.Debugf("xgponsim: delivered %d-byte sdu from onu %d alloc %d port %d", len(sdu), uint16(onuId), uint16(allocId), uint16(port))
	})

	for i := 1; i <= numOnus; i++ {
		onuId := ident.OnuId(i)
		allocId := ident.AllocId(i)

		if err := oltMgr.AddOnu(onuId); err != nil {
			return nil, err
		}
		qos := model.QoSBundle{Type: model.TcontBestEffort, BestEffortBw: bestEffortBitsPerSec, MaxServiceInterval: 1}
		oltT, err := tcont.NewOltTcont(allocId, onuId, qos)
		if err != nil {
			return nil, err
		}
		if err := oltMgr.AddTcont(oltT); err != nil {
			return nil, err
		}
		eng.RegisterOnuLink(onuId, dba.OnuLink{Profile: profile})

		onuMgr, err := connmgr.NewOnuManager(onuId)
		if err != nil {
			return nil, err
		}
		onuT, err := tcont.NewOnuTcont(allocId, onuId, model.TcontBestEffort)
		if err != nil {
			return nil, err
		}
		if err := onuMgr.AddTcont(onuT); err != nil {
			return nil, err
		}
		onuT.AddConnection(1)

		o, err := onu.NewOnu(onuId, cfg.PonMode, equalizationDelay, onuMgr, clock, log)
		if err != nil {
			return nil, err
		}
		o.OnBurstSent(func(b onu.Burst) {
			if err := receiver.ReceiveBurst(b, clock.Now()); err != nil {
				log.Warnf("xgponsim: ReceiveBurst: %v", err)
				return
			}
			for _, f := range b.Frames {
				if f.Header.PortID == xgtc.IdleXgemPortId {
					continue
				}
				collector.RecordUpstream(b.OnuId, model.TcontBestEffort, len(f.Payload))
			}
		})
		topo.Onus[onuId] = o
	}

	return topo, nil
}

// Tick runs one upstream frame: the engine issues a BWmap and every ONU
// processes it, scheduling whatever bursts its own grants authorize.
func (t *Topology) Tick(now time.Duration) {
	bwmap := t.Engine.GenerateBwMap(now)
	t.LastBwmap = bwmap
	for _, o := range t.Onus {
		o.ProcessBwMap(bwmap, now)
	}
}
