// Package connmgr indexes T-CONTs by AllocId and ONUs by OnuId on both the
// OLT and ONU side, grounded on factory.go's CapabilityMatrix map-indexing
// style, applied to identifier tables instead of vendor/protocol pairs.
package connmgr

import (
	"fmt"

	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/tcont"
)

// OltManager is the OLT net-device's exclusive owner of its OLT T-CONTs
// and known ONUs.
type OltManager struct {
	tconts map[ident.AllocId]*tcont.OltTcont
	onus   map[ident.OnuId]struct{}
	// order preserves insertion order, which the DBA engine's round-robin
	// cursor walks.
	order []ident.AllocId
}

// NewOltManager constructs an empty OLT connection manager.
func NewOltManager() *OltManager {
	return &OltManager{
		tconts: make(map[ident.AllocId]*tcont.OltTcont),
		onus:   make(map[ident.OnuId]struct{}),
	}
}

// AddOnu registers onuId as known to this OLT.
func (m *OltManager) AddOnu(onuId ident.OnuId) error {
	if err := onuId.Validate(); err != nil {
		return err
	}
	m.onus[onuId] = struct{}{}
	return nil
}

// KnowsOnu reports whether onuId has been registered.
func (m *OltManager) KnowsOnu(onuId ident.OnuId) bool {
	_, ok := m.onus[onuId]
	return ok
}

// AddTcont registers t, keyed by its AllocId. It is an error to register
// the same AllocId twice.
func (m *OltManager) AddTcont(t *tcont.OltTcont) error {
	if _, exists := m.tconts[t.AllocId]; exists {
		return fmt.Errorf("connmgr: alloc id %d already registered", uint16(t.AllocId))
	}
	m.tconts[t.AllocId] = t
	m.order = append(m.order, t.AllocId)
	return nil
}

// Tcont looks up the OLT T-CONT for allocId.
func (m *OltManager) Tcont(allocId ident.AllocId) (*tcont.OltTcont, bool) {
	t, ok := m.tconts[allocId]
	return t, ok
}

// Order returns the registration-order list of AllocIds, the sequence the
// DBA engine's round-robin cursor scans.
func (m *OltManager) Order() []ident.AllocId {
	out := make([]ident.AllocId, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of registered T-CONTs.
func (m *OltManager) Len() int { return len(m.order) }

// OnuManager is an ONU's exclusive owner of its own T-CONTs.
type OnuManager struct {
	OnuId  ident.OnuId
	tconts map[ident.AllocId]*tcont.OnuTcont
	order  []ident.AllocId
}

// NewOnuManager constructs an empty connection manager for the given ONU.
func NewOnuManager(onuId ident.OnuId) (*OnuManager, error) {
	if err := onuId.Validate(); err != nil {
		return nil, err
	}
	return &OnuManager{
		OnuId:  onuId,
		tconts: make(map[ident.AllocId]*tcont.OnuTcont),
	}, nil
}

// AddTcont registers t under this ONU, keyed by AllocId.
func (m *OnuManager) AddTcont(t *tcont.OnuTcont) error {
	if _, exists := m.tconts[t.AllocId]; exists {
		return fmt.Errorf("connmgr: alloc id %d already registered on onu %d", uint16(t.AllocId), uint16(m.OnuId))
	}
	m.tconts[t.AllocId] = t
	m.order = append(m.order, t.AllocId)
	return nil
}

// Tcont looks up the ONU T-CONT for allocId.
func (m *OnuManager) Tcont(allocId ident.AllocId) (*tcont.OnuTcont, bool) {
	t, ok := m.tconts[allocId]
	return t, ok
}

// Order returns the registration-order list of AllocIds owned by this ONU.
func (m *OnuManager) Order() []ident.AllocId {
	out := make([]ident.AllocId, len(m.order))
	copy(out, m.order)
	return out
}
