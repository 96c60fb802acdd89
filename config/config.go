// Package config holds the process-wide configuration set once before any
// topology is constructed (spec.md §6), validated eagerly the way
// factory.go's CapabilityMatrix/NewDriver validate vendor/protocol pairs
// before a driver is ever dialed.
package config

import (
	"fmt"

	"github.com/nanoncore/xgponsim/phy"
)

// DbaEngineType selects which DBA policy the OLT engine runs.
type DbaEngineType string

const (
	DbaRoundRobin    DbaEngineType = "round-robin"
	DbaGiant         DbaEngineType = "giant"
	DbaEbu           DbaEngineType = "ebu"
	DbaXgiant        DbaEngineType = "xgiant"
	DbaXgiantDeficit DbaEngineType = "xgiant-deficit"
	DbaXgiantProp    DbaEngineType = "xgiant-prop"
)

// engineCapabilities lists every DBA engine type this build supports, the
// same role factory.go's CapabilityMatrix plays for vendor/protocol pairs.
var engineCapabilities = map[DbaEngineType]bool{
	DbaRoundRobin:    true,
	DbaGiant:         true,
	DbaEbu:           true,
	DbaXgiant:        true,
	DbaXgiantDeficit: true,
	DbaXgiantProp:    true,
}

// SupportedDbaEngines returns the set of DBA engine type strings this
// build can construct.
func SupportedDbaEngines() []DbaEngineType {
	out := make([]DbaEngineType, 0, len(engineCapabilities))
	for k := range engineCapabilities {
		out = append(out, k)
	}
	return out
}

// Config is the process-wide, set-before-construction configuration
// bundle from spec.md §6.
type Config struct {
	PonMode       phy.Mode
	OltDbaEngine  DbaEngineType

	// FramesPerDBAcycle is the number of per-frame BWmaps a DBA cycle
	// spans; spec.md default is 4.
	FramesPerDBAcycle int

	// ProfileFec selects FEC for the single burst profile used when a
	// topology does not register its own per-ONU profile.
	// ProfilePreambleLen and ProfileDelimiterLen are validated but not
	// applied; that default profile uses phy.DefaultProfile's fixed
	// preamble and delimiter lengths.
	ProfilePreambleLen  int
	ProfileDelimiterLen int
	ProfileFec          bool

	// AllocateIdsForSpeed, when true, lets AllocId/XgemPortId assignment
	// favor allocation speed over deterministic numbering (spec.md §6);
	// the reference driver always assigns deterministically regardless,
	// since nothing in this module's scope needs the faster path.
	AllocateIdsForSpeed bool
}

// DefaultConfig returns the reference configuration: XG(S)-PON, the
// round-robin DBA policy, a 4-frame DBA cycle.
func DefaultConfig() Config {
	return Config{
		PonMode:             phy.ModeXGSPON,
		OltDbaEngine:        DbaRoundRobin,
		FramesPerDBAcycle:   4,
		ProfilePreambleLen:  160,
		ProfileDelimiterLen: 8,
		ProfileFec:          true,
	}
}

// Validate checks the configuration eagerly, before any topology object
// touches it, mirroring every teacher driver's NewDriver precondition
// checks.
func (c Config) Validate() error {
	if !c.PonMode.Valid() {
		return fmt.Errorf("config: invalid PON mode %d", int(c.PonMode))
	}
	if !engineCapabilities[c.OltDbaEngine] {
		return fmt.Errorf("config: unsupported DBA engine type %q (supported: %v)", c.OltDbaEngine, SupportedDbaEngines())
	}
	if c.FramesPerDBAcycle < 1 {
		return fmt.Errorf("config: FramesPerDBAcycle must be >= 1, got %d", c.FramesPerDBAcycle)
	}
	if c.ProfilePreambleLen < 0 || c.ProfileDelimiterLen < 0 {
		return fmt.Errorf("config: profile preamble/delimiter lengths must be >= 0")
	}
	return nil
}
