package dba

import (
	"fmt"

	"github.com/nanoncore/xgponsim/config"
)

// policyRegistry maps each supported config.DbaEngineType to its Policy
// constructor, the same role factory.go's CapabilityMatrix plays for
// vendor/protocol driver pairs.
var policyRegistry = map[config.DbaEngineType]func() Policy{
	config.DbaRoundRobin:    func() Policy { return NewRoundRobin() },
	config.DbaGiant:         func() Policy { return NewGiant() },
	config.DbaXgiant:        func() Policy { return NewXgiant() },
	config.DbaEbu:           func() Policy { return NewEbu() },
	config.DbaXgiantDeficit: func() Policy { return NewDeficitRR() },
	config.DbaXgiantProp:    func() Policy { return NewProportional() },
}

// NewPolicy constructs the Policy implementation for engineType.
func NewPolicy(engineType config.DbaEngineType) (Policy, error) {
	ctor, ok := policyRegistry[engineType]
	if !ok {
		return nil, fmt.Errorf("dba: no policy registered for engine type %q", engineType)
	}
	return ctor(), nil
}
