package pod

import (
	"fmt"
	"strings"
)

// Module identifies a subsystem that publishes a ModuleStatus.
type Module int

const (
	ModuleNavigation Module = iota
	ModuleSensors
	ModulePropulsion
	ModuleBrakes
	ModuleTelemetry
)

// NumModules is the number of modules.
const NumModules = 5

// AllModules lists every module in a fixed order. Iteration over modules
// anywhere in the controller uses this order.
var AllModules = []Module{
	ModuleNavigation,
	ModuleSensors,
	ModulePropulsion,
	ModuleBrakes,
	ModuleTelemetry,
}

var moduleNames = map[Module]string{
	ModuleNavigation: "navigation",
	ModuleSensors:    "sensors",
	ModulePropulsion: "propulsion",
	ModuleBrakes:     "brakes",
	ModuleTelemetry:  "telemetry",
}

// String returns the lowercase name of the module.
func (m Module) String() string {
	if name, ok := moduleNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseModule converts a module name into a Module.
func ParseModule(s string) (Module, error) {
	for m, name := range moduleNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown module %q", s)
}

// Domain returns the store domain the module publishes into.
func (m Module) Domain() Domain {
	return Domain(m) + DomainNavigation
}

// ModuleSet is a bitmask of modules.
type ModuleSet uint8

// AllModuleSet contains every module.
var AllModuleSet = NewModuleSet(AllModules...)

// NewModuleSet returns a set holding the given modules.
func NewModuleSet(modules ...Module) ModuleSet {
	var s ModuleSet
	for _, m := range modules {
		s = s.Add(m)
	}
	return s
}

// ParseModuleSet parses a list of module names.
func ParseModuleSet(names []string) (ModuleSet, error) {
	var s ModuleSet
	for _, name := range names {
		m, err := ParseModule(name)
		if err != nil {
			return 0, err
		}
		s = s.Add(m)
	}
	return s, nil
}

// Add returns s with m included.
func (s ModuleSet) Add(m Module) ModuleSet { return s | 1<<uint(m) }

// Remove returns s with m excluded.
func (s ModuleSet) Remove(m Module) ModuleSet { return s &^ (1 << uint(m)) }

// Has reports whether m is in s.
func (s ModuleSet) Has(m Module) bool { return s&(1<<uint(m)) != 0 }

// Empty reports whether s holds no modules.
func (s ModuleSet) Empty() bool { return s == 0 }

// Union returns the modules in either set.
func (s ModuleSet) Union(o ModuleSet) ModuleSet { return s | o }

// Subtract returns the modules in s that are not in o.
func (s ModuleSet) Subtract(o ModuleSet) ModuleSet { return s &^ o }

// SubsetOf reports whether every module in s is also in o.
func (s ModuleSet) SubsetOf(o ModuleSet) bool { return s&^o == 0 }

// Modules returns the members of s in AllModules order.
func (s ModuleSet) Modules() []Module {
	var out []Module
	for _, m := range AllModules {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// Names returns the member names of s in AllModules order.
func (s ModuleSet) Names() []string {
	mods := s.Modules()
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.String()
	}
	return names
}

// String renders the set as a comma-separated list, or "none".
func (s ModuleSet) String() string {
	if s.Empty() {
		return "none"
	}
	return strings.Join(s.Names(), ",")
}

// Domain identifies one slot of the shared data store.
type Domain int

const (
	DomainStateMachine Domain = iota
	DomainNavigation
	DomainSensors
	DomainPropulsion
	DomainBrakes
	DomainTelemetry
)

// AllDomains lists every store domain.
var AllDomains = []Domain{
	DomainStateMachine,
	DomainNavigation,
	DomainSensors,
	DomainPropulsion,
	DomainBrakes,
	DomainTelemetry,
}

// String returns the lowercase name of the domain.
func (d Domain) String() string {
	if d == DomainStateMachine {
		return "state_machine"
	}
	if m, ok := d.Module(); ok {
		return m.String()
	}
	return "unknown"
}

// Module returns the module that owns the domain. The state machine domain
// has no module.
func (d Domain) Module() (Module, bool) {
	if d < DomainNavigation || d > DomainTelemetry {
		return 0, false
	}
	return Module(d - DomainNavigation), true
}

// MarshalText renders the set as its comma-separated names.
func (s ModuleSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
