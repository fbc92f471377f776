package data

import (
	"sync/atomic"

	"github.com/roach88/podctl/internal/pod"
)

// Store is the process-wide repository of domain snapshots.
//
// Thread-safety model:
//   - Getters: safe from any goroutine, return copies
//   - Claim methods: safe from any goroutine, succeed once per domain
//   - Writer.Set: one goroutine per domain (the claimant)
//
// The store lives for the whole process. Construct it once at startup and
// hand the pointer to every loop.
type Store struct {
	seq atomic.Int64

	stateMachine *slot[pod.StateMachineData]
	navigation   *slot[pod.NavigationData]
	sensors      *slot[pod.SensorsData]
	propulsion   *slot[pod.PropulsionData]
	brakes       *slot[pod.BrakesData]
	telemetry    *slot[pod.TelemetryData]
}

// NewStore creates a store with every domain at its default snapshot.
func NewStore() *Store {
	s := &Store{}
	s.stateMachine = newSlot[pod.StateMachineData](&s.seq)
	s.navigation = newSlot[pod.NavigationData](&s.seq)
	s.sensors = newSlot[pod.SensorsData](&s.seq)
	s.propulsion = newSlot[pod.PropulsionData](&s.seq)
	s.brakes = newSlot[pod.BrakesData](&s.seq)
	s.telemetry = newSlot[pod.TelemetryData](&s.seq)
	return s
}

// Seq returns the sequence number of the most recent publish on any domain.
func (s *Store) Seq() int64 {
	return s.seq.Load()
}

func (s *Store) StateMachine() pod.StateMachineData { return s.stateMachine.get().Value }
func (s *Store) Navigation() pod.NavigationData     { return s.navigation.get().Value }
func (s *Store) Sensors() pod.SensorsData           { return s.sensors.get().Value }
func (s *Store) Propulsion() pod.PropulsionData     { return s.propulsion.get().Value }
func (s *Store) Brakes() pod.BrakesData             { return s.brakes.get().Value }
func (s *Store) Telemetry() pod.TelemetryData       { return s.telemetry.get().Value }

// StateMachineVersioned returns the state machine snapshot with its seq.
func (s *Store) StateMachineVersioned() Versioned[pod.StateMachineData] {
	return s.stateMachine.get()
}

// NavigationVersioned returns the navigation snapshot with its seq.
func (s *Store) NavigationVersioned() Versioned[pod.NavigationData] {
	return s.navigation.get()
}

// ModuleStatus returns the status field of a module's snapshot.
// The engine reads statuses through this method and never looks at domain
// readings other than navigation.
func (s *Store) ModuleStatus(m pod.Module) pod.ModuleStatus {
	switch m {
	case pod.ModuleNavigation:
		return s.Navigation().Status()
	case pod.ModuleSensors:
		return s.Sensors().Status()
	case pod.ModulePropulsion:
		return s.Propulsion().Status()
	case pod.ModuleBrakes:
		return s.Brakes().Status()
	case pod.ModuleTelemetry:
		return s.Telemetry().Status()
	default:
		return pod.StatusStart
	}
}

// ClaimStateMachine returns the writer for the state machine domain.
func (s *Store) ClaimStateMachine(owner string) (*Writer[pod.StateMachineData], error) {
	return claim(s.stateMachine, pod.DomainStateMachine, owner)
}

// ClaimNavigation returns the writer for the navigation domain.
func (s *Store) ClaimNavigation(owner string) (*Writer[pod.NavigationData], error) {
	return claim(s.navigation, pod.DomainNavigation, owner)
}

// ClaimSensors returns the writer for the sensors domain.
func (s *Store) ClaimSensors(owner string) (*Writer[pod.SensorsData], error) {
	return claim(s.sensors, pod.DomainSensors, owner)
}

// ClaimPropulsion returns the writer for the propulsion domain.
func (s *Store) ClaimPropulsion(owner string) (*Writer[pod.PropulsionData], error) {
	return claim(s.propulsion, pod.DomainPropulsion, owner)
}

// ClaimBrakes returns the writer for the brakes domain.
func (s *Store) ClaimBrakes(owner string) (*Writer[pod.BrakesData], error) {
	return claim(s.brakes, pod.DomainBrakes, owner)
}

// ClaimTelemetry returns the writer for the telemetry domain.
func (s *Store) ClaimTelemetry(owner string) (*Writer[pod.TelemetryData], error) {
	return claim(s.telemetry, pod.DomainTelemetry, owner)
}

// Owners reports the claimant of every claimed domain.
func (s *Store) Owners() map[pod.Domain]string {
	owners := map[pod.Domain]string{
		pod.DomainStateMachine: s.stateMachine.currentOwner(),
		pod.DomainNavigation:   s.navigation.currentOwner(),
		pod.DomainSensors:      s.sensors.currentOwner(),
		pod.DomainPropulsion:   s.propulsion.currentOwner(),
		pod.DomainBrakes:       s.brakes.currentOwner(),
		pod.DomainTelemetry:    s.telemetry.currentOwner(),
	}
	for d, o := range owners {
		if o == "" {
			delete(owners, d)
		}
	}
	return owners
}

func claim[T any](sl *slot[T], domain pod.Domain, owner string) (*Writer[T], error) {
	if owner == "" {
		owner = domain.String()
	}
	existing, ok := sl.claim(owner)
	if !ok {
		return nil, &ClaimError{Domain: domain, Owner: existing, Requester: owner}
	}
	return &Writer[T]{slot: sl, owner: owner}, nil
}
