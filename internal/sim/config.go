package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
)

// Fault injects a critical failure into Module once After has elapsed
// since the bench started.
type Fault struct {
	Module pod.Module
	After  time.Duration
}

// String renders the fault as module@delay.
func (f Fault) String() string {
	return fmt.Sprintf("%s@%s", f.Module, f.After)
}

// ParseFault parses "module@delay", e.g. "propulsion@4s".
func ParseFault(s string) (Fault, error) {
	name, delay, ok := strings.Cut(s, "@")
	if !ok {
		return Fault{}, fmt.Errorf("fault %q: want module@delay", s)
	}
	m, err := pod.ParseModule(name)
	if err != nil {
		return Fault{}, fmt.Errorf("fault %q: %w", s, err)
	}
	after, err := time.ParseDuration(delay)
	if err != nil {
		return Fault{}, fmt.Errorf("fault %q: %w", s, err)
	}
	if after < 0 {
		return Fault{}, fmt.Errorf("fault %q: negative delay", s)
	}
	return Fault{Module: m, After: after}, nil
}

// Config tunes the bench simulators.
type Config struct {
	// Period is the loop yield interval of every simulator.
	Period time.Duration
	// TimeStep is the simulated time that passes per cycle.
	TimeStep time.Duration
	// SetupCycles is how many cycles after leaving Idle a module needs
	// before it reports Ready.
	SetupCycles int

	// Accelerations in m/s², all positive.
	Acceleration          float64
	Deceleration          float64
	EmergencyDeceleration float64

	// StoppedVelocity is the speed at or below which the brakes consider
	// the pod stopped (m/s).
	StoppedVelocity float64
	// StripeSpacing is the distance between track stripes (m).
	StripeSpacing float64

	Faults    []Fault
	Autopilot bool

	// Clock times fault injection. Default: engine.SystemClock.
	Clock engine.Clock
}

// DefaultConfig returns a bench that completes the default track in
// about half a minute.
func DefaultConfig() Config {
	return Config{
		Period:                10 * time.Millisecond,
		TimeStep:              10 * time.Millisecond,
		SetupCycles:           50,
		Acceleration:          8,
		Deceleration:          6,
		EmergencyDeceleration: 12,
		StoppedVelocity:       engine.DefaultStoppedVelocity,
		StripeSpacing:         30.48,
	}
}
