package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/podctl/internal/pod"
)

// Scenario defines one engine test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Profile is CUE source unified with the profile schema. Empty means
	// the default bench profile.
	Profile string `yaml:"profile,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step forces module state, then runs engine cycles.
type Step struct {
	// All sets the status of every module before Set is applied.
	All string `yaml:"all,omitempty"`

	// Set maps module names to the fields to overwrite.
	Set map[string]ModuleState `yaml:"set,omitempty"`

	// Advance is a duration added to the engine clock, e.g. "30s".
	Advance string `yaml:"advance,omitempty"`

	// Cycles is the number of engine cycles to run. Default 1.
	Cycles *int `yaml:"cycles,omitempty"`

	// Expect is the phase required after the cycles. Empty skips the check.
	Expect string `yaml:"expect,omitempty"`
}

// ModuleState holds the snapshot fields a step may overwrite. Unset
// fields keep their previous value.
type ModuleState struct {
	Status string `yaml:"status,omitempty"`

	// navigation
	Displacement    *float64 `yaml:"displacement,omitempty"`
	Velocity        *float64 `yaml:"velocity,omitempty"`
	BrakingDistance *float64 `yaml:"braking_distance,omitempty"`

	// brakes
	Engaged *bool `yaml:"engaged,omitempty"`

	// telemetry
	Calibrate *bool `yaml:"calibrate,omitempty"`
	Launch    *bool `yaml:"launch,omitempty"`
	Stop      *bool `yaml:"stop,omitempty"`
	Shutdown  *bool `yaml:"shutdown,omitempty"`
}

func (m ModuleState) hasNavigation() bool {
	return m.Displacement != nil || m.Velocity != nil || m.BrakingDistance != nil
}

func (m ModuleState) hasTelemetry() bool {
	return m.Calibrate != nil || m.Launch != nil || m.Stop != nil || m.Shutdown != nil
}

// cycles returns the step's cycle count.
func (s Step) cycles() int {
	if s.Cycles == nil {
		return 1
	}
	return *s.Cycles
}

// Assertion validates the final trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Phase is used by final_phase and never_phase.
	Phase string `yaml:"phase,omitempty"`

	// Phases is used by phase_sequence.
	Phases []string `yaml:"phases,omitempty"`

	// Count is used by transition_count.
	Count int `yaml:"count,omitempty"`

	// Modules is used by failed_modules.
	Modules []string `yaml:"modules,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalPhase      = "final_phase"
	AssertPhaseSequence   = "phase_sequence"
	AssertTransitionCount = "transition_count"
	AssertNeverPhase      = "never_phase"
	AssertFailedModules   = "failed_modules"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.All != "" {
		if _, err := pod.ParseModuleStatus(step.All); err != nil {
			return fmt.Errorf("all: %w", err)
		}
	}

	for name, st := range step.Set {
		m, err := pod.ParseModule(name)
		if err != nil {
			return fmt.Errorf("set: %w", err)
		}
		if st.Status != "" {
			if _, err := pod.ParseModuleStatus(st.Status); err != nil {
				return fmt.Errorf("set.%s.status: %w", name, err)
			}
		}
		if st.hasNavigation() && m != pod.ModuleNavigation {
			return fmt.Errorf("set.%s: navigation fields apply only to navigation", name)
		}
		if st.Engaged != nil && m != pod.ModuleBrakes {
			return fmt.Errorf("set.%s: engaged applies only to brakes", name)
		}
		if st.hasTelemetry() && m != pod.ModuleTelemetry {
			return fmt.Errorf("set.%s: commands apply only to telemetry", name)
		}
	}

	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("advance: must not be negative")
		}
	}

	if step.cycles() < 0 {
		return fmt.Errorf("cycles must be non-negative")
	}

	if step.Expect != "" {
		if _, err := pod.ParsePhase(step.Expect); err != nil {
			return fmt.Errorf("expect: %w", err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalPhase, AssertNeverPhase:
		if a.Phase == "" {
			return fmt.Errorf("assertions[%d]: phase is required for %s", index, a.Type)
		}
		if _, err := pod.ParsePhase(a.Phase); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertPhaseSequence:
		if len(a.Phases) == 0 {
			return fmt.Errorf("assertions[%d]: phases list is required for phase_sequence", index)
		}
		for _, p := range a.Phases {
			if _, err := pod.ParsePhase(p); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTransitionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for transition_count", index)
		}
	case AssertFailedModules:
		if _, err := pod.ParseModuleSet(a.Modules); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
